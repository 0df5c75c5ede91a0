package model

import (
	"log/slog"
	"strings"

	"github.com/pkoukk/tiktoken-go"
)

type TokenCounter interface {
	Count(text string) int
}

type tiktokenCounter struct {
	enc *tiktoken.Tiktoken
}

func (c tiktokenCounter) Count(text string) int {
	return len(c.enc.Encode(text, nil, nil))
}

// ApproxCounter estimates tokens from word count when no BPE table is
// available.
type ApproxCounter struct{}

func (ApproxCounter) Count(text string) int {
	words := len(strings.Fields(text))
	return (words*4 + 2) / 3
}

// NewTokenCounter returns a tiktoken based counter. Local models use their
// own tokenizers, so the count is an estimate either way; if the encoding
// cannot be loaded the word based estimate is used instead.
func NewTokenCounter(logger *slog.Logger) TokenCounter {
	enc, err := tiktoken.EncodingForModel("gpt-3.5-turbo")
	if err != nil {
		logger.Warn("tiktoken encoding unavailable, estimating tokens from words", "error", err)
		return ApproxCounter{}
	}
	return tiktokenCounter{enc: enc}
}

package types

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

type Validater interface {
	Validate() map[string]string
}

type AskRequest struct {
	Question string `json:"question" validate:"required,max=2000"`
}

func Validate(v Validater) map[string]string {
	return v.Validate()
}

// Validate trims the question before checking it so whitespace-only input
// counts as missing.
func (params *AskRequest) Validate() map[string]string {
	params.Question = strings.TrimSpace(params.Question)
	return validationErrors(validate.Struct(params))
}

func validationErrors(err error) map[string]string {
	if err == nil {
		return nil
	}
	errs, ok := err.(validator.ValidationErrors)
	if !ok {
		return map[string]string{"request": err.Error()}
	}
	errors := make(map[string]string)
	for _, e := range errs {
		errors[e.Field()] = fmt.Sprintf("failed on '%s' tag", e.Tag())
	}
	return errors
}

type AskResponse struct {
	Answer       string   `json:"answer"`
	Sources      []Source `json:"sources"`
	Status       string   `json:"status"`
	ContextFound bool     `json:"context_found"`
	Truncated    bool     `json:"truncated"`
}

type Source struct {
	Text     string  `json:"text"`
	Source   string  `json:"source"`
	Position int     `json:"position"`
	Score    float64 `json:"score"`
}

func NewAskResponse(a Answer) AskResponse {
	sources := make([]Source, len(a.Sources))
	for i, ch := range a.Sources {
		sources[i] = Source{
			Text:     ch.Content,
			Source:   ch.Source,
			Position: ch.Position,
			Score:    ch.Score,
		}
	}
	return AskResponse{
		Answer:       a.Text,
		Sources:      sources,
		Status:       a.Status,
		ContextFound: a.ContextFound,
		Truncated:    a.Truncated,
	}
}

package agent

import (
	"bytes"
	"consultant/types"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"strings"
	"text/template"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

const NotFoundMarker = "CONTEXT_NOT_FOUND"

const defaultSystem = `You are a marketing consultant assistant.
Answer the user's question based strictly and exclusively on the provided context.
Answer clearly and to the point, without introductions like "Of course!" or "Here's the answer:".
If the context is empty or does not contain the answer, reply with exactly ` + NotFoundMarker + ` and nothing else.`

const defaultBody = `<context>
{{- range .Chunks}}
[{{.N}}] {{.Source}}
{{.Text}}
{{- else}}
(no context available)
{{- end}}
</context>

Question: {{.Question}}
Answer:`

const defaultFallback = "I could not find an answer to your question in the provided knowledge base."

// PromptFile is the YAML layout of PROMPT_FILE.
type PromptFile struct {
	System   string `yaml:"system" validate:"required"`
	Template string `yaml:"template" validate:"required"`
	Fallback string `yaml:"fallback" validate:"required"`
	Marker   string `yaml:"marker"`
}

// Template is a parsed prompt: the system instruction, the user prompt
// body and the text returned when the model reports missing context.
type Template struct {
	System   string
	Fallback string
	Marker   string
	// Digest changes whenever any part of the prompt does.
	Digest string
	body   *template.Template
}

type promptData struct {
	Question string
	Chunks   []contextBlock
}

type contextBlock struct {
	N      int
	Source string
	Text   string
}

var validate = validator.New()

func DefaultTemplate() *Template {
	t, err := NewTemplate(PromptFile{
		System:   defaultSystem,
		Template: defaultBody,
		Fallback: defaultFallback,
	})
	if err != nil {
		panic(err)
	}
	return t
}

func NewTemplate(pf PromptFile) (*Template, error) {
	if err := validate.Struct(pf); err != nil {
		return nil, fmt.Errorf("invalid prompt: %w", err)
	}
	body, err := template.New("prompt").Option("missingkey=error").Parse(pf.Template)
	if err != nil {
		return nil, fmt.Errorf("parse prompt template: %w", err)
	}
	marker := pf.Marker
	if marker == "" {
		marker = NotFoundMarker
	}
	sum := sha256.Sum256([]byte(pf.System + "\x00" + pf.Template + "\x00" + pf.Fallback + "\x00" + marker))
	return &Template{
		System:   strings.TrimSpace(pf.System),
		Fallback: strings.TrimSpace(pf.Fallback),
		Marker:   marker,
		Digest:   hex.EncodeToString(sum[:8]),
		body:     body,
	}, nil
}

// LoadTemplate reads a YAML prompt file. An empty path yields the
// built-in template.
func LoadTemplate(path string) (*Template, error) {
	if path == "" {
		return DefaultTemplate(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read prompt file: %w", err)
	}
	var pf PromptFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("decode prompt file %s: %w", path, err)
	}
	return NewTemplate(pf)
}

// BuildPrompt renders the user prompt for question with chunks as numbered
// context blocks, in the order given. It has no side effects.
func BuildPrompt(question string, chunks []types.ScoredChunk, tmpl *Template) (string, error) {
	data := promptData{Question: question, Chunks: make([]contextBlock, len(chunks))}
	for i, c := range chunks {
		data.Chunks[i] = contextBlock{N: i + 1, Source: c.Source, Text: c.Content}
	}

	var buf bytes.Buffer
	if err := tmpl.body.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render prompt: %w", err)
	}
	return buf.String(), nil
}

// reportsNoContext tells whether the model answered with the marker.
func (t *Template) reportsNoContext(answer string) bool {
	return strings.Contains(strings.ToUpper(answer), strings.ToUpper(t.Marker))
}

package types

import (
	"time"

	"github.com/google/uuid"
)

type SourceType string

const (
	SourceText     SourceType = "text"
	SourceMarkdown SourceType = "markdown"
	SourcePDF      SourceType = "pdf"
)

// Chunk is a bounded excerpt of a document. It is created once at indexing
// time and never mutated afterwards.
type Chunk struct {
	ID        uuid.UUID
	DocID     uuid.UUID
	Source    string // document title the chunk came from
	Position  int    // order of the chunk inside its document
	Content   string
	Embedding []float32
}

// ScoredChunk is a single retrieval hit.
type ScoredChunk struct {
	Chunk
	Score float64
}

type Document struct {
	ID         uuid.UUID
	Title      string
	Chunks     []Chunk
	Source     SourceType
	SourcePath string
	Content    string
	Order      int // position of the document in the knowledge base
	CreatedAt  time.Time
	UpdatedAt  time.Time
	Version    int
}

const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Answer is what the query service hands back for one question.
type Answer struct {
	Text         string
	Sources      []ScoredChunk
	Status       string
	ContextFound bool
	Truncated    bool
}

// Generation is the generator's reply for one question. Used lists the
// chunks that were actually placed in the prompt.
type Generation struct {
	Text      string
	Used      []ScoredChunk
	NoContext bool
	Truncated bool
}

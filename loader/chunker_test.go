package loader

import (
	"consultant/types"
	"strconv"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func numberedWords(n int) string {
	words := make([]string, n)
	for i := range words {
		words[i] = "w" + strconv.Itoa(i)
	}
	return strings.Join(words, " ")
}

func TestSplitter_WindowsOverlap(t *testing.T) {
	doc := types.Document{ID: uuid.New(), Title: "doc", Content: numberedWords(25)}
	chunks := NewSplitter(10, 2).Split(doc)

	require.Len(t, chunks, 3)
	assert.Equal(t, numberedWords(10), chunks[0].Content)
	assert.True(t, strings.HasPrefix(chunks[1].Content, "w8 w9 w10"))
	assert.True(t, strings.HasSuffix(chunks[2].Content, "w24"))

	for i, c := range chunks {
		assert.Equal(t, i, c.Position)
		assert.Equal(t, doc.ID, c.DocID)
		assert.LessOrEqual(t, len(strings.Fields(c.Content)), 10)
	}
}

func TestSplitter_ExactMultipleHasNoTrailingChunk(t *testing.T) {
	doc := types.Document{ID: uuid.New(), Content: numberedWords(10)}
	chunks := NewSplitter(10, 2).Split(doc)
	assert.Len(t, chunks, 1)
}

func TestSplitter_Empty(t *testing.T) {
	assert.Empty(t, NewSplitter(10, 2).Split(types.Document{ID: uuid.New(), Content: " \n\t "}))
}

func TestNewSplitter_BadOverlap(t *testing.T) {
	s := NewSplitter(10, 10)
	assert.Equal(t, 0, s.Overlap)

	s = NewSplitter(0, -1)
	assert.Equal(t, 100, s.Size)
	assert.Equal(t, 0, s.Overlap)
}

func TestChunkID(t *testing.T) {
	doc := uuid.New()
	assert.Equal(t, ChunkID(doc, 0, "text"), ChunkID(doc, 0, "text"))
	assert.NotEqual(t, ChunkID(doc, 0, "text"), ChunkID(doc, 1, "text"))
	assert.NotEqual(t, ChunkID(doc, 0, "text"), ChunkID(doc, 0, "other"))
	assert.NotEqual(t, ChunkID(doc, 0, "text"), ChunkID(uuid.New(), 0, "text"))
}

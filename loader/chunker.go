package loader

import (
	"consultant/types"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// Splitter cuts text into windows of Size words, each window starting
// Size-Overlap words after the previous one.
type Splitter struct {
	Size    int
	Overlap int
}

func NewSplitter(size, overlap int) *Splitter {
	if size <= 0 {
		size = 100
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}
	return &Splitter{Size: size, Overlap: overlap}
}

// Split returns the chunks of doc in reading order. Chunk ids depend only
// on the document id, position and text, so reloading an unchanged
// document yields the same ids.
func (s *Splitter) Split(doc types.Document) []types.Chunk {
	words := strings.Fields(doc.Content)
	if len(words) == 0 {
		return nil
	}

	var chunks []types.Chunk
	pos := 0
	for i := 0; i < len(words); i += s.Size - s.Overlap {
		end := min(i+s.Size, len(words))

		content := strings.Join(words[i:end], " ")
		chunks = append(chunks, types.Chunk{
			ID:       ChunkID(doc.ID, pos, content),
			DocID:    doc.ID,
			Source:   doc.Title,
			Position: pos,
			Content:  content,
		})
		pos++

		if end == len(words) {
			break
		}
	}
	return chunks
}

func ChunkID(docID uuid.UUID, position int, content string) uuid.UUID {
	return uuid.NewSHA1(docID, []byte(strconv.Itoa(position)+"\x00"+content))
}

package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Chunk represents a contiguous slice of a document's text, the unit
// of embedding and citation. Chunk identity is deterministic: the same
// document chunked twice yields the same IDs.
type Chunk struct {
	ID          uuid.UUID `json:"id"`
	DocumentID  string    `json:"document_id"` // back-reference to Document.ID (source URL)
	Text        string    `json:"text"`
	StartOffset int       `json:"start_offset"`
	EndOffset   int       `json:"end_offset"`
	TokenCount  int       `json:"token_count"`
	ChunkIndex  int       `json:"chunk_index"`
	Embedding   []float32 `json:"embedding,omitempty"`
	Metadata    Metadata  `json:"metadata,omitempty"`
	CreatedAt   time.Time `json:"created_at,omitempty"`
}

// NewChunkID derives the deterministic chunk ID from the document ID
// and the chunk's start offset. Re-chunking the same document is
// idempotent because the ID depends only on these two values.
func NewChunkID(documentID string, startOffset int) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(fmt.Sprintf("%s#%d", documentID, startOffset)))
}

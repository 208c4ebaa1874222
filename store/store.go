// Package store defines the vector store contract shared by the
// Postgres-backed and in-memory implementations.
package store

import (
	"context"

	"github.com/plainapi/plainapi/model"
)

// MetricCosine is the similarity metric every store implementation
// uses. It is recorded in the persisted store layout so a store built
// with a different metric is rejected at load time.
const MetricCosine = "cosine"

// VectorStore is a similarity-searchable index over embedded chunks.
// A store holds one immutable corpus snapshot at a time; Build
// replaces the snapshot atomically, so concurrent Search calls observe
// either the fully-old or the fully-new corpus, never a mix.
type VectorStore interface {
	// Build replaces the store contents wholesale. Every chunk must
	// carry an embedding of the store's dimension. On failure the
	// previous snapshot stays intact.
	Build(ctx context.Context, chunks []*model.Chunk) error

	// Search returns the k entries most similar to the query vector,
	// ordered by descending cosine similarity with ties broken by
	// ascending chunk id. Searching an empty store returns an empty
	// slice. The query vector dimension must match the store's.
	Search(ctx context.Context, queryVector []float32, k int) ([]*model.RetrievedPassage, error)

	// Size returns the number of stored entries.
	Size(ctx context.Context) (int, error)

	// Dimension returns the fixed embedding dimension.
	Dimension() int
}

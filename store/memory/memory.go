// Package memory provides an in-memory vector store with optional
// file persistence. The corpus lives in an immutable snapshot behind
// an atomic pointer: Build assembles a complete new snapshot and swaps
// it in with a single store, so readers never lock and never observe a
// partially rebuilt corpus.
package memory

import (
	"context"
	"encoding/gob"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/plainapi/plainapi/helper"
	"github.com/plainapi/plainapi/model"
	"github.com/plainapi/plainapi/store"
)

const (
	fileMagic   = "plainapi-vectors"
	fileVersion = 1
)

// Store is an in-memory cosine-similarity vector store. When created
// with a path it persists every built snapshot to disk
// (write-to-temp-then-rename) and can be reopened from that file.
type Store struct {
	dimension int
	path      string // empty means no persistence

	snapshot atomic.Pointer[snapshot]
	buildMu  sync.Mutex // serializes Build calls, not reads
}

type snapshot struct {
	chunks []*model.Chunk
}

// persistedStore is the on-disk layout. Dimension and metric are part
// of the header so a mismatched rebuild configuration is detected at
// load time instead of producing silently wrong rankings.
type persistedStore struct {
	Magic     string
	Version   int
	Dimension int
	Metric    string
	Chunks    []*model.Chunk
}

// NewStore creates an empty store with a fixed embedding dimension.
// If path is non-empty, built snapshots are persisted there.
func NewStore(dimension int, path string) (*Store, error) {
	if dimension <= 0 {
		return nil, helper.NewError("create store", fmt.Errorf("%w: dimension must be positive, got %d", model.ErrInvalidInput, dimension))
	}
	s := &Store{dimension: dimension, path: path}
	s.snapshot.Store(&snapshot{})
	return s, nil
}

// OpenStore loads a persisted store from path and verifies its header
// against the configured dimension. A file that fails the integrity
// check yields ErrStoreCorrupt; a well-formed file built with a
// different dimension yields ErrDimensionMismatch.
func OpenStore(dimension int, path string) (*Store, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, helper.NewError("open store file", err)
	}
	defer f.Close()

	var p persistedStore
	if err := gob.NewDecoder(f).Decode(&p); err != nil {
		return nil, helper.NewError("decode store file", fmt.Errorf("%w: %v", model.ErrStoreCorrupt, err))
	}

	if p.Magic != fileMagic || p.Version != fileVersion {
		return nil, helper.NewError("verify store file", fmt.Errorf("%w: unrecognized header", model.ErrStoreCorrupt))
	}
	if p.Metric != store.MetricCosine {
		return nil, helper.NewError("verify store file", fmt.Errorf("%w: store built with metric %q", model.ErrStoreCorrupt, p.Metric))
	}
	if p.Dimension != dimension {
		return nil, helper.NewError("verify store file", fmt.Errorf("%w: store has dimension %d, configured %d", model.ErrDimensionMismatch, p.Dimension, dimension))
	}
	for _, c := range p.Chunks {
		if len(c.Embedding) != p.Dimension {
			return nil, helper.NewError("verify store file", fmt.Errorf("%w: chunk %s has %d-dimensional embedding", model.ErrStoreCorrupt, c.ID, len(c.Embedding)))
		}
	}

	s := &Store{dimension: dimension, path: path}
	s.snapshot.Store(&snapshot{chunks: p.Chunks})
	return s, nil
}

// Build replaces the store contents atomically. The new snapshot is
// fully assembled (and, with persistence enabled, fully written and
// renamed into place) before the swap, so a failure anywhere leaves
// the previous snapshot serving.
func (s *Store) Build(ctx context.Context, chunks []*model.Chunk) error {
	s.buildMu.Lock()
	defer s.buildMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	copied := make([]*model.Chunk, len(chunks))
	for i, c := range chunks {
		if len(c.Embedding) != s.dimension {
			return helper.NewError("build store", fmt.Errorf("%w: chunk %s has %d-dimensional embedding, store expects %d", model.ErrDimensionMismatch, c.ID, len(c.Embedding), s.dimension))
		}
		copied[i] = c
	}

	if s.path != "" {
		if err := s.persist(copied); err != nil {
			return err
		}
	}

	s.snapshot.Store(&snapshot{chunks: copied})
	return nil
}

func (s *Store) persist(chunks []*model.Chunk) error {
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".vectors-*")
	if err != nil {
		return helper.NewError("create temp store file", err)
	}
	defer os.Remove(tmp.Name())

	p := persistedStore{
		Magic:     fileMagic,
		Version:   fileVersion,
		Dimension: s.dimension,
		Metric:    store.MetricCosine,
		Chunks:    chunks,
	}
	if err := gob.NewEncoder(tmp).Encode(&p); err != nil {
		tmp.Close()
		return helper.NewError("encode store file", err)
	}
	if err := tmp.Close(); err != nil {
		return helper.NewError("close temp store file", err)
	}

	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return helper.NewError("swap store file", err)
	}
	return nil
}

// Search performs a brute-force cosine similarity scan over the
// current snapshot.
func (s *Store) Search(ctx context.Context, queryVector []float32, k int) ([]*model.RetrievedPassage, error) {
	if k < 1 {
		return nil, helper.NewError("search store", fmt.Errorf("%w: k must be >= 1, got %d", model.ErrInvalidInput, k))
	}
	if len(queryVector) != s.dimension {
		return nil, helper.NewError("search store", fmt.Errorf("%w: query vector has dimension %d, store expects %d", model.ErrDimensionMismatch, len(queryVector), s.dimension))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	snap := s.snapshot.Load()
	if len(snap.chunks) == 0 {
		return []*model.RetrievedPassage{}, nil
	}

	passages := make([]*model.RetrievedPassage, len(snap.chunks))
	for i, c := range snap.chunks {
		passages[i] = &model.RetrievedPassage{
			Chunk: c,
			Score: cosineSimilarity(c.Embedding, queryVector),
		}
	}

	sort.SliceStable(passages, func(i, j int) bool {
		if passages[i].Score != passages[j].Score {
			return passages[i].Score > passages[j].Score
		}
		return passages[i].Chunk.ID.String() < passages[j].Chunk.ID.String()
	})

	if k < len(passages) {
		passages = passages[:k]
	}
	for i, p := range passages {
		p.Rank = i
	}
	return passages, nil
}

// Size returns the number of entries in the current snapshot.
func (s *Store) Size(ctx context.Context) (int, error) {
	return len(s.snapshot.Load().chunks), nil
}

// Dimension returns the fixed embedding dimension.
func (s *Store) Dimension() int {
	return s.dimension
}

// cosineSimilarity calculates the cosine similarity between two embedding vectors
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}

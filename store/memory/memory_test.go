package memory

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/plainapi/plainapi/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testChunk(documentID string, offset int, embedding []float32) *model.Chunk {
	return &model.Chunk{
		ID:          model.NewChunkID(documentID, offset),
		DocumentID:  documentID,
		Text:        fmt.Sprintf("passage %s %d", documentID, offset),
		StartOffset: offset,
		EndOffset:   offset + 10,
		TokenCount:  2,
		Embedding:   embedding,
	}
}

func TestNewStore(t *testing.T) {
	t.Run("Valid dimension", func(t *testing.T) {
		s, err := NewStore(4, "")
		require.NoError(t, err)
		assert.Equal(t, 4, s.Dimension())
	})

	t.Run("Invalid dimension", func(t *testing.T) {
		_, err := NewStore(0, "")
		assert.Error(t, err)
		assert.ErrorIs(t, err, model.ErrInvalidInput)
	})
}

func TestStoreSearch(t *testing.T) {
	ctx := context.Background()

	t.Run("Ranks by cosine similarity descending", func(t *testing.T) {
		s, err := NewStore(2, "")
		require.NoError(t, err)

		err = s.Build(ctx, []*model.Chunk{
			testChunk("doc-a", 0, []float32{1, 0}),
			testChunk("doc-b", 0, []float32{0, 1}),
			testChunk("doc-c", 0, []float32{1, 1}),
		})
		require.NoError(t, err)

		passages, err := s.Search(ctx, []float32{1, 0}, 3)

		require.NoError(t, err)
		require.Len(t, passages, 3)
		assert.Equal(t, "doc-a", passages[0].Chunk.DocumentID)
		assert.Equal(t, "doc-c", passages[1].Chunk.DocumentID)
		assert.Equal(t, "doc-b", passages[2].Chunk.DocumentID)
		assert.InDelta(t, 1.0, passages[0].Score, 1e-9)
		assert.InDelta(t, 0.0, passages[2].Score, 1e-9)
		for i, p := range passages {
			assert.Equal(t, i, p.Rank)
		}
	})

	t.Run("Equal scores break ties by ascending chunk id", func(t *testing.T) {
		s, err := NewStore(2, "")
		require.NoError(t, err)

		first := testChunk("doc-a", 0, []float32{1, 0})
		second := testChunk("doc-b", 0, []float32{2, 0})
		require.NoError(t, s.Build(ctx, []*model.Chunk{first, second}))

		passages, err := s.Search(ctx, []float32{1, 0}, 2)

		require.NoError(t, err)
		require.Len(t, passages, 2)
		assert.Equal(t, passages[0].Score, passages[1].Score)
		assert.Less(t, passages[0].Chunk.ID.String(), passages[1].Chunk.ID.String())
	})

	t.Run("K larger than store returns everything", func(t *testing.T) {
		s, err := NewStore(2, "")
		require.NoError(t, err)
		require.NoError(t, s.Build(ctx, []*model.Chunk{testChunk("doc-a", 0, []float32{1, 0})}))

		passages, err := s.Search(ctx, []float32{1, 0}, 10)

		require.NoError(t, err)
		assert.Len(t, passages, 1)
	})

	t.Run("Empty store returns empty result", func(t *testing.T) {
		s, err := NewStore(2, "")
		require.NoError(t, err)

		passages, err := s.Search(ctx, []float32{1, 0}, 5)

		require.NoError(t, err)
		assert.NotNil(t, passages)
		assert.Empty(t, passages)
	})

	t.Run("Invalid k", func(t *testing.T) {
		s, err := NewStore(2, "")
		require.NoError(t, err)

		_, err = s.Search(ctx, []float32{1, 0}, 0)

		assert.ErrorIs(t, err, model.ErrInvalidInput)
	})

	t.Run("Query dimension mismatch", func(t *testing.T) {
		s, err := NewStore(2, "")
		require.NoError(t, err)

		_, err = s.Search(ctx, []float32{1, 0, 0}, 5)

		assert.ErrorIs(t, err, model.ErrDimensionMismatch)
	})
}

func TestStoreBuild(t *testing.T) {
	ctx := context.Background()

	t.Run("Build replaces previous corpus wholesale", func(t *testing.T) {
		s, err := NewStore(2, "")
		require.NoError(t, err)

		require.NoError(t, s.Build(ctx, []*model.Chunk{
			testChunk("old-doc", 0, []float32{1, 0}),
			testChunk("old-doc", 10, []float32{0, 1}),
		}))
		require.NoError(t, s.Build(ctx, []*model.Chunk{
			testChunk("new-doc", 0, []float32{1, 0}),
		}))

		size, err := s.Size(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, size)

		passages, err := s.Search(ctx, []float32{1, 0}, 5)
		require.NoError(t, err)
		require.Len(t, passages, 1)
		assert.Equal(t, "new-doc", passages[0].Chunk.DocumentID)
	})

	t.Run("Chunk dimension mismatch leaves previous corpus serving", func(t *testing.T) {
		s, err := NewStore(2, "")
		require.NoError(t, err)
		require.NoError(t, s.Build(ctx, []*model.Chunk{testChunk("doc-a", 0, []float32{1, 0})}))

		err = s.Build(ctx, []*model.Chunk{testChunk("doc-b", 0, []float32{1, 0, 0})})

		assert.ErrorIs(t, err, model.ErrDimensionMismatch)

		size, err := s.Size(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, size, "Expected failed rebuild to leave the old snapshot in place")
	})

	t.Run("Build with empty corpus", func(t *testing.T) {
		s, err := NewStore(2, "")
		require.NoError(t, err)
		require.NoError(t, s.Build(ctx, nil))

		size, err := s.Size(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, size)
	})
}

func TestStoreSnapshotConsistency(t *testing.T) {
	ctx := context.Background()

	t.Run("Searches during rebuilds see one corpus, never a mix", func(t *testing.T) {
		s, err := NewStore(2, "")
		require.NoError(t, err)

		oldCorpus := []*model.Chunk{
			testChunk("old-doc", 0, []float32{1, 0}),
			testChunk("old-doc", 10, []float32{1, 0}),
		}
		newCorpus := []*model.Chunk{
			testChunk("new-doc", 0, []float32{1, 0}),
			testChunk("new-doc", 10, []float32{1, 0}),
			testChunk("new-doc", 20, []float32{1, 0}),
		}
		require.NoError(t, s.Build(ctx, oldCorpus))

		done := make(chan struct{})
		go func() {
			defer close(done)
			for i := 0; i < 100; i++ {
				if i%2 == 0 {
					_ = s.Build(ctx, newCorpus)
				} else {
					_ = s.Build(ctx, oldCorpus)
				}
			}
		}()

		for {
			select {
			case <-done:
				return
			default:
			}

			passages, err := s.Search(ctx, []float32{1, 0}, 10)
			require.NoError(t, err)
			require.NotEmpty(t, passages)

			documentID := passages[0].Chunk.DocumentID
			for _, p := range passages {
				require.Equal(t, documentID, p.Chunk.DocumentID, "Expected every result to come from the same snapshot")
			}
			if documentID == "old-doc" {
				require.Len(t, passages, len(oldCorpus))
			} else {
				require.Len(t, passages, len(newCorpus))
			}
		}
	})
}

func TestStorePersistence(t *testing.T) {
	ctx := context.Background()

	t.Run("Build persists and OpenStore restores", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "vectors.bin")

		s, err := NewStore(2, path)
		require.NoError(t, err)
		require.NoError(t, s.Build(ctx, []*model.Chunk{
			testChunk("doc-a", 0, []float32{1, 0}),
			testChunk("doc-b", 0, []float32{0, 1}),
		}))

		reopened, err := OpenStore(2, path)
		require.NoError(t, err)

		size, err := reopened.Size(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, size)

		passages, err := reopened.Search(ctx, []float32{1, 0}, 1)
		require.NoError(t, err)
		require.Len(t, passages, 1)
		assert.Equal(t, "doc-a", passages[0].Chunk.DocumentID)
	})

	t.Run("OpenStore with wrong dimension", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "vectors.bin")

		s, err := NewStore(2, path)
		require.NoError(t, err)
		require.NoError(t, s.Build(ctx, []*model.Chunk{testChunk("doc-a", 0, []float32{1, 0})}))

		_, err = OpenStore(3, path)

		assert.ErrorIs(t, err, model.ErrDimensionMismatch)
	})

	t.Run("OpenStore with corrupt file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "vectors.bin")
		require.NoError(t, os.WriteFile(path, []byte("this is not a store file"), 0o644))

		_, err := OpenStore(2, path)

		assert.ErrorIs(t, err, model.ErrStoreCorrupt)
	})

	t.Run("OpenStore with missing file", func(t *testing.T) {
		_, err := OpenStore(2, filepath.Join(t.TempDir(), "missing.bin"))

		assert.Error(t, err)
		assert.NotErrorIs(t, err, model.ErrStoreCorrupt)
	})
}

func TestCosineSimilarity(t *testing.T) {
	t.Run("Identical direction", func(t *testing.T) {
		assert.InDelta(t, 1.0, cosineSimilarity([]float32{1, 2}, []float32{2, 4}), 1e-9)
	})

	t.Run("Orthogonal vectors", func(t *testing.T) {
		assert.InDelta(t, 0.0, cosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-9)
	})

	t.Run("Opposite direction", func(t *testing.T) {
		assert.InDelta(t, -1.0, cosineSimilarity([]float32{1, 0}, []float32{-1, 0}), 1e-9)
	})

	t.Run("Zero vector", func(t *testing.T) {
		assert.Equal(t, 0.0, cosineSimilarity([]float32{0, 0}, []float32{1, 0}))
	})
}

package plainapi

import (
	"context"
	"testing"

	"github.com/plainapi/plainapi/generation"
	"github.com/plainapi/plainapi/model"
	"github.com/plainapi/plainapi/store/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEmbedder returns fixed vectors per text and counts calls.
type fakeEmbedder struct {
	dims    int
	vectors map[string][]float32
	calls   int
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := f.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	f.calls++
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		if v, ok := f.vectors[text]; ok {
			vectors[i] = v
			continue
		}
		vectors[i] = make([]float32, f.dims)
		vectors[i][f.dims-1] = 1
	}
	return vectors, nil
}

func (f *fakeEmbedder) Dimensions() int {
	return f.dims
}

// fakeGenerator returns a canned answer and counts calls.
type fakeGenerator struct {
	answer string
	calls  int
}

func (f *fakeGenerator) Generate(ctx context.Context, system string, prompt string, opts generation.Options) (string, error) {
	f.calls++
	return f.answer, nil
}

func authCorpus() []*model.Document {
	return []*model.Document{
		{
			ID:      "https://api.nasa.gov/#authentication",
			Content: "Every request to the NASA API requires an api_key query parameter. Sign up to receive a personal key or use DEMO_KEY for evaluation.",
		},
		{
			ID:      "https://api.nasa.gov/#apod",
			Content: "The Astronomy Picture of the Day endpoint returns the image of the day together with its explanation.",
		},
	}
}

func newTestEngine(t *testing.T, embedder *fakeEmbedder, generator *fakeGenerator) *Engine {
	s, err := memory.NewStore(embedder.dims, "")
	require.NoError(t, err)

	engine, err := NewEngine(s, embedder, generator, DefaultConfig())
	require.NoError(t, err)
	return engine
}

func TestNewEngine(t *testing.T) {
	t.Run("Dimension mismatch between store and embedder", func(t *testing.T) {
		s, err := memory.NewStore(4, "")
		require.NoError(t, err)

		_, err = NewEngine(s, &fakeEmbedder{dims: 8}, &fakeGenerator{}, DefaultConfig())

		assert.ErrorIs(t, err, model.ErrDimensionMismatch)
	})

	t.Run("Invalid config rejected", func(t *testing.T) {
		s, err := memory.NewStore(4, "")
		require.NoError(t, err)

		config := DefaultConfig()
		config.TopK = 0

		_, err = NewEngine(s, &fakeEmbedder{dims: 4}, &fakeGenerator{}, config)

		assert.ErrorIs(t, err, model.ErrInvalidInput)
	})
}

func TestEngineAnswer(t *testing.T) {
	ctx := context.Background()

	t.Run("Empty question fails before any external call", func(t *testing.T) {
		embedder := &fakeEmbedder{dims: 2}
		generator := &fakeGenerator{answer: "should not run"}
		engine := newTestEngine(t, embedder, generator)

		_, err := engine.Answer(ctx, "   \t ")

		assert.ErrorIs(t, err, model.ErrInvalidInput)
		assert.Equal(t, 0, embedder.calls, "Expected no embedding call for an empty question")
		assert.Equal(t, 0, generator.calls, "Expected no generation call for an empty question")
	})

	t.Run("Question about authentication retrieves the authentication passage", func(t *testing.T) {
		embedder := &fakeEmbedder{
			dims: 2,
			vectors: map[string][]float32{
				"How do I authenticate my requests?": {1, 0},
				// Chunk texts embed near their topic.
				"Every request to the NASA API requires an api_key query parameter. Sign up to receive a personal key or use DEMO_KEY for evaluation.": {0.95, 0.05},
				"The Astronomy Picture of the Day endpoint returns the image of the day together with its explanation.":                                {0.1, 0.9},
			},
		}
		generator := &fakeGenerator{answer: "Pass the api_key query parameter with every request [1]."}
		engine := newTestEngine(t, embedder, generator)

		_, err := engine.IngestDocuments(ctx, authCorpus())
		require.NoError(t, err)

		answered, err := engine.Answer(ctx, "How do I authenticate my requests?")

		require.NoError(t, err)
		assert.True(t, answered.Grounded)
		require.NotEmpty(t, answered.Citations)
		assert.Equal(t, "https://api.nasa.gov/#authentication", answered.Citations[0].DocumentID)
		assert.Equal(t, 1, answered.Citations[0].Index)
		assert.Equal(t, 1, generator.calls)
	})

	t.Run("Unrelated question yields ungrounded answer without generation call", func(t *testing.T) {
		embedder := &fakeEmbedder{
			dims: 2,
			vectors: map[string][]float32{
				// Orthogonal to everything in the corpus.
				"What is the best pasta recipe?": {1, 0},
				"Every request to the NASA API requires an api_key query parameter. Sign up to receive a personal key or use DEMO_KEY for evaluation.": {0, 1},
				"The Astronomy Picture of the Day endpoint returns the image of the day together with its explanation.":                                {0, 1},
			},
		}
		generator := &fakeGenerator{answer: "should not run"}
		engine := newTestEngine(t, embedder, generator)

		_, err := engine.IngestDocuments(ctx, authCorpus())
		require.NoError(t, err)

		answered, err := engine.Answer(ctx, "What is the best pasta recipe?")

		require.NoError(t, err)
		assert.False(t, answered.Grounded)
		assert.Empty(t, answered.Citations)
		assert.NotEqual(t, "should not run", answered.Answer)
		assert.Equal(t, 0, generator.calls, "Expected no generation call without grounding passages")
	})

	t.Run("Empty store yields ungrounded answer", func(t *testing.T) {
		embedder := &fakeEmbedder{dims: 2}
		generator := &fakeGenerator{answer: "should not run"}
		engine := newTestEngine(t, embedder, generator)

		answered, err := engine.Answer(ctx, "How do I authenticate?")

		require.NoError(t, err)
		assert.False(t, answered.Grounded)
		assert.Equal(t, 0, generator.calls)
	})
}

func TestEngineIngestDocuments(t *testing.T) {
	ctx := context.Background()

	t.Run("Ingestion reports chunk count and updates readiness", func(t *testing.T) {
		embedder := &fakeEmbedder{dims: 2}
		engine := newTestEngine(t, embedder, &fakeGenerator{})

		before, err := engine.Ready(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, before)

		count, err := engine.IngestDocuments(ctx, authCorpus())

		require.NoError(t, err)
		assert.Equal(t, 2, count, "Expected one chunk per short document")

		after, err := engine.Ready(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, after)
	})

	t.Run("Re-ingesting replaces the corpus", func(t *testing.T) {
		embedder := &fakeEmbedder{dims: 2}
		engine := newTestEngine(t, embedder, &fakeGenerator{})

		_, err := engine.IngestDocuments(ctx, authCorpus())
		require.NoError(t, err)

		count, err := engine.IngestDocuments(ctx, authCorpus()[:1])
		require.NoError(t, err)
		assert.Equal(t, 1, count)

		size, err := engine.Ready(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, size)
	})
}

func TestEngineClose(t *testing.T) {
	t.Run("Close without closable embedder is a no-op", func(t *testing.T) {
		engine := newTestEngine(t, &fakeEmbedder{dims: 2}, &fakeGenerator{})

		assert.NoError(t, engine.Close())
	})
}

func TestConfig(t *testing.T) {
	t.Run("Defaults are valid", func(t *testing.T) {
		config := DefaultConfig()
		assert.NoError(t, config.Validate())
		assert.Equal(t, 5, config.TopK)
		assert.InDelta(t, 0.30, config.MinScore, 1e-9)
	})

	t.Run("Environment overrides", func(t *testing.T) {
		t.Setenv("PLAINAPI_TOP_K", "7")
		t.Setenv("PLAINAPI_MIN_SCORE", "0.5")

		config, err := NewConfigFromEnv()

		require.NoError(t, err)
		assert.Equal(t, 7, config.TopK)
		assert.InDelta(t, 0.5, config.MinScore, 1e-9)
	})

	t.Run("Invalid environment value", func(t *testing.T) {
		t.Setenv("PLAINAPI_TOP_K", "many")

		_, err := NewConfigFromEnv()

		assert.ErrorIs(t, err, model.ErrInvalidInput)
	})

	t.Run("Overlap must be smaller than window", func(t *testing.T) {
		config := DefaultConfig()
		config.OverlapTokens = config.WindowTokens

		assert.ErrorIs(t, config.Validate(), model.ErrInvalidInput)
	})
}

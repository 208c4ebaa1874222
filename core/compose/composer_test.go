package compose

import (
	"context"
	"errors"
	"testing"

	"github.com/plainapi/plainapi/generation"
	"github.com/plainapi/plainapi/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeGenerator records prompts and returns a canned answer.
type fakeGenerator struct {
	calls  int
	system string
	prompt string
	answer string
	err    error
}

func (f *fakeGenerator) Generate(ctx context.Context, system string, prompt string, opts generation.Options) (string, error) {
	f.calls++
	f.system = system
	f.prompt = prompt
	if f.err != nil {
		return "", f.err
	}
	return f.answer, nil
}

func passage(rank int, documentID string, text string) *model.RetrievedPassage {
	return &model.RetrievedPassage{
		Chunk: &model.Chunk{
			ID:          model.NewChunkID(documentID, rank*100),
			DocumentID:  documentID,
			Text:        text,
			StartOffset: rank * 100,
			EndOffset:   rank*100 + len(text),
		},
		Score: 0.9 - float64(rank)*0.1,
		Rank:  rank,
	}
}

func TestComposerCompose(t *testing.T) {
	ctx := context.Background()

	t.Run("Grounded answer with citations in rank order", func(t *testing.T) {
		generator := &fakeGenerator{answer: "Use your api_key query parameter [1]. Demo keys are rate limited [2]."}
		composer := NewComposer(generator)

		passages := []*model.RetrievedPassage{
			passage(0, "https://api.nasa.gov/#authentication", "Every request needs an api_key parameter."),
			passage(1, "https://api.nasa.gov/#rate-limits", "DEMO_KEY is limited to 30 requests per hour."),
		}

		answered, err := composer.Compose(ctx, "How do I authenticate?", passages)

		require.NoError(t, err)
		assert.True(t, answered.Grounded)
		assert.Equal(t, 1, generator.calls)
		require.Len(t, answered.Citations, 2)

		// Citation [n] resolves to the nth presented passage.
		assert.Equal(t, 1, answered.Citations[0].Index)
		assert.Equal(t, "https://api.nasa.gov/#authentication", answered.Citations[0].DocumentID)
		assert.Equal(t, 2, answered.Citations[1].Index)
		assert.Equal(t, "https://api.nasa.gov/#rate-limits", answered.Citations[1].DocumentID)
		assert.Equal(t, passages[0].Chunk.StartOffset, answered.Citations[0].StartOffset)
		assert.Equal(t, passages[0].Chunk.EndOffset, answered.Citations[0].EndOffset)
	})

	t.Run("Prompt presents numbered sources and the question", func(t *testing.T) {
		generator := &fakeGenerator{answer: "answer"}
		composer := NewComposer(generator)

		passages := []*model.RetrievedPassage{
			passage(0, "doc-a", "first passage text"),
			passage(1, "doc-b", "second passage text"),
		}

		_, err := composer.Compose(ctx, "What endpoints exist?", passages)

		require.NoError(t, err)
		assert.Contains(t, generator.prompt, "Source [1] (doc-a):")
		assert.Contains(t, generator.prompt, "Source [2] (doc-b):")
		assert.Contains(t, generator.prompt, "first passage text")
		assert.Contains(t, generator.prompt, "Question: What endpoints exist?")
		assert.Contains(t, generator.system, "NASA")
	})

	t.Run("No passages yields disclaimer without generation call", func(t *testing.T) {
		generator := &fakeGenerator{answer: "should never be used"}
		composer := NewComposer(generator)

		answered, err := composer.Compose(ctx, "What is the meaning of life?", nil)

		require.NoError(t, err)
		assert.False(t, answered.Grounded)
		assert.NotEmpty(t, answered.Answer)
		assert.NotContains(t, answered.Answer, "should never be used")
		assert.Empty(t, answered.Citations)
		assert.NotNil(t, answered.Citations, "Expected empty citation list, not nil")
		assert.Equal(t, 0, generator.calls, "Expected no generation call without grounding passages")
	})

	t.Run("Generator failure propagates", func(t *testing.T) {
		generator := &fakeGenerator{err: errors.New("model overloaded")}
		composer := NewComposer(generator)

		_, err := composer.Compose(ctx, "question", []*model.RetrievedPassage{passage(0, "doc-a", "text")})

		assert.Error(t, err)
		assert.Contains(t, err.Error(), "model overloaded")
	})

	t.Run("Answer whitespace is trimmed", func(t *testing.T) {
		generator := &fakeGenerator{answer: "\n  trimmed answer  \n"}
		composer := NewComposer(generator)

		answered, err := composer.Compose(ctx, "question", []*model.RetrievedPassage{passage(0, "doc-a", "text")})

		require.NoError(t, err)
		assert.Equal(t, "trimmed answer", answered.Answer)
	})
}

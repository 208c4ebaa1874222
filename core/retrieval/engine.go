// Package retrieval turns a question into a ranked set of supporting
// passages: embed the question, query the vector store, apply the
// relevance floor.
package retrieval

import (
	"context"
	"fmt"

	"github.com/plainapi/plainapi/embedding"
	"github.com/plainapi/plainapi/helper"
	"github.com/plainapi/plainapi/model"
	"github.com/plainapi/plainapi/store"
)

// Engine retrieves passages relevant to a question.
type Engine struct {
	store    store.VectorStore
	embedder embedding.Embedder
}

// NewEngine creates a new retrieval engine. The embedder and store
// must agree on the embedding dimension.
func NewEngine(vectorStore store.VectorStore, embedder embedding.Embedder) (*Engine, error) {
	if embedder.Dimensions() != vectorStore.Dimension() {
		return nil, helper.NewError("create retrieval engine", fmt.Errorf("%w: embedder produces %d-dimensional vectors, store expects %d", model.ErrDimensionMismatch, embedder.Dimensions(), vectorStore.Dimension()))
	}
	return &Engine{
		store:    vectorStore,
		embedder: embedder,
	}, nil
}

// Retrieve embeds the question, performs the top-k similarity search
// and drops passages below the relevance floor. Store order is
// authoritative; there is no secondary re-ranker. An empty result
// (including when the floor removes all k hits) is the designed signal
// that no grounding is available, not an error.
func (e *Engine) Retrieve(ctx context.Context, question string, config *model.QueryConfig) ([]*model.RetrievedPassage, error) {
	if config == nil {
		defaultConfig := model.DefaultQueryConfig()
		config = &defaultConfig
	}

	vector, err := e.embedder.Embed(ctx, question)
	if err != nil {
		return nil, helper.NewError("embed question", err)
	}

	passages, err := e.store.Search(ctx, vector, config.TopK)
	if err != nil {
		return nil, helper.NewError("search passages", err)
	}

	filtered := make([]*model.RetrievedPassage, 0, len(passages))
	for _, passage := range passages {
		if passage.Score < config.MinScore {
			continue
		}
		passage.Rank = len(filtered)
		filtered = append(filtered, passage)
	}

	return filtered, nil
}

// Package plainapi answers natural-language questions about NASA's
// public API documentation. It composes the retrieval pipeline
// (chunker, embedder, vector store) and the answer composer behind a
// single facade; the HTTP layer depends only on Engine.
package plainapi

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/plainapi/plainapi/core/compose"
	"github.com/plainapi/plainapi/core/pipeline"
	"github.com/plainapi/plainapi/core/retrieval"
	"github.com/plainapi/plainapi/embedding"
	"github.com/plainapi/plainapi/generation"
	"github.com/plainapi/plainapi/helper"
	"github.com/plainapi/plainapi/model"
	"github.com/plainapi/plainapi/store"
	"golang.org/x/sync/semaphore"
)

// Engine is the single entry point for answering questions. Requests
// run independently against an immutable store snapshot; the only
// shared state is the concurrency limiter bounding in-flight external
// calls.
type Engine struct {
	Store     store.VectorStore
	Pipeline  *pipeline.Pipeline
	Retriever *retrieval.Engine
	Composer  *compose.Composer

	queryConfig model.QueryConfig
	sem         *semaphore.Weighted
	log         *slog.Logger
}

// NewEngine creates an Engine from its collaborators. The embedder
// and store must agree on the embedding dimension; the mismatch is a
// construction error, never silently truncated.
func NewEngine(vectorStore store.VectorStore, embedder embedding.Embedder, generator generation.Generator, config Config) (*Engine, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	opts := helper.PrettyHandlerOptions{
		SlogOpts: slog.HandlerOptions{
			Level: slog.LevelInfo,
		},
	}
	logger := slog.New(helper.NewPrettyHandler(os.Stdout, opts))

	retriever, err := retrieval.NewEngine(vectorStore, embedder)
	if err != nil {
		return nil, err
	}

	chunkPipeline := pipeline.NewPipeline(
		pipeline.WindowChunker(config.WindowTokens, config.OverlapTokens),
		embedder,
	)
	chunkPipeline.Concurrency = config.MaxConcurrentRequests

	return &Engine{
		Store:     vectorStore,
		Pipeline:  chunkPipeline,
		Retriever: retriever,
		Composer:  compose.NewComposer(generator),
		queryConfig: model.QueryConfig{
			TopK:     config.TopK,
			MinScore: config.MinScore,
		},
		sem: semaphore.NewWeighted(int64(config.MaxConcurrentRequests)),
		log: logger,
	}, nil
}

// Answer answers one question: validate, retrieve, compose. An empty
// or whitespace-only question fails with ErrInvalidInput before any
// external call is made. Cancellation aborts the in-flight embedding
// or generation call; no partial AnsweredQuery is ever returned.
func (e *Engine) Answer(ctx context.Context, question string) (*model.AnsweredQuery, error) {
	if strings.TrimSpace(question) == "" {
		return nil, helper.NewError("validate question", fmt.Errorf("%w: question is empty", model.ErrInvalidInput))
	}

	if err := e.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer e.sem.Release(1)

	passages, err := e.Retriever.Retrieve(ctx, question, &e.queryConfig)
	if err != nil {
		return nil, err
	}

	answered, err := e.Composer.Compose(ctx, question, passages)
	if err != nil {
		return nil, err
	}

	e.log.Info("Answered question",
		slog.Int("num_passages", len(passages)),
		slog.Bool("grounded", answered.Grounded),
	)

	return answered, nil
}

// IngestDocuments chunks and embeds the documents and replaces the
// store contents atomically. Queries running concurrently observe
// either the previous corpus or the new one in full, never a mix.
// Returns the number of chunks stored.
func (e *Engine) IngestDocuments(ctx context.Context, docs []*model.Document) (int, error) {
	var allChunks []*model.Chunk

	for _, doc := range docs {
		chunks, err := e.Pipeline.Process(ctx, doc)
		if err != nil {
			return 0, helper.NewError(fmt.Sprintf("process document %s", doc.ID), err)
		}

		e.log.Info("Processed document into chunks",
			slog.Int("num_chunks", len(chunks)),
			slog.String("document_id", doc.ID),
		)

		allChunks = append(allChunks, chunks...)
	}

	if err := e.Store.Build(ctx, allChunks); err != nil {
		return 0, helper.NewError("build store", err)
	}

	e.log.Info("Rebuilt vector store", slog.Int("num_chunks", len(allChunks)), slog.Int("num_documents", len(docs)))

	return len(allChunks), nil
}

// Ready reports whether the engine can serve grounded answers: the
// store must be reachable and hold at least one passage.
func (e *Engine) Ready(ctx context.Context) (int, error) {
	return e.Store.Size(ctx)
}

// Close releases resources held by collaborators that need explicit
// shutdown, such as the local embedding session.
func (e *Engine) Close() error {
	if closer, ok := e.Pipeline.Embedder.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// Package local provides an in-process embedder running a
// sentence-transformers ONNX model through hugot. No network calls at
// query time; the model is downloaded once on first use.
package local

import (
	"context"
	"fmt"

	"github.com/knights-analytics/hugot"
	"github.com/plainapi/plainapi/embedding"
	"github.com/plainapi/plainapi/helper"
)

// Ensure Embedder implements the interface.
var _ embedding.Embedder = (*Embedder)(nil)

// Default model configuration.
const (
	DefaultModel      = "sentence-transformers/all-MiniLM-L6-v2"
	DefaultDimensions = 384
)

// Config holds configuration for the local embedder.
type Config struct {
	// Model is the hugging face model name (default: all-MiniLM-L6-v2).
	Model string

	// Dimensions is the embedding size of the model (default: 384).
	Dimensions int
}

// Embedder runs a local feature-extraction pipeline.
type Embedder struct {
	run        func(texts []string) ([][]float32, error)
	destroy    func() error
	model      string
	dimensions int
}

// NewEmbedder downloads the model if needed and initializes a hugot
// session with the Go backend.
func NewEmbedder(cfg Config) (*Embedder, error) {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Dimensions == 0 {
		cfg.Dimensions = DefaultDimensions
	}

	modelPath, err := helper.PrepareModel(cfg.Model, "onnx/model.onnx")
	if err != nil {
		return nil, err
	}

	session, err := hugot.NewGoSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create hugot session: %w", err)
	}

	config := hugot.FeatureExtractionConfig{
		ModelPath: modelPath,
		Name:      "embedder-pipeline",
	}
	sentencePipeline, err := hugot.NewPipeline(session, config)
	if err != nil {
		if destroyErr := session.Destroy(); destroyErr != nil {
			return nil, fmt.Errorf("failed to create sentence pipeline: %w (cleanup error: %v)", err, destroyErr)
		}
		return nil, fmt.Errorf("failed to create sentence pipeline: %w", err)
	}

	return &Embedder{
		run: func(texts []string) ([][]float32, error) {
			result, err := sentencePipeline.RunPipeline(texts)
			if err != nil {
				return nil, err
			}
			return result.Embeddings, nil
		},
		destroy:    session.Destroy,
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
	}, nil
}

// Embed generates an embedding for a single text.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(embeddings) == 0 {
		return nil, fmt.Errorf("no embedding generated")
	}
	return embeddings[0], nil
}

// EmbedBatch generates embeddings for multiple texts. The context is
// checked before inference; the model run itself is local and fast.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	embeddings, err := e.run(texts)
	if err != nil {
		return nil, fmt.Errorf("failed to generate embeddings: %w", err)
	}
	if len(embeddings) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: got %d embeddings for %d texts", len(embeddings), len(texts))
	}
	return embeddings, nil
}

// Dimensions returns the embedding vector size.
func (e *Embedder) Dimensions() int {
	return e.dimensions
}

// ModelName returns the name of the embedding model being used.
func (e *Embedder) ModelName() string {
	return e.model
}

// Close destroys the hugot session.
func (e *Embedder) Close() error {
	return e.destroy()
}

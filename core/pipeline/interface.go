package pipeline

import (
	"context"
	"fmt"

	"github.com/plainapi/plainapi/embedding"
	"github.com/plainapi/plainapi/helper"
	"github.com/plainapi/plainapi/model"
	"golang.org/x/sync/errgroup"
)

// ChunkFunc is a pure function that splits a document into chunks.
// Implementations must be deterministic: chunking the same document
// twice yields identical chunk ids and spans.
type ChunkFunc func(doc *model.Document) ([]*model.Chunk, error)

// DefaultEmbedBatchSize is the number of chunk texts sent to the
// embedding service per request during processing.
const DefaultEmbedBatchSize = 32

// Pipeline combines chunking and embedding into the build-time path
// from a raw document to store-ready chunks.
type Pipeline struct {
	Chunker  ChunkFunc
	Embedder embedding.Embedder

	// Concurrency bounds the number of in-flight embedding requests.
	// Zero means sequential.
	Concurrency int

	// BatchSize is the number of texts per embedding request.
	BatchSize int
}

// NewPipeline creates a new processing pipeline
func NewPipeline(chunker ChunkFunc, embedder embedding.Embedder) *Pipeline {
	return &Pipeline{
		Chunker:   chunker,
		Embedder:  embedder,
		BatchSize: DefaultEmbedBatchSize,
	}
}

// Process chunks a document and embeds every chunk, returning chunks
// ready for the vector store. Chunk metadata carries the source url
// plus whatever document metadata ingestion attached.
func (p *Pipeline) Process(ctx context.Context, doc *model.Document) ([]*model.Chunk, error) {
	chunks, err := p.Chunker(doc)
	if err != nil {
		return nil, helper.NewError("chunk document", err)
	}
	if len(chunks) == 0 {
		return []*model.Chunk{}, nil
	}

	for _, chunk := range chunks {
		metadata := model.Metadata{"source_url": doc.ID}
		for k, v := range doc.Metadata {
			metadata[k] = v
		}
		chunk.Metadata = metadata
	}

	batchSize := p.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultEmbedBatchSize
	}

	g, gctx := errgroup.WithContext(ctx)
	if p.Concurrency > 0 {
		g.SetLimit(p.Concurrency)
	} else {
		g.SetLimit(1)
	}

	for start := 0; start < len(chunks); start += batchSize {
		end := min(start+batchSize, len(chunks))
		batch := chunks[start:end]

		g.Go(func() error {
			texts := make([]string, len(batch))
			for i, chunk := range batch {
				texts[i] = chunk.Text
			}

			vectors, err := p.Embedder.EmbedBatch(gctx, texts)
			if err != nil {
				return helper.NewError("embed chunk batch", err)
			}
			if len(vectors) != len(batch) {
				return helper.NewError("embed chunk batch", fmt.Errorf("got %d embeddings for %d chunks", len(vectors), len(batch)))
			}

			for i, vector := range vectors {
				if len(vector) != p.Embedder.Dimensions() {
					return helper.NewError("embed chunk batch", fmt.Errorf("%w: embedding has dimension %d, expected %d", model.ErrDimensionMismatch, len(vector), p.Embedder.Dimensions()))
				}
				batch[i].Embedding = vector
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return chunks, nil
}

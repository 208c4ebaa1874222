// Package ingest builds the vector store from the scraper's output: a
// directory of raw-document JSON files, one per documentation page.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/plainapi/plainapi/core/pipeline"
	"github.com/plainapi/plainapi/helper"
	"github.com/plainapi/plainapi/model"
	"github.com/plainapi/plainapi/store"
)

// LoadDocuments reads every raw-document JSON file in dir. Files are
// processed in name order so rebuilds are reproducible. Documents with
// empty content are kept; the chunker turns them into zero chunks.
func LoadDocuments(dir string) ([]*model.Document, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, helper.NewError("read raw docs directory", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	docs := make([]*model.Document, 0, len(names))
	for _, name := range names {
		doc, err := model.NewDocumentFromFile(filepath.Join(dir, name))
		if err != nil {
			return nil, helper.NewError(fmt.Sprintf("load document %s", name), err)
		}
		doc.Metadata["document_type"] = string(Classify(doc))
		if !doc.ScrapedAt.IsZero() {
			doc.Metadata["scraped_at"] = doc.ScrapedAt.Format("2006-01-02T15:04:05Z07:00")
		}
		docs = append(docs, doc)
	}

	return docs, nil
}

// Classify derives the document type from the source URL and content.
// The checks run from most to least specific; overview is the
// fallback.
func Classify(doc *model.Document) model.DocumentType {
	url := strings.ToLower(doc.ID)
	content := strings.ToLower(doc.Content)

	switch {
	case strings.Contains(content, "example") || strings.Contains(url, "example"):
		return model.DocumentTypeExample
	case strings.Contains(content, "parameter") || strings.Contains(url, "param"):
		return model.DocumentTypeParameter
	case strings.Contains(content, "response") || strings.Contains(content, "schema"):
		return model.DocumentTypeResponseSchema
	case strings.Contains(content, "error") || strings.Contains(content, "status"):
		return model.DocumentTypeErrorCode
	case strings.Contains(content, "tutorial") || strings.Contains(content, "guide"):
		return model.DocumentTypeTutorial
	case strings.Contains(url, "/#") || strings.Contains(content, "endpoint"):
		return model.DocumentTypeAPIEndpoint
	default:
		return model.DocumentTypeOverview
	}
}

// Run loads the scraped corpus from dir, chunks and embeds it through
// the pipeline and replaces the store contents atomically. Returns the
// number of chunks stored.
func Run(ctx context.Context, p *pipeline.Pipeline, vectorStore store.VectorStore, dir string, logger *slog.Logger) (int, error) {
	docs, err := LoadDocuments(dir)
	if err != nil {
		return 0, err
	}

	logger.Info("Loaded raw documents", slog.Int("num_documents", len(docs)), slog.String("dir", dir))

	var allChunks []*model.Chunk
	for _, doc := range docs {
		chunks, err := p.Process(ctx, doc)
		if err != nil {
			return 0, helper.NewError(fmt.Sprintf("process document %s", doc.ID), err)
		}
		allChunks = append(allChunks, chunks...)
	}

	if err := vectorStore.Build(ctx, allChunks); err != nil {
		return 0, helper.NewError("build store", err)
	}

	logger.Info("Rebuilt vector store", slog.Int("num_chunks", len(allChunks)), slog.Int("num_documents", len(docs)))

	return len(allChunks), nil
}

package model

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

// DocumentType classifies what kind of API documentation a document
// contains. Derived from the source URL and content at ingestion time.
type DocumentType string

const (
	DocumentTypeAPIEndpoint    DocumentType = "api_endpoint"
	DocumentTypeParameter      DocumentType = "parameter"
	DocumentTypeExample        DocumentType = "example"
	DocumentTypeResponseSchema DocumentType = "response_schema"
	DocumentTypeErrorCode      DocumentType = "error_code"
	DocumentTypeTutorial       DocumentType = "tutorial"
	DocumentTypeOverview       DocumentType = "overview"
)

// Document represents a source document from the scraped corpus.
// The ID is the stable source URL, so re-scraping the same page
// produces the same document identity. Documents are immutable once
// ingested; a re-scrape replaces them wholesale.
type Document struct {
	ID          string    `json:"id"` // source URL
	Title       string    `json:"title,omitempty"`
	Content     string    `json:"content"`
	ContentType string    `json:"content_type,omitempty"`
	ScrapedAt   time.Time `json:"scraped_at,omitempty"`
	Metadata    Metadata  `json:"metadata,omitempty"`
}

// rawDocument matches the JSON layout the scraper writes per page.
type rawDocument struct {
	URL         string    `json:"url"`
	Title       string    `json:"title"`
	Content     string    `json:"content"`
	ContentType string    `json:"content_type"`
	ScrapedAt   time.Time `json:"scraped_at"`
}

// NewDocumentFromFile reads a scraped raw-document JSON file and
// creates a Document. The title defaults to the filename when the
// scraper did not record one.
func NewDocumentFromFile(filePath string) (*Document, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	var raw rawDocument
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	title := raw.Title
	if title == "" {
		filename := filepath.Base(filePath)
		title = filename[:len(filename)-len(filepath.Ext(filename))]
	}

	return &Document{
		ID:          raw.URL,
		Title:       title,
		Content:     raw.Content,
		ContentType: raw.ContentType,
		ScrapedAt:   raw.ScrapedAt,
		Metadata:    Metadata{},
	}, nil
}

package domain

import (
	"fmt"
	"strings"
	"time"
)

// BlankPagePlaceholder is the text stored for pages that yield no text from
// either extraction path.
const BlankPagePlaceholder = " "

// SourceDocument is an uploaded file as seen by the ingestion pipeline.
type SourceDocument struct {
	Name string
	Data []byte
}

// PageRecord holds the extracted text of one page of a source document
type PageRecord struct {
	PageNumber int
	SourceName string
	Text       string
	OCR        bool // text came from the OCR fallback
}

// NewPageRecord creates a PageRecord, normalizing blank text to the placeholder.
func NewPageRecord(pageNumber int, sourceName, text string, ocr bool) PageRecord {
	if strings.TrimSpace(text) == "" {
		text = BlankPagePlaceholder
	}
	return PageRecord{
		PageNumber: pageNumber,
		SourceName: sourceName,
		Text:       text,
		OCR:        ocr,
	}
}

// ChunkMetadata carries page provenance for a chunk
type ChunkMetadata struct {
	Page   int    `json:"page"`
	Source string `json:"source"`
}

// Chunk is a bounded text segment, the unit of embedding and indexing.
type Chunk struct {
	ID         string
	ChunkIndex int
	Text       string
	Metadata   ChunkMetadata
}

// IndexedDocument is a chunk plus its embedding, stored under a collection.
type IndexedDocument struct {
	Chunk      Chunk
	Collection string
	Embedding  []float32
	CreatedAt  time.Time
}

// RetrievedDocument is a read-only view of an indexed chunk returned by a
// similarity query. Page is 0 when unknown.
type RetrievedDocument struct {
	Text   string  `json:"text"`
	Page   int     `json:"page"`
	Source string  `json:"source,omitempty"`
	Score  float32 `json:"score"`
}

// PageLabel renders the page number for display, "?" when unknown.
func (d RetrievedDocument) PageLabel() string {
	if d.Page <= 0 {
		return "?"
	}
	return fmt.Sprintf("%d", d.Page)
}

// ValidatePageRecord validates a PageRecord instance
func ValidatePageRecord(p PageRecord) error {
	if p.PageNumber < 1 {
		return fmt.Errorf("page record PageNumber must be positive, got %d", p.PageNumber)
	}
	if p.Text == "" {
		return fmt.Errorf("page record Text cannot be empty")
	}
	return nil
}

// ValidateIndexedDocument validates an IndexedDocument before it is upserted
func ValidateIndexedDocument(d IndexedDocument) error {
	if d.Collection == "" {
		return fmt.Errorf("indexed document Collection is required")
	}
	if d.Chunk.ID == "" {
		return fmt.Errorf("indexed document chunk ID is required")
	}
	if d.Chunk.Metadata.Page < 1 {
		return fmt.Errorf("indexed document page must be positive, got %d", d.Chunk.Metadata.Page)
	}
	if len(d.Embedding) == 0 {
		return fmt.Errorf("indexed document Embedding cannot be empty")
	}
	return nil
}

package service

import (
	"context"
	"fmt"
	"time"

	"github.com/cloo-solutions/askdoc/internal/domain"
	"github.com/cloo-solutions/askdoc/internal/storage"
	"github.com/cloo-solutions/askdoc/internal/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultCollection is the vector collection all documents are indexed into
const DefaultCollection = "askdoc-production-v1"

// EmbeddingClient defines the interface for generating embeddings
type EmbeddingClient interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
}

// VectorStore persists indexed chunks and answers nearest-neighbour queries
type VectorStore interface {
	Upsert(ctx context.Context, docs []domain.IndexedDocument) error
	SimilaritySearch(ctx context.Context, collection string, vector []float32, k int) ([]domain.RetrievedDocument, error)
}

// DocumentArchive stores raw uploads
type DocumentArchive interface {
	Put(ctx context.Context, key, contentType string, data []byte) error
}

// UUIDGenerator defines the interface for generating UUIDs
type UUIDGenerator interface {
	Generate() string
}

// DefaultUUIDGenerator implements UUIDGenerator using google/uuid
type DefaultUUIDGenerator struct{}

// Generate creates a new UUID
func (g *DefaultUUIDGenerator) Generate() string {
	return uuid.NewString()
}

// Indexer embeds chunks and writes them to the vector store
type Indexer struct {
	embedder   EmbeddingClient
	store      VectorStore
	collection string
	uuidGen    UUIDGenerator
	now        func() time.Time
	logger     *zap.Logger
}

// NewIndexer creates an Indexer writing to collection.
func NewIndexer(embedder EmbeddingClient, store VectorStore, collection string, logger *zap.Logger) *Indexer {
	if collection == "" {
		collection = DefaultCollection
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Indexer{
		embedder:   embedder,
		store:      store,
		collection: collection,
		uuidGen:    &DefaultUUIDGenerator{},
		now:        func() time.Time { return time.Now().UTC() },
		logger:     logger,
	}
}

// Collection returns the collection chunks are written to
func (i *Indexer) Collection() string {
	return i.collection
}

// Index embeds and upserts chunks one at a time, returning how many were
// stored. On failure the chunks already stored stay in the collection.
func (i *Indexer) Index(ctx context.Context, chunks []domain.Chunk) (int, error) {
	ctx, span := telemetry.StartSpan(ctx, "indexer.Index", telemetry.SpanAttributes{
		Collection: i.collection,
		Operation:  "index",
	})
	defer span.End()

	indexed := 0
	for _, chunk := range chunks {
		if chunk.ID == "" {
			chunk.ID = i.uuidGen.Generate()
		}

		embedding, err := i.embedder.GenerateEmbedding(ctx, chunk.Text)
		if err != nil {
			span.SetError(err)
			return indexed, domain.ServiceFailure(fmt.Sprintf("embed chunk %d (page %d)", chunk.ChunkIndex, chunk.Metadata.Page), err)
		}

		doc := domain.IndexedDocument{
			Chunk:      chunk,
			Collection: i.collection,
			Embedding:  embedding,
			CreatedAt:  i.now(),
		}
		if err := i.store.Upsert(ctx, []domain.IndexedDocument{doc}); err != nil {
			span.SetError(err)
			return indexed, domain.ServiceFailure(fmt.Sprintf("upsert chunk %d (page %d)", chunk.ChunkIndex, chunk.Metadata.Page), err)
		}
		indexed++
	}

	span.SetData("indexed", indexed)
	return indexed, nil
}

// IngestReport summarizes one ingestion run
type IngestReport struct {
	Source     string        `json:"source"`
	ArchiveKey string        `json:"archive_key,omitempty"`
	Pages      int           `json:"pages"`
	OCRPages   int           `json:"ocr_pages"`
	Chunks     int           `json:"chunks"`
	Indexed    int           `json:"indexed"`
	Duration   time.Duration `json:"duration_ns"`
}

// IngestService runs archive, extract, chunk and index for one document
type IngestService struct {
	extractor *ExtractionService
	indexer   *Indexer
	archive   DocumentArchive
	chunkCfg  ChunkConfig
	logger    *zap.Logger
}

// NewIngestService creates a new IngestService. archive may be nil.
func NewIngestService(extractor *ExtractionService, indexer *Indexer, archive DocumentArchive, chunkCfg ChunkConfig, logger *zap.Logger) *IngestService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IngestService{
		extractor: extractor,
		indexer:   indexer,
		archive:   archive,
		chunkCfg:  chunkCfg.normalized(),
		logger:    logger,
	}
}

// Ingest processes doc end to end. Errors are *domain.StageError.
func (s *IngestService) Ingest(ctx context.Context, doc domain.SourceDocument, progress ProgressFunc) (*IngestReport, error) {
	start := time.Now()
	ctx, span := telemetry.StartSpan(ctx, "ingest.Ingest", telemetry.SpanAttributes{
		Source:     doc.Name,
		Collection: s.indexer.Collection(),
		Operation:  "ingest",
	})
	defer span.End()

	report := &IngestReport{Source: doc.Name}

	if len(doc.Data) == 0 {
		return nil, domain.NewStageError(domain.StageExtract, domain.ErrMalformedDocument)
	}

	if s.archive != nil {
		key := storage.UploadKey(doc.Name)
		if err := s.archive.Put(ctx, key, "application/pdf", doc.Data); err != nil {
			span.SetError(err)
			return nil, domain.NewStageError(domain.StageArchive, domain.ServiceFailure("archive upload", err))
		}
		report.ArchiveKey = key
		telemetry.AddBreadcrumb(ctx, "ingest", "archived "+key)
	}

	pages, err := s.extractor.ExtractPages(ctx, doc, progress)
	if err != nil {
		span.SetError(err)
		return nil, domain.NewStageError(domain.StageExtract, err)
	}
	report.Pages = len(pages)
	for _, p := range pages {
		if p.OCR {
			report.OCRPages++
		}
	}

	chunks := SplitPages(pages, s.chunkCfg)
	if len(chunks) == 0 {
		return nil, domain.NewStageError(domain.StageChunk, domain.ErrMalformedDocument)
	}
	report.Chunks = len(chunks)
	s.logger.Info("split document", zap.String("source", doc.Name), zap.Int("chunks", len(chunks)))

	indexed, err := s.indexer.Index(ctx, chunks)
	report.Indexed = indexed
	if err != nil {
		s.logger.Error("indexing failed",
			zap.String("source", doc.Name),
			zap.Int("indexed", indexed),
			zap.Int("chunks", len(chunks)),
			zap.Error(err),
		)
		return report, domain.NewStageError(domain.StageIndex, err)
	}

	report.Duration = time.Since(start)
	s.logger.Info("ingested document",
		zap.String("source", doc.Name),
		zap.Int("pages", report.Pages),
		zap.Int("ocr_pages", report.OCRPages),
		zap.Int("chunks", report.Chunks),
		zap.Duration("duration", report.Duration),
	)
	return report, nil
}

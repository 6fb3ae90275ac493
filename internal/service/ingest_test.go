package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cloo-solutions/askdoc/internal/domain"
	"github.com/cloo-solutions/askdoc/internal/pdf"
	"github.com/cloo-solutions/askdoc/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestIndexer(embedder EmbeddingClient, store VectorStore) *Indexer {
	idx := NewIndexer(embedder, store, "askdoc-test", nil)
	idx.uuidGen = &sequenceUUID{ids: []string{"id-1", "id-2", "id-3"}}
	idx.now = func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }
	return idx
}

func TestIndexer_Index(t *testing.T) {
	mockEmbed := new(MockEmbeddingClient)
	mockStore := new(MockVectorStore)
	idx := newTestIndexer(mockEmbed, mockStore)
	ctx := context.Background()

	chunks := []domain.Chunk{
		{ChunkIndex: 0, Text: "first", Metadata: domain.ChunkMetadata{Page: 1, Source: "a.pdf"}},
		{ChunkIndex: 1, Text: "second", Metadata: domain.ChunkMetadata{Page: 2, Source: "a.pdf"}},
	}

	mockEmbed.On("GenerateEmbedding", mock.Anything, "first").Return(vec(1, 0), nil)
	mockEmbed.On("GenerateEmbedding", mock.Anything, "second").Return(vec(0, 1), nil)
	mockStore.On("Upsert", mock.Anything, mock.MatchedBy(func(docs []domain.IndexedDocument) bool {
		return len(docs) == 1 && docs[0].Chunk.ID == "id-1" && docs[0].Chunk.Metadata.Page == 1 &&
			docs[0].Collection == "askdoc-test" && docs[0].Embedding[0] == 1
	})).Return(nil).Once()
	mockStore.On("Upsert", mock.Anything, mock.MatchedBy(func(docs []domain.IndexedDocument) bool {
		return len(docs) == 1 && docs[0].Chunk.ID == "id-2" && docs[0].Chunk.Metadata.Page == 2
	})).Return(nil).Once()

	n, err := idx.Index(ctx, chunks)

	require.NoError(t, err)
	assert.Equal(t, 2, n)
	mockEmbed.AssertExpectations(t)
	mockStore.AssertExpectations(t)
}

func TestIndexer_KeepsExistingIDs(t *testing.T) {
	mockEmbed := new(MockEmbeddingClient)
	mockStore := new(MockVectorStore)
	idx := newTestIndexer(mockEmbed, mockStore)

	mockEmbed.On("GenerateEmbedding", mock.Anything, "x").Return(vec(1), nil)
	mockStore.On("Upsert", mock.Anything, mock.MatchedBy(func(docs []domain.IndexedDocument) bool {
		return docs[0].Chunk.ID == "preset"
	})).Return(nil)

	_, err := idx.Index(context.Background(), []domain.Chunk{{ID: "preset", Text: "x", Metadata: domain.ChunkMetadata{Page: 1}}})

	require.NoError(t, err)
	mockStore.AssertExpectations(t)
}

func TestIndexer_EmbeddingFailureStopsAndReportsProgress(t *testing.T) {
	mockEmbed := new(MockEmbeddingClient)
	mockStore := new(MockVectorStore)
	idx := newTestIndexer(mockEmbed, mockStore)

	mockEmbed.On("GenerateEmbedding", mock.Anything, "ok").Return(vec(1), nil)
	mockEmbed.On("GenerateEmbedding", mock.Anything, "fails").Return(nil, errServiceDown)
	mockStore.On("Upsert", mock.Anything, mock.Anything).Return(nil).Once()

	n, err := idx.Index(context.Background(), []domain.Chunk{
		{Text: "ok", Metadata: domain.ChunkMetadata{Page: 1}},
		{Text: "fails", Metadata: domain.ChunkMetadata{Page: 1}},
		{Text: "never", Metadata: domain.ChunkMetadata{Page: 2}},
	})

	assert.Equal(t, 1, n)
	assert.ErrorIs(t, err, domain.ErrServiceUnavailable)
	assert.ErrorIs(t, err, errServiceDown)
	mockEmbed.AssertNotCalled(t, "GenerateEmbedding", mock.Anything, "never")
	mockStore.AssertNumberOfCalls(t, "Upsert", 1)
}

func TestIndexer_UpsertFailure(t *testing.T) {
	mockEmbed := new(MockEmbeddingClient)
	mockStore := new(MockVectorStore)
	idx := newTestIndexer(mockEmbed, mockStore)

	mockEmbed.On("GenerateEmbedding", mock.Anything, mock.Anything).Return(vec(1), nil)
	mockStore.On("Upsert", mock.Anything, mock.Anything).Return(errors.New("connection refused"))

	n, err := idx.Index(context.Background(), []domain.Chunk{{Text: "a", Metadata: domain.ChunkMetadata{Page: 1}}})

	assert.Zero(t, n)
	assert.Equal(t, domain.ErrCodeServiceError, domain.ErrorCode(err))
}

func TestNewIndexer_DefaultCollection(t *testing.T) {
	assert.Equal(t, DefaultCollection, NewIndexer(nil, nil, "", nil).Collection())
}

func newPDFIngestService(embedder EmbeddingClient, store VectorStore, ocr OCRClient, archive DocumentArchive) *IngestService {
	renderer := pdf.NewRenderer(pdf.RendererConfig{Runner: &jpegRunner{}})
	extractor := NewExtractionService(NewPDFOpener(pdf.NewOpener(renderer)), ocr, nil)
	return NewIngestService(extractor, newTestIndexer(embedder, store), archive, DefaultChunkConfig(), nil)
}

func TestIngestService_DigitalOnePage(t *testing.T) {
	mockEmbed := new(MockEmbeddingClient)
	mockStore := new(MockVectorStore)
	mockOCR := new(MockOCRClient)
	svc := newPDFIngestService(mockEmbed, mockStore, mockOCR, nil)

	text := "Revenue grew 20% in Q1. The board approved the expansion plan for next year."
	var stored []domain.IndexedDocument
	mockEmbed.On("GenerateEmbedding", mock.Anything, mock.Anything).Return(vec(0.1, 0.2), nil)
	mockStore.On("Upsert", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		stored = append(stored, args.Get(1).([]domain.IndexedDocument)...)
	}).Return(nil)

	report, err := svc.Ingest(context.Background(), domain.SourceDocument{Name: "q1.pdf", Data: testutil.BuildPDF(text)}, nil)

	require.NoError(t, err)
	assert.Equal(t, 1, report.Pages)
	assert.Zero(t, report.OCRPages)
	assert.Equal(t, 1, report.Chunks)
	assert.Equal(t, 1, report.Indexed)
	assert.Empty(t, report.ArchiveKey)
	require.Len(t, stored, 1)
	assert.Equal(t, 1, stored[0].Chunk.Metadata.Page)
	assert.Equal(t, "q1.pdf", stored[0].Chunk.Metadata.Source)
	assert.Contains(t, stored[0].Chunk.Text, "Revenue grew 20% in Q1.")
	mockOCR.AssertNotCalled(t, "ExtractText", mock.Anything, mock.Anything)
}

func TestIngestService_ScannedPageWithEmptyOCR(t *testing.T) {
	mockEmbed := new(MockEmbeddingClient)
	mockStore := new(MockVectorStore)
	mockOCR := new(MockOCRClient)
	svc := newPDFIngestService(mockEmbed, mockStore, mockOCR, nil)

	mockOCR.On("ExtractText", mock.Anything, mock.Anything).Return("")
	mockEmbed.On("GenerateEmbedding", mock.Anything, domain.BlankPagePlaceholder).Return(vec(0), nil)
	mockStore.On("Upsert", mock.Anything, mock.MatchedBy(func(docs []domain.IndexedDocument) bool {
		return docs[0].Chunk.Text == " " && docs[0].Chunk.Metadata.Page == 1
	})).Return(nil)

	report, err := svc.Ingest(context.Background(), domain.SourceDocument{Name: "scan.pdf", Data: testutil.BuildPDF("")}, nil)

	require.NoError(t, err)
	assert.Equal(t, 1, report.Pages)
	assert.Equal(t, 1, report.OCRPages)
	assert.Equal(t, 1, report.Chunks)
	mockStore.AssertExpectations(t)
}

func TestIngestService_Archives(t *testing.T) {
	mockEmbed := new(MockEmbeddingClient)
	mockStore := new(MockVectorStore)
	mockArchive := new(MockArchive)
	svc := newPDFIngestService(mockEmbed, mockStore, nil, mockArchive)
	data := testutil.BuildPDF(digitalText)

	mockArchive.On("Put", mock.Anything, mock.MatchedBy(func(key string) bool {
		return len(key) > len("uploads/") && key[:8] == "uploads/"
	}), "application/pdf", data).Return(nil)
	mockEmbed.On("GenerateEmbedding", mock.Anything, mock.Anything).Return(vec(1), nil)
	mockStore.On("Upsert", mock.Anything, mock.Anything).Return(nil)

	report, err := svc.Ingest(context.Background(), domain.SourceDocument{Name: "report.pdf", Data: data}, nil)

	require.NoError(t, err)
	assert.Contains(t, report.ArchiveKey, "report.pdf")
	mockArchive.AssertExpectations(t)
}

func TestIngestService_StageErrors(t *testing.T) {
	t.Run("archive", func(t *testing.T) {
		mockArchive := new(MockArchive)
		svc := newPDFIngestService(new(MockEmbeddingClient), new(MockVectorStore), nil, mockArchive)
		mockArchive.On("Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(errors.New("access denied"))

		_, err := svc.Ingest(context.Background(), domain.SourceDocument{Name: "a.pdf", Data: testutil.BuildPDF(digitalText)}, nil)

		stage, ok := domain.FailedStage(err)
		require.True(t, ok)
		assert.Equal(t, domain.StageArchive, stage)
	})

	t.Run("extract", func(t *testing.T) {
		mockStore := new(MockVectorStore)
		svc := newPDFIngestService(new(MockEmbeddingClient), mockStore, nil, nil)

		_, err := svc.Ingest(context.Background(), domain.SourceDocument{Name: "a.txt", Data: []byte("not a pdf")}, nil)

		stage, _ := domain.FailedStage(err)
		assert.Equal(t, domain.StageExtract, stage)
		assert.ErrorIs(t, err, domain.ErrMalformedDocument)
		mockStore.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
	})

	t.Run("empty upload", func(t *testing.T) {
		svc := newPDFIngestService(new(MockEmbeddingClient), new(MockVectorStore), nil, nil)

		_, err := svc.Ingest(context.Background(), domain.SourceDocument{Name: "a.pdf"}, nil)

		assert.ErrorIs(t, err, domain.ErrMalformedDocument)
	})

	t.Run("index", func(t *testing.T) {
		mockEmbed := new(MockEmbeddingClient)
		svc := newPDFIngestService(mockEmbed, new(MockVectorStore), nil, nil)
		mockEmbed.On("GenerateEmbedding", mock.Anything, mock.Anything).Return(nil, errServiceDown)

		report, err := svc.Ingest(context.Background(), domain.SourceDocument{Name: "a.pdf", Data: testutil.BuildPDF(digitalText)}, nil)

		stage, _ := domain.FailedStage(err)
		assert.Equal(t, domain.StageIndex, stage)
		assert.ErrorIs(t, err, domain.ErrServiceUnavailable)
		require.NotNil(t, report)
		assert.Equal(t, 1, report.Chunks)
		assert.Zero(t, report.Indexed)
	})
}

package service

import (
	"context"
	"sort"

	"github.com/cloo-solutions/askdoc/internal/domain"
	"github.com/cloo-solutions/askdoc/internal/telemetry"
	"go.uber.org/zap"
)

const (
	MinTopK     = 1
	MaxTopK     = 10
	DefaultTopK = 5
)

// ClampTopK returns k limited to [MinTopK, MaxTopK], DefaultTopK when k <= 0.
func ClampTopK(k int) int {
	switch {
	case k <= 0:
		return DefaultTopK
	case k > MaxTopK:
		return MaxTopK
	default:
		return k
	}
}

// RetrieverService finds the chunks most similar to a query
type RetrieverService struct {
	embedder   EmbeddingClient
	store      VectorStore
	collection string
	logger     *zap.Logger
}

// NewRetrieverService creates a new RetrieverService
func NewRetrieverService(embedder EmbeddingClient, store VectorStore, collection string, logger *zap.Logger) *RetrieverService {
	if collection == "" {
		collection = DefaultCollection
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RetrieverService{
		embedder:   embedder,
		store:      store,
		collection: collection,
		logger:     logger,
	}
}

// Search returns at most k documents ordered by non-increasing score.
func (s *RetrieverService) Search(ctx context.Context, query string, k int) ([]domain.RetrievedDocument, error) {
	if query == "" {
		return nil, domain.ErrEmptyQuestion
	}
	k = ClampTopK(k)

	ctx, span := telemetry.StartSpan(ctx, "retriever.Search", telemetry.SpanAttributes{
		Collection: s.collection,
		Operation:  "retrieve",
	})
	defer span.End()

	vector, err := s.embedder.GenerateEmbedding(ctx, query)
	if err != nil {
		span.SetError(err)
		return nil, domain.ServiceFailure("embed query", err)
	}

	docs, err := s.store.SimilaritySearch(ctx, s.collection, vector, k)
	if err != nil {
		span.SetError(err)
		return nil, domain.ServiceFailure("similarity search", err)
	}

	sort.SliceStable(docs, func(i, j int) bool {
		return docs[i].Score > docs[j].Score
	})
	if len(docs) > k {
		docs = docs[:k]
	}

	span.SetData("results", len(docs))
	s.logger.Debug("retrieved documents", zap.String("query", query), zap.Int("k", k), zap.Int("results", len(docs)))
	return docs, nil
}

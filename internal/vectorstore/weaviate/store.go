// Package weaviate stores indexed chunks in a Weaviate class, one class per
// collection, with vectors supplied by the caller.
package weaviate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/cloo-solutions/askdoc/internal/domain"
	"github.com/weaviate/weaviate-go-client/v4/weaviate"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/auth"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"
	"go.uber.org/zap"
)

// Config holds connection settings for a Weaviate instance
type Config struct {
	Host   string
	Scheme string
	APIKey string
}

// Store implements the vector store contract on top of Weaviate
type Store struct {
	client *weaviate.Client
	logger *zap.Logger

	mu    sync.Mutex
	known map[string]bool
}

// NewStore creates a Weaviate-backed store
func NewStore(cfg Config, logger *zap.Logger) (*Store, error) {
	if cfg.Host == "" {
		return nil, errors.New("weaviate host is required")
	}
	if cfg.Scheme == "" {
		cfg.Scheme = "http"
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	clientCfg := weaviate.Config{
		Host:   cfg.Host,
		Scheme: cfg.Scheme,
	}
	if cfg.APIKey != "" {
		clientCfg.AuthConfig = auth.ApiKey{Value: cfg.APIKey}
	}

	client, err := weaviate.NewClient(clientCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create weaviate client: %w", err)
	}

	return &Store{
		client: client,
		logger: logger.With(zap.String("component", "weaviate")),
		known:  make(map[string]bool),
	}, nil
}

// ClassName maps a collection name to a valid Weaviate class name,
// e.g. "askdoc-production-v1" becomes "AskdocProductionV1".
func ClassName(collection string) string {
	var sb strings.Builder
	upper := true
	for _, r := range collection {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			upper = true
			continue
		}
		if upper {
			r = unicode.ToUpper(r)
			upper = false
		}
		sb.WriteRune(r)
	}
	name := sb.String()
	if name == "" {
		return "Document"
	}
	if !unicode.IsLetter([]rune(name)[0]) {
		name = "C" + name
	}
	return name
}

func chunkClass(className string) *models.Class {
	return &models.Class{
		Class:       className,
		Description: "Indexed document chunks",
		Vectorizer:  "none",
		VectorIndexConfig: map[string]interface{}{
			"distance": "cosine",
		},
		Properties: []*models.Property{
			{Name: "content", DataType: []string{"text"}},
			{Name: "source", DataType: []string{"text"}},
			{Name: "page", DataType: []string{"int"}},
			{Name: "chunkIndex", DataType: []string{"int"}},
			{Name: "createdAt", DataType: []string{"date"}},
		},
	}
}

// EnsureCollection creates the class for collection if it does not exist.
func (s *Store) EnsureCollection(ctx context.Context, collection string) error {
	className := ClassName(collection)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.known[className] {
		return nil
	}

	exists, err := s.client.Schema().ClassExistenceChecker().WithClassName(className).Do(ctx)
	if err != nil {
		return fmt.Errorf("failed to check weaviate class: %w", err)
	}
	if !exists {
		err := s.client.Schema().ClassCreator().WithClass(chunkClass(className)).Do(ctx)
		if err != nil && !strings.Contains(err.Error(), "already exists") {
			return fmt.Errorf("failed to create weaviate class %s: %w", className, err)
		}
		s.logger.Info("created weaviate class", zap.String("class", className))
	}

	s.known[className] = true
	return nil
}

func properties(d domain.IndexedDocument) map[string]interface{} {
	createdAt := d.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	return map[string]interface{}{
		"content":    d.Chunk.Text,
		"source":     d.Chunk.Metadata.Source,
		"page":       d.Chunk.Metadata.Page,
		"chunkIndex": d.Chunk.ChunkIndex,
		"createdAt":  createdAt.Format(time.RFC3339),
	}
}

// Upsert creates one object per document
func (s *Store) Upsert(ctx context.Context, docs []domain.IndexedDocument) error {
	for _, d := range docs {
		if err := domain.ValidateIndexedDocument(d); err != nil {
			return err
		}
		if err := s.EnsureCollection(ctx, d.Collection); err != nil {
			return err
		}

		_, err := s.client.Data().Creator().
			WithClassName(ClassName(d.Collection)).
			WithID(d.Chunk.ID).
			WithProperties(properties(d)).
			WithVector(d.Embedding).
			Do(ctx)
		if err != nil {
			return fmt.Errorf("failed to add chunk %s: %w", d.Chunk.ID, err)
		}
	}
	return nil
}

// SimilaritySearch runs a nearVector query and scores hits as 1 - distance
func (s *Store) SimilaritySearch(ctx context.Context, collection string, vector []float32, k int) ([]domain.RetrievedDocument, error) {
	if k <= 0 {
		return nil, nil
	}
	className := ClassName(collection)

	result, err := s.client.GraphQL().Get().
		WithClassName(className).
		WithNearVector((&graphql.NearVectorArgumentBuilder{}).WithVector(vector)).
		WithFields(
			graphql.Field{Name: "content"},
			graphql.Field{Name: "source"},
			graphql.Field{Name: "page"},
			graphql.Field{Name: "_additional", Fields: []graphql.Field{
				{Name: "distance"},
			}},
		).
		WithLimit(k).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("weaviate search failed: %w", err)
	}
	if len(result.Errors) > 0 {
		msgs := make([]string, 0, len(result.Errors))
		for _, e := range result.Errors {
			msgs = append(msgs, e.Message)
		}
		// An empty collection has no class yet
		if strings.Contains(strings.Join(msgs, "; "), "Cannot query field") {
			return nil, nil
		}
		return nil, fmt.Errorf("weaviate search failed: %s", strings.Join(msgs, "; "))
	}

	return parseGetResponse(result.Data, className), nil
}

func parseGetResponse(data map[string]models.JSONObject, className string) []domain.RetrievedDocument {
	get, ok := data["Get"].(map[string]interface{})
	if !ok {
		return nil
	}
	items, ok := get[className].([]interface{})
	if !ok {
		return nil
	}

	docs := make([]domain.RetrievedDocument, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		var d domain.RetrievedDocument
		if v, ok := m["content"].(string); ok {
			d.Text = v
		}
		if v, ok := m["source"].(string); ok {
			d.Source = v
		}
		if v, ok := m["page"].(float64); ok {
			d.Page = int(v)
		}
		if additional, ok := m["_additional"].(map[string]interface{}); ok {
			if dist, ok := additional["distance"].(float64); ok {
				d.Score = float32(1 - dist)
			}
		}
		docs = append(docs, d)
	}
	return docs
}

package weaviate

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/cloo-solutions/askdoc/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weaviate/weaviate/entities/models"
)

func TestClassName(t *testing.T) {
	tests := []struct {
		collection string
		want       string
	}{
		{"askdoc-production-v1", "AskdocProductionV1"},
		{"umit-rag-production-v1", "UmitRagProductionV1"},
		{"already_Camel", "AlreadyCamel"},
		{"2024-reports", "C2024Reports"},
		{"---", "Document"},
		{"", "Document"},
	}

	for _, tt := range tests {
		t.Run(tt.collection, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassName(tt.collection))
		})
	}
}

func TestParseGetResponse(t *testing.T) {
	raw := `{
		"Get": {
			"AskdocProductionV1": [
				{"content": "Revenue grew 12%.", "source": "report.pdf", "page": 4, "_additional": {"distance": 0.1}},
				{"content": "Risks include FX exposure.", "source": "report.pdf", "page": 7, "_additional": {"distance": 0.25}},
				"garbage"
			]
		}
	}`
	var data map[string]models.JSONObject
	require.NoError(t, json.Unmarshal([]byte(raw), &data))

	docs := parseGetResponse(data, "AskdocProductionV1")

	require.Len(t, docs, 2)
	assert.Equal(t, "Revenue grew 12%.", docs[0].Text)
	assert.Equal(t, 4, docs[0].Page)
	assert.Equal(t, "report.pdf", docs[0].Source)
	assert.InDelta(t, 0.9, docs[0].Score, 1e-6)
	assert.InDelta(t, 0.75, docs[1].Score, 1e-6)
}

func TestParseGetResponse_MissingClass(t *testing.T) {
	var data map[string]models.JSONObject
	require.NoError(t, json.Unmarshal([]byte(`{"Get": {"Other": []}}`), &data))

	assert.Empty(t, parseGetResponse(data, "AskdocProductionV1"))
	assert.Empty(t, parseGetResponse(nil, "AskdocProductionV1"))
}

func TestProperties(t *testing.T) {
	created := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	props := properties(domain.IndexedDocument{
		Chunk: domain.Chunk{
			ID:         "id-1",
			ChunkIndex: 2,
			Text:       "body",
			Metadata:   domain.ChunkMetadata{Page: 3, Source: "a.pdf"},
		},
		CreatedAt: created,
	})

	assert.Equal(t, "body", props["content"])
	assert.Equal(t, "a.pdf", props["source"])
	assert.Equal(t, 3, props["page"])
	assert.Equal(t, 2, props["chunkIndex"])
	assert.Equal(t, "2024-05-01T10:00:00Z", props["createdAt"])
}

func TestNewStore_RequiresHost(t *testing.T) {
	_, err := NewStore(Config{}, nil)
	assert.Error(t, err)
}

func TestChunkClass(t *testing.T) {
	class := chunkClass("AskdocProductionV1")
	assert.Equal(t, "AskdocProductionV1", class.Class)
	assert.Equal(t, "none", class.Vectorizer)
	assert.Len(t, class.Properties, 5)
}

//go:build integration

package openai

import (
	"context"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/cloo-solutions/askdoc/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntegration_GenerateEmbedding_RealAPI(t *testing.T) {
	apiKey := os.Getenv("ASKDOC_OPENAI_API_KEY")
	if apiKey == "" {
		t.Skip("ASKDOC_OPENAI_API_KEY not set, skipping integration test")
	}

	client := NewClientWithConfig(Config{APIKey: apiKey})
	ctx := context.Background()
	text := "This is a test document for generating embeddings."

	embedding, err := client.GenerateEmbedding(ctx, text)

	require.NoError(t, err)
	assert.Len(t, embedding, DefaultEmbeddingDimensions)
}

func TestIntegration_ChatStream_RealAPI(t *testing.T) {
	apiKey := os.Getenv("ASKDOC_OPENAI_API_KEY")
	if apiKey == "" {
		t.Skip("ASKDOC_OPENAI_API_KEY not set, skipping integration test")
	}

	client := NewChatClient(NewAPIClient(Config{APIKey: apiKey}), "")
	stream, err := client.Stream(context.Background(), domain.GenerationRequest{Messages: []domain.PromptMessage{
		{Role: domain.RoleUser, Content: "Reply with the single word OK."},
	}})
	require.NoError(t, err)
	defer stream.Close()

	var sb strings.Builder
	for {
		token, err := stream.Recv()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		sb.WriteString(token)
	}
	assert.Contains(t, strings.ToUpper(sb.String()), "OK")
}

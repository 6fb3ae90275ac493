package openai

import (
	"context"
	"fmt"
	"math"

	"github.com/cloo-solutions/askdoc/internal/domain"
	openai "github.com/sashabaranov/go-openai"
)

// StreamReceiver is the part of a go-openai chat stream we consume
type StreamReceiver interface {
	Recv() (openai.ChatCompletionStreamResponse, error)
	Close() error
}

// ChatAPI defines the interface for chat completions
type ChatAPI interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
	CreateChatCompletionStream(ctx context.Context, req openai.ChatCompletionRequest) (StreamReceiver, error)
}

type chatAdapter struct {
	client *openai.Client
}

func (a *chatAdapter) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	return a.client.CreateChatCompletion(ctx, req)
}

func (a *chatAdapter) CreateChatCompletionStream(ctx context.Context, req openai.ChatCompletionRequest) (StreamReceiver, error) {
	stream, err := a.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return nil, err
	}
	return stream, nil
}

// ChatClient implements single-shot and streamed generation
type ChatClient struct {
	api   ChatAPI
	model string
}

// NewChatClient creates a chat client sharing an existing go-openai client.
func NewChatClient(api *openai.Client, model string) *ChatClient {
	return newChatClient(&chatAdapter{client: api}, model)
}

func newChatClient(api ChatAPI, model string) *ChatClient {
	if model == "" {
		model = DefaultChatModel
	}
	return &ChatClient{api: api, model: model}
}

// Complete returns the full reply for req
func (c *ChatClient) Complete(ctx context.Context, req domain.GenerationRequest) (string, error) {
	resp, err := c.api.CreateChatCompletion(ctx, c.buildRequest(req, false))
	if err != nil {
		return "", fmt.Errorf("failed to create chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", domain.ErrEmptyCompletion
	}
	return resp.Choices[0].Message.Content, nil
}

// Stream starts a streamed completion. The caller must Close the stream.
func (c *ChatClient) Stream(ctx context.Context, req domain.GenerationRequest) (domain.TokenStream, error) {
	stream, err := c.api.CreateChatCompletionStream(ctx, c.buildRequest(req, true))
	if err != nil {
		return nil, fmt.Errorf("failed to create chat completion stream: %w", err)
	}
	return &tokenStream{inner: stream}, nil
}

func (c *ChatClient) buildRequest(req domain.GenerationRequest, stream bool) openai.ChatCompletionRequest {
	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    toOpenAIRole(m.Role),
			Content: m.Content,
		})
	}
	return openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: temperature(req.Temperature),
		Stream:      stream,
	}
}

// temperature works around omitempty dropping an explicit zero.
func temperature(t float32) float32 {
	if t <= 0 {
		return math.SmallestNonzeroFloat32
	}
	if t > 2 {
		return 2
	}
	return t
}

func toOpenAIRole(r domain.Role) string {
	switch r {
	case domain.RoleSystem:
		return openai.ChatMessageRoleSystem
	case domain.RoleAssistant:
		return openai.ChatMessageRoleAssistant
	default:
		return openai.ChatMessageRoleUser
	}
}

type tokenStream struct {
	inner StreamReceiver
}

// Recv returns the next non-empty content delta, or io.EOF at the end.
func (s *tokenStream) Recv() (string, error) {
	for {
		resp, err := s.inner.Recv()
		if err != nil {
			return "", err
		}
		if len(resp.Choices) == 0 {
			continue
		}
		if content := resp.Choices[0].Delta.Content; content != "" {
			return content, nil
		}
	}
}

func (s *tokenStream) Close() error {
	return s.inner.Close()
}

package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloo-solutions/askdoc/internal/domain"
)

// ChatHistoryTurns is how many recent turns conversational replies see
const ChatHistoryTurns = 5

// RetrievalFallbackPhrase is said, translated, when context has nothing relevant
const RetrievalFallbackPhrase = "I couldn't find specific information in the documents, but..."

const chatSystemPrompt = `You are a helpful enterprise assistant.
You do NOT need to search the documents.

IMPORTANT:
- Answer in the SAME LANGUAGE as the user's input.
- If the user says "Merhaba", reply in Turkish. If "Hello", reply in English.
- Be professional and polite.`

const retrievalSystemPrompt = `You are a professional enterprise assistant. Answer using the provided Context only.

CRITICAL RULES:
1. Language: Answer in the SAME LANGUAGE as the User's Question.
2. Summarization: If the user asks for a summary and the context contains partial information (like Abstract, Introduction, or specific sections), generate the best possible summary from those parts. Do NOT say you can't find information unless the context is completely irrelevant or empty.
3. Accuracy: Be professional and accurate.
4. Fallback: If absolutely no relevant info is found, say (in the user's language): "%s"

Context:
%s`

// AnswerService builds answer prompts and starts streamed generation
type AnswerService struct {
	generator Generator
}

// NewAnswerService creates a new AnswerService
func NewAnswerService(generator Generator) *AnswerService {
	return &AnswerService{generator: generator}
}

// StreamChat answers without retrieval. The model sees the last
// ChatHistoryTurns prior turns and then question as its own user message.
func (s *AnswerService) StreamChat(ctx context.Context, history []domain.ChatTurn, question string, temperature float32) (domain.TokenStream, error) {
	recent := history
	if len(recent) > ChatHistoryTurns {
		recent = recent[len(recent)-ChatHistoryTurns:]
	}

	messages := []domain.PromptMessage{{Role: domain.RoleSystem, Content: chatSystemPrompt}}
	if len(recent) > 0 {
		messages = append(messages, domain.PromptMessage{
			Role:    domain.RoleSystem,
			Content: "Chat History:\n" + domain.FormatHistory(recent),
		})
	}
	messages = append(messages, domain.PromptMessage{Role: domain.RoleUser, Content: question})

	stream, err := s.generator.Stream(ctx, domain.GenerationRequest{Messages: messages, Temperature: temperature})
	if err != nil {
		return nil, domain.ServiceFailure("chat generation", err)
	}
	return stream, nil
}

// StreamRetrieval answers question from docs only.
func (s *AnswerService) StreamRetrieval(ctx context.Context, docs []domain.RetrievedDocument, question string, temperature float32) (domain.TokenStream, error) {
	stream, err := s.generator.Stream(ctx, domain.GenerationRequest{
		Messages: []domain.PromptMessage{
			{Role: domain.RoleSystem, Content: fmt.Sprintf(retrievalSystemPrompt, RetrievalFallbackPhrase, BuildContext(docs))},
			{Role: domain.RoleUser, Content: question},
		},
		Temperature: temperature,
	})
	if err != nil {
		return nil, domain.ServiceFailure("retrieval generation", err)
	}
	return stream, nil
}

// BuildContext joins document texts with blank lines, in rank order.
func BuildContext(docs []domain.RetrievedDocument) string {
	texts := make([]string, 0, len(docs))
	for _, d := range docs {
		texts = append(texts, d.Text)
	}
	return strings.Join(texts, "\n\n")
}

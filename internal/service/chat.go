package service

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/cloo-solutions/askdoc/internal/domain"
	"github.com/cloo-solutions/askdoc/internal/telemetry"
	"go.uber.org/zap"
)

// AskOptions are per-question generation settings
type AskOptions struct {
	TopK        int
	Temperature float32
}

// AskResult is the outcome of one answered question
type AskResult struct {
	Route   domain.Route               `json:"route"`
	Query   string                     `json:"query,omitempty"`
	Answer  string                     `json:"answer"`
	Sources []domain.RetrievedDocument `json:"sources,omitempty"`
}

// QueryRouter decides between conversational and retrieval answers
type QueryRouter interface {
	Route(ctx context.Context, history []domain.ChatTurn, message string) (domain.Route, error)
}

// QueryRewriter produces standalone search queries
type QueryRewriter interface {
	Rewrite(ctx context.Context, history []domain.ChatTurn, question string) (string, error)
}

// Retriever finds relevant chunks for a query
type Retriever interface {
	Search(ctx context.Context, query string, k int) ([]domain.RetrievedDocument, error)
}

// AnswerGenerator starts streamed answers
type AnswerGenerator interface {
	StreamChat(ctx context.Context, history []domain.ChatTurn, question string, temperature float32) (domain.TokenStream, error)
	StreamRetrieval(ctx context.Context, docs []domain.RetrievedDocument, question string, temperature float32) (domain.TokenStream, error)
}

// ChatService answers questions within a session
type ChatService struct {
	router    QueryRouter
	rewriter  QueryRewriter
	retriever Retriever
	answerer  AnswerGenerator
	topK      int
	logger    *zap.Logger
}

// NewChatService creates a new ChatService. topK is used when a request
// does not set one.
func NewChatService(router QueryRouter, rewriter QueryRewriter, retriever Retriever, answerer AnswerGenerator, topK int, logger *zap.Logger) *ChatService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChatService{
		router:    router,
		rewriter:  rewriter,
		retriever: retriever,
		answerer:  answerer,
		topK:      ClampTopK(topK),
		logger:    logger,
	}
}

// Ask routes, answers and records question in session. onToken, when not
// nil, sees each fragment as it arrives. The session log changes only when
// the whole answer succeeded; failures are *domain.StageError.
func (s *ChatService) Ask(ctx context.Context, session *domain.Session, question string, opts AskOptions, onToken func(string)) (*AskResult, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, domain.ErrEmptyQuestion
	}

	ctx, span := telemetry.StartSpan(ctx, "chat.Ask", telemetry.SpanAttributes{
		SessionID: session.ID,
		Operation: "ask",
	})
	defer span.End()

	history := session.History()

	route, err := s.router.Route(ctx, history, question)
	if err != nil {
		span.SetError(err)
		return nil, domain.NewStageError(domain.StageRoute, err)
	}

	result := &AskResult{Route: route}
	var stream domain.TokenStream

	if route == domain.RouteSearch {
		query, err := s.rewriter.Rewrite(ctx, history, question)
		if err != nil {
			span.SetError(err)
			return nil, domain.NewStageError(domain.StageRewrite, err)
		}
		result.Query = query

		topK := s.topK
		if opts.TopK > 0 {
			topK = ClampTopK(opts.TopK)
		}
		docs, err := s.retriever.Search(ctx, query, topK)
		if err != nil {
			span.SetError(err)
			return nil, domain.NewStageError(domain.StageRetrieve, err)
		}
		result.Sources = docs

		stream, err = s.answerer.StreamRetrieval(ctx, docs, question, opts.Temperature)
		if err != nil {
			span.SetError(err)
			return nil, domain.NewStageError(domain.StageGenerate, err)
		}
	} else {
		stream, err = s.answerer.StreamChat(ctx, history, question, opts.Temperature)
		if err != nil {
			span.SetError(err)
			return nil, domain.NewStageError(domain.StageGenerate, err)
		}
	}

	answer, err := drain(stream, onToken)
	if err != nil {
		span.SetError(err)
		return nil, domain.NewStageError(domain.StageGenerate, domain.ServiceFailure("answer stream", err))
	}
	result.Answer = answer

	session.Append(
		domain.ChatTurn{Role: domain.RoleUser, Content: question},
		domain.ChatTurn{Role: domain.RoleAssistant, Content: answer, Sources: result.Sources},
	)

	s.logger.Info("answered question",
		zap.String("session_id", session.ID),
		zap.String("route", string(route)),
		zap.Int("sources", len(result.Sources)),
		zap.Int("answer_chars", len(answer)),
	)
	return result, nil
}

func drain(stream domain.TokenStream, onToken func(string)) (string, error) {
	defer stream.Close()

	var sb strings.Builder
	for {
		token, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return sb.String(), nil
		}
		if err != nil {
			return "", err
		}
		sb.WriteString(token)
		if onToken != nil {
			onToken(token)
		}
	}
}

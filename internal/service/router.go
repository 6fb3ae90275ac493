package service

import (
	"context"
	"strings"

	"github.com/cloo-solutions/askdoc/internal/domain"
	"go.uber.org/zap"
)

// Generator produces model replies, either whole or as a token stream
type Generator interface {
	Complete(ctx context.Context, req domain.GenerationRequest) (string, error)
	Stream(ctx context.Context, req domain.GenerationRequest) (domain.TokenStream, error)
}

const routerSystemPrompt = `You are a query classifier for an enterprise document assistant.
Classify the user's latest message into exactly one category:

SEARCH - the user asks for information that could be in the documents.
Examples: "What are the risks?", "Summarize", "What does section 3 say about costs?"

CHAT - greetings (hello, merhaba), thanks, small talk, or clarification of the previous answer.

Reply with only one word: SEARCH or CHAT.`

// ClassifyRouterReply maps a classifier reply to a route. Any reply that
// mentions SEARCH is a search; everything else, including noise, is chat.
func ClassifyRouterReply(reply string) domain.Route {
	if strings.Contains(strings.ToUpper(reply), string(domain.RouteSearch)) {
		return domain.RouteSearch
	}
	return domain.RouteChat
}

// RouterService decides whether a message needs document retrieval
type RouterService struct {
	generator Generator
	classify  func(string) domain.Route
	logger    *zap.Logger
}

// NewRouterService creates a new RouterService
func NewRouterService(generator Generator, logger *zap.Logger) *RouterService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RouterService{
		generator: generator,
		classify:  ClassifyRouterReply,
		logger:    logger,
	}
}

// Route classifies message given the conversation so far. The first message
// of a conversation always searches.
func (s *RouterService) Route(ctx context.Context, history []domain.ChatTurn, message string) (domain.Route, error) {
	if len(history) == 0 {
		return domain.RouteSearch, nil
	}

	reply, err := s.generator.Complete(ctx, domain.GenerationRequest{
		Messages: []domain.PromptMessage{
			{Role: domain.RoleSystem, Content: routerSystemPrompt},
			{Role: domain.RoleUser, Content: message},
		},
	})
	if err != nil {
		return "", domain.ServiceFailure("route classification", err)
	}

	route := s.classify(reply)
	s.logger.Debug("routed message", zap.String("reply", reply), zap.String("route", string(route)))
	return route, nil
}

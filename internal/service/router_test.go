package service

import (
	"context"
	"testing"

	"github.com/cloo-solutions/askdoc/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var priorTurns = []domain.ChatTurn{
	{Role: domain.RoleUser, Content: "What are the main risks?"},
	{Role: domain.RoleAssistant, Content: "Currency exposure and supplier concentration."},
}

func TestClassifyRouterReply(t *testing.T) {
	tests := []struct {
		reply string
		want  domain.Route
	}{
		{"SEARCH", domain.RouteSearch},
		{"search", domain.RouteSearch},
		{"  SEARCH.\n", domain.RouteSearch},
		{"I think SEARCH is appropriate", domain.RouteSearch},
		{"CHAT", domain.RouteChat},
		{"chat", domain.RouteChat},
		{"", domain.RouteChat},
		{"banana", domain.RouteChat},
	}

	for _, tt := range tests {
		t.Run(tt.reply, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyRouterReply(tt.reply))
		})
	}
}

func TestRouterService_EmptyHistoryDefaultsToSearch(t *testing.T) {
	gen := new(MockGenerator)
	router := NewRouterService(gen, nil)

	for _, msg := range []string{"Merhaba", "hello", "What is the revenue?"} {
		route, err := router.Route(context.Background(), nil, msg)
		require.NoError(t, err)
		assert.Equal(t, domain.RouteSearch, route)
	}
	gen.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything)
}

func TestRouterService_ClassifiesWithHistory(t *testing.T) {
	gen := new(MockGenerator)
	router := NewRouterService(gen, nil)

	gen.On("Complete", mock.Anything, mock.MatchedBy(func(req domain.GenerationRequest) bool {
		return len(req.Messages) == 2 &&
			req.Messages[0].Role == domain.RoleSystem &&
			req.Messages[1].Content == "Merhaba" &&
			req.Temperature == 0
	})).Return("CHAT", nil)

	route, err := router.Route(context.Background(), priorTurns, "Merhaba")

	require.NoError(t, err)
	assert.Equal(t, domain.RouteChat, route)
	gen.AssertExpectations(t)
}

func TestRouterService_UnexpectedReplyIsChat(t *testing.T) {
	gen := new(MockGenerator)
	router := NewRouterService(gen, nil)
	gen.On("Complete", mock.Anything, mock.Anything).Return("I'm not sure", nil)

	route, err := router.Route(context.Background(), priorTurns, "hmm")

	require.NoError(t, err)
	assert.Equal(t, domain.RouteChat, route)
}

func TestRouterService_GenerationError(t *testing.T) {
	gen := new(MockGenerator)
	router := NewRouterService(gen, nil)
	gen.On("Complete", mock.Anything, mock.Anything).Return("", errServiceDown)

	_, err := router.Route(context.Background(), priorTurns, "What next?")

	assert.ErrorIs(t, err, domain.ErrServiceUnavailable)
	assert.ErrorIs(t, err, errServiceDown)
}

package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/cloo-solutions/askdoc/internal/api"
	"github.com/cloo-solutions/askdoc/internal/domain"
	"github.com/cloo-solutions/askdoc/internal/service"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type ChatService interface {
	Ask(ctx context.Context, session *domain.Session, question string, opts service.AskOptions, onToken func(string)) (*service.AskResult, error)
}

type SessionRegistry interface {
	Create() *domain.Session
	Get(id string) (*domain.Session, error)
	Delete(id string) error
}

type SessionHandler struct {
	chat     ChatService
	sessions SessionRegistry
	logger   *zap.Logger
}

func NewSessionHandler(chat ChatService, sessions SessionRegistry, logger *zap.Logger) *SessionHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionHandler{chat: chat, sessions: sessions, logger: logger}
}

type SessionResponse struct {
	ID        string `json:"id"`
	CreatedAt string `json:"created_at"`
}

type MessagesResponse struct {
	ID       string            `json:"id"`
	Messages []domain.ChatTurn `json:"messages"`
}

type AskRequest struct {
	Question    string   `json:"question"`
	TopK        int      `json:"top_k,omitempty"`
	Temperature *float32 `json:"temperature,omitempty"`
}

type doneEvent struct {
	Route   domain.Route               `json:"route"`
	Query   string                     `json:"query,omitempty"`
	Answer  string                     `json:"answer"`
	Sources []domain.RetrievedDocument `json:"sources"`
}

func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	session := h.sessions.Create()
	api.Success(w, http.StatusCreated, SessionResponse{
		ID:        session.ID,
		CreatedAt: session.CreatedAt.Format(time.RFC3339),
	})
}

func (h *SessionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Delete(chi.URLParam(r, "id")); err != nil {
		api.HandleError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *SessionHandler) Messages(w http.ResponseWriter, r *http.Request) {
	session, err := h.sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.Success(w, http.StatusOK, MessagesResponse{ID: session.ID, Messages: session.History()})
}

// Reset clears the session's conversation history.
func (h *SessionHandler) Reset(w http.ResponseWriter, r *http.Request) {
	session, err := h.sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		api.HandleError(w, err)
		return
	}
	session.Reset()
	api.Success(w, http.StatusOK, MessagesResponse{ID: session.ID, Messages: []domain.ChatTurn{}})
}

// Ask answers a question as a server-sent event stream: one "token" event
// per fragment, then "done" or "error". Failures before the first fragment
// are plain JSON errors.
func (h *SessionHandler) Ask(w http.ResponseWriter, r *http.Request) {
	session, err := h.sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		api.HandleError(w, err)
		return
	}

	var req AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	opts := service.AskOptions{}
	if req.TopK != 0 {
		if req.TopK < service.MinTopK || req.TopK > service.MaxTopK {
			api.Error(w, http.StatusBadRequest, fmt.Sprintf("top_k must be between %d and %d", service.MinTopK, service.MaxTopK))
			return
		}
		opts.TopK = req.TopK
	}
	if req.Temperature != nil {
		if *req.Temperature < 0 || *req.Temperature > 1 {
			api.Error(w, http.StatusBadRequest, "temperature must be between 0 and 1")
			return
		}
		opts.Temperature = *req.Temperature
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		api.Error(w, http.StatusInternalServerError, "streaming not supported")
		return
	}
	events := &eventWriter{w: w, flusher: flusher}

	result, err := h.chat.Ask(r.Context(), session, req.Question, opts, func(token string) {
		events.send("token", token)
	})
	if err != nil {
		if !events.started {
			api.HandleError(w, err)
			return
		}
		h.logger.Warn("answer stream failed", zap.String("session_id", session.ID), zap.Error(err))
		events.send("error", api.ErrorBody(err))
		return
	}

	sources := result.Sources
	if sources == nil {
		sources = []domain.RetrievedDocument{}
	}
	events.send("done", doneEvent{
		Route:   result.Route,
		Query:   result.Query,
		Answer:  result.Answer,
		Sources: sources,
	})
}

// eventWriter writes text/event-stream frames, sending headers on first use.
type eventWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
	started bool
}

func (e *eventWriter) send(event string, payload interface{}) {
	if !e.started {
		e.w.Header().Set("Content-Type", "text/event-stream")
		e.w.Header().Set("Cache-Control", "no-cache")
		e.w.Header().Set("Connection", "keep-alive")
		e.w.WriteHeader(http.StatusOK)
		e.started = true
	}
	data, err := json.Marshal(payload)
	if err != nil {
		data = []byte(`""`)
	}
	fmt.Fprintf(e.w, "event: %s\ndata: %s\n\n", event, data)
	e.flusher.Flush()
}

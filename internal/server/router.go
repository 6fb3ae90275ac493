package server

import (
	"net/http"

	"github.com/cloo-solutions/askdoc/internal/api"
	"github.com/cloo-solutions/askdoc/internal/api/handlers"
	"github.com/cloo-solutions/askdoc/internal/api/middleware"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const (
	defaultMaxBodyBytes   int64 = 1 << 20
	defaultMaxUploadBytes int64 = 50 << 20
)

type RouterConfig struct {
	// AuthValidator guards every route except /health. Nil disables auth.
	AuthValidator   middleware.AuthValidator
	Logger          *zap.Logger
	DocumentHandler *handlers.DocumentHandler
	SessionHandler  *handlers.SessionHandler
	MaxBodyBytes    int64
	MaxUploadBytes  int64
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = defaultMaxBodyBytes
	}
	maxUpload := cfg.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = defaultMaxUploadBytes
	}

	r.Use(middleware.RequestID)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog(cfg.Logger))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		api.Success(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.APIKeyAuth(cfg.AuthValidator))

		r.With(middleware.MaxBodyBytes(maxUpload)).Post("/documents", cfg.DocumentHandler.Upload)

		r.Route("/sessions", func(r chi.Router) {
			r.Use(middleware.MaxBodyBytes(maxBody))
			r.Post("/", cfg.SessionHandler.Create)
			r.Delete("/{id}", cfg.SessionHandler.Delete)
			r.Get("/{id}/messages", cfg.SessionHandler.Messages)
			r.Post("/{id}/messages", cfg.SessionHandler.Ask)
			r.Delete("/{id}/messages", cfg.SessionHandler.Reset)
		})
	})

	return r
}

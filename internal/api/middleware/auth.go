package middleware

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/cloo-solutions/askdoc/internal/api"
	"github.com/cloo-solutions/askdoc/internal/domain"
)

type contextKey string

const ClientIDKey contextKey = "client_id"

type AuthValidator interface {
	ValidateAPIKey(ctx context.Context, token string) (string, error)
}

// StaticKey validates bearer tokens against a single configured key.
type StaticKey struct {
	Key      string
	ClientID string
}

var errInvalidAPIKey = domain.NewDomainError(domain.ErrCodeValidation, "invalid api key")

func (s StaticKey) ValidateAPIKey(_ context.Context, token string) (string, error) {
	if s.Key == "" || subtle.ConstantTimeCompare([]byte(token), []byte(s.Key)) != 1 {
		return "", errInvalidAPIKey
	}
	if s.ClientID == "" {
		return "default", nil
	}
	return s.ClientID, nil
}

// APIKeyAuth requires a valid bearer token. A nil validator disables the check.
func APIKeyAuth(validator AuthValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if validator == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				api.Error(w, http.StatusUnauthorized, "missing authorization header")
				return
			}

			if !strings.HasPrefix(authHeader, "Bearer ") {
				api.Error(w, http.StatusUnauthorized, "invalid authorization format")
				return
			}

			token := strings.TrimPrefix(authHeader, "Bearer ")

			clientID, err := validator.ValidateAPIKey(r.Context(), token)
			if err != nil {
				api.Error(w, http.StatusUnauthorized, "invalid api key")
				return
			}

			if info := getRequestInfo(r.Context()); info != nil {
				info.clientID = clientID
			}
			ctx := context.WithValue(r.Context(), ClientIDKey, clientID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetClientID returns the authenticated client. Middleware running outside
// APIKeyAuth sees it once the inner handler has returned.
func GetClientID(ctx context.Context) string {
	if clientID, ok := ctx.Value(ClientIDKey).(string); ok {
		return clientID
	}
	if info := getRequestInfo(ctx); info != nil {
		return info.clientID
	}
	return ""
}

package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"finelth-api/internal/observability"
)

type TokenValidator interface {
	ValidateAccessToken(ctx context.Context, token string) (int64, error)
}

type userIDContextKey struct{}

func UserIDFromContext(ctx context.Context) (int64, bool) {
	userID, ok := ctx.Value(userIDContextKey{}).(int64)
	return userID, ok && userID > 0
}

func ContextWithUserID(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, userIDContextKey{}, userID)
}

// Middleware admits requests carrying a live bearer access token. Token
// failures of any kind produce the same 401 body.
func Middleware(validator TokenValidator, logger *observability.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r.Header.Get("Authorization"))
		if !ok {
			writeError(w, http.StatusUnauthorized, codeUnauthorized, "Access token is required")
			return
		}

		userID, err := validator.ValidateAccessToken(r.Context(), token)
		switch {
		case err == nil:
		case errors.Is(err, ErrInvalidToken), errors.Is(err, ErrUnauthenticated):
			writeError(w, http.StatusUnauthorized, codeUnauthorized, "Invalid access token")
			return
		default:
			observability.CaptureError(r.Context(), err)
			logger.ErrorContext(r.Context(), "validate_access_token_failed", map[string]any{"error": err.Error()})
			writeError(w, http.StatusInternalServerError, codeInternal, messageUnexpected)
			return
		}

		next.ServeHTTP(w, r.WithContext(ContextWithUserID(r.Context(), userID)))
	})
}

func bearerToken(header string) (string, bool) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", false
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}

	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", false
	}

	return token, true
}

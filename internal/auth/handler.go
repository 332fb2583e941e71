package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"regexp"
	"strings"
	"time"

	"finelth-api/internal/observability"
)

var emailRegex = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

const (
	maxJSONBodyBytes = 1 << 20

	RefreshTokenCookie = "refreshToken"
)

// Password bounds in bytes. bcrypt refuses anything longer than 72.
const (
	MinPasswordLength = 6
	MaxPasswordLength = 72
)

type Handler struct {
	service      *Service
	logger       *observability.Logger
	secureCookie bool
}

func NewHandler(service *Service, logger *observability.Logger, secureCookie bool) *Handler {
	return &Handler{service: service, logger: logger, secureCookie: secureCookie}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	AccessToken string     `json:"accessToken"`
	User        PublicUser `json:"user"`
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)

	var body loginRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid JSON body")
		return
	}

	body.Email = strings.TrimSpace(body.Email)
	if len(body.Email) > 255 || !emailRegex.MatchString(body.Email) {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid email address")
		return
	}
	if len(body.Password) < MinPasswordLength {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Password must be at least 6 characters")
		return
	}
	if len(body.Password) > MaxPasswordLength {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Password must be at most 72 bytes")
		return
	}

	result, err := h.service.Login(r.Context(), body.Email, body.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid credentials")
			return
		}

		h.internalError(w, r, "login_failed", err)
		return
	}

	http.SetCookie(w, h.refreshCookie(result.RefreshToken, result.RefreshExpiresAt, int(h.service.RefreshTTL().Seconds())))
	writeData(w, http.StatusOK, loginResponse{
		AccessToken: result.AccessToken,
		User:        result.User,
	})
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, codeUnauthorized, "User not authenticated")
		return
	}

	if err := h.service.Logout(r.Context(), userID); err != nil {
		h.internalError(w, r, "logout_failed", err)
		return
	}

	http.SetCookie(w, h.refreshCookie("", time.Unix(0, 0), -1))
	writeData(w, http.StatusOK, map[string]string{"message": "Logged out successfully"})
}

func (h *Handler) refreshCookie(value string, expires time.Time, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     RefreshTokenCookie,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteStrictMode,
	}
}

func (h *Handler) internalError(w http.ResponseWriter, r *http.Request, event string, err error) {
	observability.CaptureError(r.Context(), err)
	h.logger.ErrorContext(r.Context(), event, map[string]any{"error": err.Error()})
	writeError(w, http.StatusInternalServerError, codeInternal, messageUnexpected)
}

package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type loginEnvelope struct {
	Data struct {
		AccessToken string     `json:"accessToken"`
		User        PublicUser `json:"user"`
	} `json:"data"`
}

func newAuthMux(t *testing.T, env *testEnv) http.Handler {
	t.Helper()
	logger, _ := newTestLogger()
	h := NewHandler(env.service, logger, true)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/login", h.Login)
	mux.Handle("POST /auth/logout", Middleware(env.service, logger, http.HandlerFunc(h.Logout)))
	mux.Handle("GET /protected", Middleware(env.service, logger, echoUserID()))
	return mux
}

func doJSON(mux http.Handler, method, path, body, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func findCookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestHandler_LoginAccessLogoutScenario(t *testing.T) {
	env := newTestEnv(t)
	env.store.addUser(t, 42, "a@b.com", "secret1")
	mux := newAuthMux(t, env)

	rec := doJSON(mux, http.MethodPost, "/auth/login", `{"email":"a@b.com","password":"secret1"}`, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var login loginEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &login))
	assert.NotEmpty(t, login.Data.AccessToken)
	assert.Equal(t, PublicUser{ID: 42, Email: "a@b.com"}, login.Data.User)
	assert.NotContains(t, rec.Body.String(), "refreshToken")

	cookie := findCookie(rec, RefreshTokenCookie)
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)
	assert.True(t, cookie.Secure)
	assert.Equal(t, http.SameSiteStrictMode, cookie.SameSite)
	assert.Equal(t, "/", cookie.Path)
	assert.Equal(t, 7*24*60*60, cookie.MaxAge)
	require.Len(t, env.store.refreshFor(42), 1)
	assert.Equal(t, cookie.Value, env.store.refreshFor(42)[0].Token)

	rec = doJSON(mux, http.MethodGet, "/protected", "", login.Data.AccessToken)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "42", rec.Body.String())

	rec = doJSON(mux, http.MethodPost, "/auth/logout", "", login.Data.AccessToken)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"data":{"message":"Logged out successfully"}}`, rec.Body.String())

	cleared := findCookie(rec, RefreshTokenCookie)
	require.NotNil(t, cleared)
	assert.Empty(t, cleared.Value)
	assert.Equal(t, -1, cleared.MaxAge)
	assert.Empty(t, env.store.refreshFor(42))

	rec = doJSON(mux, http.MethodGet, "/protected", "", login.Data.AccessToken)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid access token", decodeError(t, rec).Message)
}

func TestHandler_InvalidCredentialsLookTheSame(t *testing.T) {
	env := newTestEnv(t)
	env.store.addUser(t, 42, "a@b.com", "secret1")
	mux := newAuthMux(t, env)

	unknown := doJSON(mux, http.MethodPost, "/auth/login", `{"email":"nobody@b.com","password":"secret1"}`, "")
	wrong := doJSON(mux, http.MethodPost, "/auth/login", `{"email":"a@b.com","password":"wrong-pass"}`, "")

	assert.Equal(t, http.StatusBadRequest, unknown.Code)
	assert.Equal(t, http.StatusBadRequest, wrong.Code)
	assert.Equal(t, unknown.Body.String(), wrong.Body.String())
	assert.Equal(t, errorBody{Status: 400, Error: "BAD_REQUEST", Message: "Invalid credentials"}, decodeError(t, wrong))
	assert.Nil(t, findCookie(wrong, RefreshTokenCookie))
	assert.Empty(t, env.mr.Keys())
}

func TestHandler_LoginRejectsBadBodies(t *testing.T) {
	env := newTestEnv(t)
	mux := newAuthMux(t, env)

	cases := map[string]struct {
		body    string
		message string
	}{
		"not json":       {`{"email":`, "Invalid JSON body"},
		"unknown field":  {`{"email":"a@b.com","password":"secret1","role":"admin"}`, "Invalid JSON body"},
		"bad email":      {`{"email":"not-an-email","password":"secret1"}`, "Invalid email address"},
		"short password": {`{"email":"a@b.com","password":"123"}`, "Password must be at least 6 characters"},
		"long password":  {`{"email":"a@b.com","password":"` + strings.Repeat("p", 73) + `"}`, "Password must be at most 72 bytes"},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			rec := doJSON(mux, http.MethodPost, "/auth/login", tc.body, "")
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			body := decodeError(t, rec)
			assert.Equal(t, "BAD_REQUEST", body.Error)
			assert.Equal(t, tc.message, body.Message)
		})
	}
}

func TestHandler_LoginStoreFailureIs500(t *testing.T) {
	env := newTestEnv(t)
	env.store.findErr = assert.AnError
	mux := newAuthMux(t, env)

	rec := doJSON(mux, http.MethodPost, "/auth/login", `{"email":"a@b.com","password":"secret1"}`, "")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "An unexpected error occurred", decodeError(t, rec).Message)
}

func TestHandler_LogoutWithoutGateIs401(t *testing.T) {
	env := newTestEnv(t)
	logger, _ := newTestLogger()
	h := NewHandler(env.service, logger, false)

	rec := httptest.NewRecorder()
	h.Logout(rec, httptest.NewRequest(http.MethodPost, "/auth/logout", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "User not authenticated", decodeError(t, rec).Message)
}

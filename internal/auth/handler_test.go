// AngelaMos | 2026
// handler_test.go

package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/templates/tenant-runtime/internal/core"
	"github.com/carterperez-dev/templates/tenant-runtime/internal/middleware"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *core.ErrorBody `json:"error"`
}

func newTestRouter(t *testing.T) (http.Handler, *Service) {
	t.Helper()
	svc, _, _ := newTestService(t)
	r := chi.NewRouter()
	NewHandler(svc).RegisterRoutes(r, middleware.Authenticator(svc.jwt))
	return r, svc
}

func do(
	t *testing.T,
	h http.Handler,
	method, path string,
	body any,
	bearer string,
) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

func TestAuthHandlerFlow(t *testing.T) {
	h, _ := newTestRouter(t)
	creds := map[string]string{
		"email":    "ada@example.com",
		"password": "correct-horse",
	}

	rec, env := do(t, h, http.MethodPost, "/auth/signup", creds, "")
	require.Equal(t, http.StatusCreated, rec.Code)
	var signed AuthResponse
	require.NoError(t, json.Unmarshal(env.Data, &signed))

	rec, _ = do(t, h, http.MethodPost, "/auth/signup", creds, "")
	require.Equal(t, http.StatusConflict, rec.Code)

	rec, env = do(t, h, http.MethodPost, "/auth/login", creds, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var logged AuthResponse
	require.NoError(t, json.Unmarshal(env.Data, &logged))

	rec, env = do(t, h, http.MethodGet, "/auth/me", nil, logged.Tokens.AccessToken)
	require.Equal(t, http.StatusOK, rec.Code)
	var me UserResponse
	require.NoError(t, json.Unmarshal(env.Data, &me))
	assert.Equal(t, "ada@example.com", me.Email)

	refresh := map[string]string{"refresh_token": logged.Tokens.RefreshToken}
	rec, _ = do(t, h, http.MethodPost, "/auth/refresh", refresh, "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec, env = do(t, h, http.MethodPost, "/auth/refresh", refresh, "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, core.CodeTokenInvalid, env.Error.Code)

	logout := map[string]string{"refresh_token": signed.Tokens.RefreshToken}
	rec, _ = do(t, h, http.MethodPost, "/auth/logout", logout, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec, _ = do(t, h, http.MethodPost, "/auth/logout", logout, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestAuthHandlerLoginErrors(t *testing.T) {
	h, _ := newTestRouter(t)
	do(t, h, http.MethodPost, "/auth/signup", map[string]string{
		"email":    "ada@example.com",
		"password": "correct-horse",
	}, "")

	tests := []struct {
		name   string
		body   any
		status int
		code   string
	}{
		{
			name:   "wrong password",
			body:   map[string]string{"email": "ada@example.com", "password": "nope-nope"},
			status: http.StatusUnauthorized,
			code:   core.CodeInvalidCredentials,
		},
		{
			name:   "unknown email",
			body:   map[string]string{"email": "who@example.com", "password": "nope-nope"},
			status: http.StatusUnauthorized,
			code:   core.CodeInvalidCredentials,
		},
		{
			name:   "invalid email",
			body:   map[string]string{"email": "ada", "password": "nope-nope"},
			status: http.StatusBadRequest,
			code:   core.CodeValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, env := do(t, h, http.MethodPost, "/auth/login", tt.body, "")
			assert.Equal(t, tt.status, rec.Code)
			require.NotNil(t, env.Error)
			assert.Equal(t, tt.code, env.Error.Code)
		})
	}
}

func TestAuthHandlerMeRequiresToken(t *testing.T) {
	h, _ := newTestRouter(t)

	rec, env := do(t, h, http.MethodGet, "/auth/me", nil, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, core.CodeAuthRequired, env.Error.Code)
}

func TestExtractIPAddress(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.10:5555"
	assert.Equal(t, "192.0.2.10", extractIPAddress(req))

	req.Header.Set("X-Real-IP", "198.51.100.7")
	assert.Equal(t, "198.51.100.7", extractIPAddress(req))

	req.Header.Set("X-Forwarded-For", "203.0.113.1, 203.0.113.2")
	assert.Equal(t, "203.0.113.2", extractIPAddress(req))
}

func TestSweeperRunOnce(t *testing.T) {
	svc, repo, _ := newTestService(t)
	resp, err := svc.Signup(context.Background(), SignupRequest{
		Email:    "ada@example.com",
		Password: "correct-horse",
	}, testMeta)
	require.NoError(t, err)

	id, _, err := core.SplitRefreshToken(resp.Tokens.RefreshToken)
	require.NoError(t, err)
	require.NoError(t, repo.DeleteByID(context.Background(), id))
	expired := &RefreshToken{ID: "expired", UserID: resp.User.ID}
	require.NoError(t, repo.Create(context.Background(), expired))

	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "swept_test"})
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sweeper := NewSweeper(svc, 0, logger, counter)

	n, err := sweeper.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.InDelta(t, 1.0, testutil.ToFloat64(counter), 0.0001)

	require.NoError(t, sweeper.Stop(context.Background()))
}

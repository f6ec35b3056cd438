// AngelaMos | 2026
// moduletest.go

// Package moduletest holds helpers shared by capability module tests.
package moduletest

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-chi/chi/v5"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/templates/tenant-runtime/internal/core"
	"github.com/carterperez-dev/templates/tenant-runtime/internal/module"
	"github.com/carterperez-dev/templates/tenant-runtime/internal/tenant"
)

const (
	WorkspaceID = "5b0c61d1-1d0c-4a43-9a55-3e8c2f0a9c11"
	UserID      = "9f1d0a52-6c41-4b8e-8d7e-0c3b6f2e7a44"
)

type Envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *core.ErrorBody `json:"error"`
	Meta    *core.Meta      `json:"meta"`
}

func NewDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return sqlx.NewDb(db, "pgx"), mock
}

func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Router mounts desc the way the registry does, with a gate that resolves
// every request to WorkspaceID under role.
func Router(t *testing.T, desc *module.Descriptor, role tenant.Role) http.Handler {
	t.Helper()
	require.NotNil(t, desc.Routes)

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := tenant.WithScope(req.Context(), tenant.Scope{
				WorkspaceID: WorkspaceID,
				UserID:      UserID,
				Role:        role,
			})
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	})
	desc.Routes(r)
	return r
}

// Do sends a JSON request and returns the recorder.
func Do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func Decode(t *testing.T, rec *httptest.ResponseRecorder) Envelope {
	t.Helper()
	var env Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

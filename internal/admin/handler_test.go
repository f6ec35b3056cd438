// AngelaMos | 2026
// handler_test.go

package admin

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/templates/tenant-runtime/internal/middleware"
	"github.com/carterperez-dev/templates/tenant-runtime/internal/migrate"
	"github.com/carterperez-dev/templates/tenant-runtime/internal/module"
)

type roles map[string]string

func (r roles) PlatformRole(_ context.Context, userID string) (string, error) {
	return r[userID], nil
}

func fakeAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := middleware.WithUserID(r.Context(), r.Header.Get("X-User"))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
}

func newRouter(cfg HandlerConfig) http.Handler {
	r := chi.NewRouter()
	lookup := roles{"admin-1": "admin", "user-1": "user"}
	NewHandler(cfg).RegisterRoutes(r, fakeAuth, middleware.RequireRole(lookup, "admin"))
	return r
}

func get(t *testing.T, h http.Handler, path, user string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.Header.Set("X-User", user)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return rec, env
}

func TestRuntimeStatus(t *testing.T) {
	report := &migrate.Report{
		Altered: []string{"articles"},
		Failed:  []string{"legacy_notes"},
	}
	h := newRouter(HandlerConfig{
		Modules: func() []module.Status {
			return []module.Status{
				{ID: "articles", State: module.StateReady, MountPrefix: "/articles"},
				{ID: "broken", State: module.StateFailed, Stage: "init", Error: "boom"},
			}
		},
		Backfill: report,
	})

	rec, env := get(t, h, "/admin/status", "admin-1")
	require.Equal(t, http.StatusOK, rec.Code)

	var status RuntimeStatusResponse
	require.NoError(t, json.Unmarshal(env.Data, &status))
	assert.Equal(t, 1, status.FailedModules)
	require.Len(t, status.Modules, 2)
	assert.Equal(t, "boom", status.Modules[1].Error)
	require.NotNil(t, status.Backfill)
	assert.Equal(t, []string{"legacy_notes"}, status.Backfill.Failed)
}

func TestRuntimeStatusWithoutSources(t *testing.T) {
	h := newRouter(HandlerConfig{})

	rec, env := get(t, h, "/admin/status", "admin-1")
	require.Equal(t, http.StatusOK, rec.Code)

	var status RuntimeStatusResponse
	require.NoError(t, json.Unmarshal(env.Data, &status))
	assert.Empty(t, status.Modules)
	assert.Nil(t, status.Backfill)
}

func TestAdminRoutesRequireAdminRole(t *testing.T) {
	h := newRouter(HandlerConfig{})

	rec, env := get(t, h, "/admin/status", "user-1")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.False(t, env.Success)

	rec, _ = get(t, h, "/admin/stats", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSystemStats(t *testing.T) {
	h := newRouter(HandlerConfig{
		DBStats:    func() sql.DBStats { return sql.DBStats{OpenConnections: 3, InUse: 1} },
		RedisStats: func() *redis.PoolStats { return &redis.PoolStats{TotalConns: 4} },
		DBPing:     func(context.Context) error { return nil },
		RedisPing:  func(context.Context) error { return errors.New("down") },
	})

	rec, env := get(t, h, "/admin/stats", "admin-1")
	require.Equal(t, http.StatusOK, rec.Code)

	var stats SystemStatsResponse
	require.NoError(t, json.Unmarshal(env.Data, &stats))
	assert.True(t, stats.Database.Healthy)
	assert.False(t, stats.Redis.Healthy)
	require.NotNil(t, stats.Database.Stats)
	assert.Equal(t, 3, stats.Database.Stats.OpenConnections)
	assert.Equal(t, uint32(4), stats.Redis.Stats.TotalConns)
	assert.NotEmpty(t, stats.Runtime.GoVersion)
}

// AngelaMos | 2026
// settings.go

package settings

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/carterperez-dev/templates/tenant-runtime/internal/activity"
	"github.com/carterperez-dev/templates/tenant-runtime/internal/core"
	"github.com/carterperez-dev/templates/tenant-runtime/internal/module"
	"github.com/carterperez-dev/templates/tenant-runtime/internal/tenant"
)

const ID = "settings"

// The primary key stays a surrogate id; per-workspace key uniqueness lives in
// the compound index, which is also what the upsert conflicts on.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS settings (
		id UUID PRIMARY KEY,
		workspace_id UUID NOT NULL REFERENCES workspaces(id) ON DELETE CASCADE,
		key TEXT NOT NULL,
		value JSONB NOT NULL DEFAULT 'null',
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_settings_workspace_key
		ON settings (workspace_id, key)`,
}

type Setting struct {
	ID          string    `db:"id"`
	WorkspaceID string    `db:"workspace_id"`
	Key         string    `db:"key"`
	Value       string    `db:"value"`
	UpdatedAt   time.Time `db:"updated_at"`
}

type PutSettingRequest struct {
	Value json.RawMessage `json:"value" validate:"required"`
}

type SettingResponse struct {
	Key       string          `json:"key"`
	Value     json.RawMessage `json:"value"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func toResponse(s *Setting) SettingResponse {
	return SettingResponse{
		Key:       s.Key,
		Value:     json.RawMessage(s.Value),
		UpdatedAt: s.UpdatedAt,
	}
}

func New(deps module.Deps) (*module.Descriptor, error) {
	if deps.DB == nil {
		return nil, errors.New("settings: database required")
	}

	h := &handler{db: deps.DB, activity: deps.Activity}
	return &module.Descriptor{
		ID:     ID,
		Name:   "Settings",
		Tables: []string{"settings"},
		InitSchema: func(ctx context.Context, db core.DBTX) error {
			for _, stmt := range schema {
				if _, err := db.ExecContext(ctx, stmt); err != nil {
					return err
				}
			}
			return nil
		},
		Routes: h.routes,
	}, nil
}

type handler struct {
	db       core.DBTX
	activity *activity.Recorder
}

func (h *handler) routes(r chi.Router) {
	r.Get("/", h.list)
	r.Get("/{key}", h.get)
	r.With(tenant.RequireWriter).Put("/{key}", h.put)
	r.With(tenant.RequireWriter).Delete("/{key}", h.remove)
}

const selectSetting = `
	SELECT id, workspace_id, key, value::text AS value, updated_at
	FROM settings`

func settingKey(w http.ResponseWriter, r *http.Request) (string, bool) {
	key := chi.URLParam(r, "key")
	if err := module.Validator.Var(key, "required,max=100,printascii"); err != nil {
		core.BadRequest(w, "key must be 1 to 100 printable characters")
		return "", false
	}
	return key, true
}

func (h *handler) list(w http.ResponseWriter, r *http.Request) {
	scope := tenant.MustFromContext(r.Context())

	var items []Setting
	err := h.db.SelectContext(r.Context(), &items,
		selectSetting+` WHERE workspace_id = $1 ORDER BY key ASC`,
		scope.WorkspaceID,
	)
	if err != nil {
		core.JSONError(w, fmt.Errorf("list settings: %w", err))
		return
	}

	out := make([]SettingResponse, 0, len(items))
	for i := range items {
		out = append(out, toResponse(&items[i]))
	}
	core.OK(w, out)
}

func (h *handler) get(w http.ResponseWriter, r *http.Request) {
	key, ok := settingKey(w, r)
	if !ok {
		return
	}
	scope := tenant.MustFromContext(r.Context())

	var s Setting
	err := h.db.GetContext(r.Context(), &s,
		selectSetting+` WHERE workspace_id = $1 AND key = $2`,
		scope.WorkspaceID,
		key,
	)
	if errors.Is(err, sql.ErrNoRows) {
		core.NotFound(w, "setting")
		return
	}
	if err != nil {
		core.JSONError(w, fmt.Errorf("get setting: %w", err))
		return
	}
	core.OK(w, toResponse(&s))
}

func (h *handler) put(w http.ResponseWriter, r *http.Request) {
	key, ok := settingKey(w, r)
	if !ok {
		return
	}
	var req PutSettingRequest
	if !module.Decode(w, r, &req) {
		return
	}
	scope := tenant.MustFromContext(r.Context())

	s := Setting{
		ID:          uuid.New().String(),
		WorkspaceID: scope.WorkspaceID,
		Key:         key,
		Value:       string(req.Value),
	}
	err := h.db.GetContext(r.Context(), &s.UpdatedAt, `
		INSERT INTO settings (id, workspace_id, key, value)
		VALUES ($1, $2, $3, $4::jsonb)
		ON CONFLICT (workspace_id, key)
		DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()
		RETURNING updated_at`,
		s.ID,
		s.WorkspaceID,
		s.Key,
		s.Value,
	)
	if err != nil {
		core.JSONError(w, core.MapWriteError("put setting", err))
		return
	}

	h.activity.Log(r.Context(), activity.Event{
		WorkspaceID: scope.WorkspaceID,
		UserID:      scope.UserID,
		Action:      activity.ActionSettingUpdated,
		Subject:     key,
	})
	core.OK(w, toResponse(&s))
}

func (h *handler) remove(w http.ResponseWriter, r *http.Request) {
	key, ok := settingKey(w, r)
	if !ok {
		return
	}
	scope := tenant.MustFromContext(r.Context())

	result, err := h.db.ExecContext(r.Context(),
		`DELETE FROM settings WHERE workspace_id = $1 AND key = $2`,
		scope.WorkspaceID,
		key,
	)
	if err != nil {
		core.JSONError(w, fmt.Errorf("delete setting: %w", err))
		return
	}
	if n, err := result.RowsAffected(); err != nil || n == 0 {
		core.NotFound(w, "setting")
		return
	}

	h.activity.Log(r.Context(), activity.Event{
		WorkspaceID: scope.WorkspaceID,
		UserID:      scope.UserID,
		Action:      activity.ActionSettingDeleted,
		Subject:     key,
	})
	core.NoContent(w)
}

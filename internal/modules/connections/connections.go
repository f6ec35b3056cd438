// AngelaMos | 2026
// connections.go

package connections

import (
	"context"
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

const ID = "connections"

// A workspace holds at most one connection per external provider. Tables
// created before tenant scoping get the same index from the backfill.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS connections (
		id UUID PRIMARY KEY,
		workspace_id UUID NOT NULL REFERENCES workspaces(id) ON DELETE CASCADE,
		provider TEXT NOT NULL,
		label TEXT NOT NULL DEFAULT '',
		account TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_connections_workspace_provider
		ON connections (workspace_id, provider)`,
}

type Connection struct {
	ID          string    `db:"id"`
	WorkspaceID string    `db:"workspace_id"`
	Provider    string    `db:"provider"`
	Label       string    `db:"label"`
	Account     string    `db:"account"`
	CreatedAt   time.Time `db:"created_at"`
}

type CreateConnectionRequest struct {
	Provider string `json:"provider" validate:"required,min=2,max=50,alphanum,lowercase"`
	Label    string `json:"label"    validate:"omitempty,max=100"`
	Account  string `json:"account"  validate:"omitempty,max=200"`
}

type ConnectionResponse struct {
	ID        string    `json:"id"`
	Provider  string    `json:"provider"`
	Label     string    `json:"label"`
	Account   string    `json:"account"`
	CreatedAt time.Time `json:"created_at"`
}

func toResponse(c *Connection) ConnectionResponse {
	return ConnectionResponse{
		ID:        c.ID,
		Provider:  c.Provider,
		Label:     c.Label,
		Account:   c.Account,
		CreatedAt: c.CreatedAt,
	}
}

func New(deps module.Deps) (*module.Descriptor, error) {
	if deps.DB == nil {
		return nil, errors.New("connections: database required")
	}

	h := &handler{db: deps.DB, activity: deps.Activity}
	return &module.Descriptor{
		ID:     ID,
		Name:   "Connections",
		Tables: []string{"connections"},
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
	r.With(tenant.RequireWriter).Post("/", h.create)
	r.With(tenant.RequireWriter).Delete("/{connectionID}", h.remove)
}

func (h *handler) list(w http.ResponseWriter, r *http.Request) {
	scope := tenant.MustFromContext(r.Context())

	var items []Connection
	err := h.db.SelectContext(r.Context(), &items, `
		SELECT id, workspace_id, provider, label, account, created_at
		FROM connections
		WHERE workspace_id = $1
		ORDER BY provider ASC`,
		scope.WorkspaceID,
	)
	if err != nil {
		core.JSONError(w, fmt.Errorf("list connections: %w", err))
		return
	}

	out := make([]ConnectionResponse, 0, len(items))
	for i := range items {
		out = append(out, toResponse(&items[i]))
	}
	core.OK(w, out)
}

func (h *handler) create(w http.ResponseWriter, r *http.Request) {
	var req CreateConnectionRequest
	if !module.Decode(w, r, &req) {
		return
	}
	scope := tenant.MustFromContext(r.Context())

	c := &Connection{
		ID:          uuid.New().String(),
		WorkspaceID: scope.WorkspaceID,
		Provider:    req.Provider,
		Label:       req.Label,
		Account:     req.Account,
	}
	err := h.db.GetContext(r.Context(), &c.CreatedAt, `
		INSERT INTO connections (id, workspace_id, provider, label, account)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at`,
		c.ID,
		c.WorkspaceID,
		c.Provider,
		c.Label,
		c.Account,
	)
	if err = core.MapWriteError("create connection", err); err != nil {
		if errors.Is(err, core.ErrDuplicateKey) {
			core.JSONError(w, core.DuplicateError("connection for "+req.Provider))
			return
		}
		core.JSONError(w, err)
		return
	}

	h.activity.Log(r.Context(), activity.Event{
		WorkspaceID: scope.WorkspaceID,
		UserID:      scope.UserID,
		Action:      activity.ActionConnectionCreated,
		Subject:     c.ID,
		Metadata:    map[string]any{"provider": c.Provider},
	})
	core.Created(w, toResponse(c))
}

func (h *handler) remove(w http.ResponseWriter, r *http.Request) {
	scope := tenant.MustFromContext(r.Context())
	id := chi.URLParam(r, "connectionID")
	if _, err := uuid.Parse(id); err != nil {
		core.NotFound(w, "connection")
		return
	}

	result, err := h.db.ExecContext(r.Context(),
		`DELETE FROM connections WHERE workspace_id = $1 AND id = $2`,
		scope.WorkspaceID,
		id,
	)
	if err != nil {
		core.JSONError(w, fmt.Errorf("delete connection: %w", err))
		return
	}
	if n, err := result.RowsAffected(); err != nil || n == 0 {
		core.NotFound(w, "connection")
		return
	}

	h.activity.Log(r.Context(), activity.Event{
		WorkspaceID: scope.WorkspaceID,
		UserID:      scope.UserID,
		Action:      activity.ActionConnectionDeleted,
		Subject:     id,
	})
	core.NoContent(w)
}

// AngelaMos | 2026
// articles.go

package articles

import (
	"context"
	"errors"
	"log/slog"

	"github.com/go-chi/chi/v5"

	"github.com/carterperez-dev/templates/tenant-runtime/internal/core"
	"github.com/carterperez-dev/templates/tenant-runtime/internal/module"
	"github.com/carterperez-dev/templates/tenant-runtime/internal/tenant"
)

const (
	ID        = "articles"
	tableName = "articles"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS articles (
		id UUID PRIMARY KEY,
		workspace_id UUID NOT NULL REFERENCES workspaces(id) ON DELETE CASCADE,
		created_by UUID REFERENCES users(id) ON DELETE SET NULL,
		title TEXT NOT NULL,
		prompt TEXT NOT NULL,
		body TEXT NOT NULL DEFAULT '',
		model TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_articles_workspace_id
		ON articles (workspace_id, created_at DESC)`,
}

// New builds the content generation module. Generated text is streamed to
// the caller and the finished article is stored in the caller's workspace.
func New(deps module.Deps) (*module.Descriptor, error) {
	if deps.DB == nil {
		return nil, errors.New("articles: database required")
	}
	if deps.Generator == nil {
		return nil, errors.New("articles: generator required")
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	h := &handler{
		repo:      NewRepository(deps.DB),
		generator: deps.Generator,
		activity:  deps.Activity,
		metrics:   deps.Metrics,
		limiter:   deps.GenerationLimiter,
		logger:    logger.With("module", ID),
	}

	return &module.Descriptor{
		ID:         ID,
		Name:       "Articles",
		Tables:     []string{tableName},
		InitSchema: initSchema,
		Routes:     h.routes,
	}, nil
}

func initSchema(ctx context.Context, db core.DBTX) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (h *handler) routes(r chi.Router) {
	r.Get("/", h.list)
	r.Get("/{articleID}", h.get)

	r.Group(func(r chi.Router) {
		r.Use(tenant.RequireWriter)
		r.Delete("/{articleID}", h.remove)

		if h.limiter != nil {
			r.With(h.limiter).Post("/generate", h.generate)
		} else {
			r.Post("/generate", h.generate)
		}
	})
}

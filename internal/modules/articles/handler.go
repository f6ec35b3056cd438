// AngelaMos | 2026
// handler.go

package articles

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/carterperez-dev/templates/tenant-runtime/internal/activity"
	"github.com/carterperez-dev/templates/tenant-runtime/internal/core"
	"github.com/carterperez-dev/templates/tenant-runtime/internal/metrics"
	"github.com/carterperez-dev/templates/tenant-runtime/internal/module"
	"github.com/carterperez-dev/templates/tenant-runtime/internal/provider"
	"github.com/carterperez-dev/templates/tenant-runtime/internal/stream"
	"github.com/carterperez-dev/templates/tenant-runtime/internal/tenant"
)

const systemPrompt = "You write clear, well structured articles in Markdown."

type GenerateRequest struct {
	Title     string `json:"title"      validate:"required,min=1,max=200"`
	Prompt    string `json:"prompt"     validate:"required,min=1,max=4000"`
	Tone      string `json:"tone"       validate:"omitempty,oneof=neutral formal casual persuasive"`
	MaxTokens int    `json:"max_tokens" validate:"omitempty,min=1,max=4096"`
}

type ArticleResponse struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Prompt    string    `json:"prompt"`
	Body      string    `json:"body"`
	Model     string    `json:"model"`
	CreatedBy string    `json:"created_by,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func toResponse(a *Article) ArticleResponse {
	return ArticleResponse{
		ID:        a.ID,
		Title:     a.Title,
		Prompt:    a.Prompt,
		Body:      a.Body,
		Model:     a.Model,
		CreatedBy: a.CreatedBy.String,
		CreatedAt: a.CreatedAt,
	}
}

type handler struct {
	repo      Repository
	generator provider.Generator
	activity  *activity.Recorder
	metrics   *metrics.Metrics
	limiter   func(http.Handler) http.Handler
	logger    *slog.Logger
}

func (h *handler) list(w http.ResponseWriter, r *http.Request) {
	scope := tenant.MustFromContext(r.Context())
	page := module.PageFromQuery(r)

	items, total, err := h.repo.List(
		r.Context(),
		scope.WorkspaceID,
		page.PageSize,
		page.Offset(),
	)
	if err != nil {
		core.JSONError(w, err)
		return
	}

	out := make([]ArticleResponse, 0, len(items))
	for i := range items {
		out = append(out, toResponse(&items[i]))
	}
	core.Paginated(w, out, page.Page, page.PageSize, total)
}

func (h *handler) get(w http.ResponseWriter, r *http.Request) {
	scope := tenant.MustFromContext(r.Context())
	id := chi.URLParam(r, "articleID")
	if _, err := uuid.Parse(id); err != nil {
		core.NotFound(w, "article")
		return
	}

	a, err := h.repo.Get(r.Context(), scope.WorkspaceID, id)
	if err != nil {
		core.JSONError(w, notFound(err))
		return
	}
	core.OK(w, toResponse(a))
}

func (h *handler) remove(w http.ResponseWriter, r *http.Request) {
	scope := tenant.MustFromContext(r.Context())
	id := chi.URLParam(r, "articleID")
	if _, err := uuid.Parse(id); err != nil {
		core.NotFound(w, "article")
		return
	}

	if err := h.repo.Delete(r.Context(), scope.WorkspaceID, id); err != nil {
		core.JSONError(w, notFound(err))
		return
	}

	h.activity.Log(r.Context(), activity.Event{
		WorkspaceID: scope.WorkspaceID,
		UserID:      scope.UserID,
		Action:      activity.ActionArticleDeleted,
		Subject:     id,
	})
	core.NoContent(w)
}

// generate validates before switching to event-stream mode so bad input
// still gets a plain JSON error.
func (h *handler) generate(w http.ResponseWriter, r *http.Request) {
	var req GenerateRequest
	if !module.Decode(w, r, &req) {
		return
	}
	scope := tenant.MustFromContext(r.Context())

	ch, err := stream.Open(w, r,
		stream.WithLogger(h.logger),
		stream.WithObserver(h.observe),
	)
	if err != nil {
		core.JSONError(w, err)
		return
	}

	ctx, span := core.StartSpan(r.Context(), "articles.generate",
		core.AttrWorkspaceID.String(scope.WorkspaceID),
	)
	err = stream.Relay(ctx, ch, func(ctx context.Context, emit func(string) error) (any, error) {
		completion, err := h.generator.Stream(ctx, buildRequest(req), emit)
		if err != nil {
			return nil, err
		}

		a := &Article{
			ID:          uuid.New().String(),
			WorkspaceID: scope.WorkspaceID,
			CreatedBy:   sql.NullString{String: scope.UserID, Valid: scope.UserID != ""},
			Title:       req.Title,
			Prompt:      req.Prompt,
			Body:        completion.Text,
			Model:       completion.Model,
		}
		if err := h.repo.Create(ctx, a); err != nil {
			return nil, err
		}
		core.AddSpanEvent(ctx, "article.persisted", core.AttrTable.String(tableName))

		h.activity.Log(ctx, activity.Event{
			WorkspaceID: scope.WorkspaceID,
			UserID:      scope.UserID,
			Action:      activity.ActionArticleGenerated,
			Subject:     a.ID,
			Metadata:    map[string]any{"model": a.Model},
		})
		return toResponse(a), nil
	})
	core.EndSpan(span, err)
}

func (h *handler) observe(kind string) {
	if h.metrics != nil {
		h.metrics.StreamEvents.WithLabelValues(kind).Inc()
	}
}

func buildRequest(req GenerateRequest) provider.Request {
	system := systemPrompt
	if req.Tone != "" {
		system += " Use a " + req.Tone + " tone."
	}
	return provider.Request{
		System:    system,
		Prompt:    "Title: " + req.Title + "\n\n" + req.Prompt,
		MaxTokens: req.MaxTokens,
	}
}

func notFound(err error) error {
	if errors.Is(err, core.ErrNotFound) {
		return core.NotFoundError("article")
	}
	return err
}

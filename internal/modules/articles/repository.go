// AngelaMos | 2026
// repository.go

package articles

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/carterperez-dev/templates/tenant-runtime/internal/core"
)

type Article struct {
	ID          string         `db:"id"`
	WorkspaceID string         `db:"workspace_id"`
	CreatedBy   sql.NullString `db:"created_by"`
	Title       string         `db:"title"`
	Prompt      string         `db:"prompt"`
	Body        string         `db:"body"`
	Model       string         `db:"model"`
	CreatedAt   time.Time      `db:"created_at"`
}

// Repository methods all take the workspace id; no query reads or writes
// across workspaces.
type Repository interface {
	Create(ctx context.Context, a *Article) error
	Get(ctx context.Context, workspaceID, id string) (*Article, error)
	List(
		ctx context.Context,
		workspaceID string,
		limit, offset int,
	) ([]Article, int, error)
	Delete(ctx context.Context, workspaceID, id string) error
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

const articleColumns = `id, workspace_id, created_by, title, prompt, body, model, created_at`

func (r *repository) Create(ctx context.Context, a *Article) error {
	query := `
		INSERT INTO articles (
			id, workspace_id, created_by, title, prompt, body, model
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at`

	err := r.db.GetContext(ctx, &a.CreatedAt, query,
		a.ID,
		a.WorkspaceID,
		a.CreatedBy,
		a.Title,
		a.Prompt,
		a.Body,
		a.Model,
	)
	return core.MapWriteError("create article", err)
}

func (r *repository) Get(ctx context.Context, workspaceID, id string) (*Article, error) {
	query := `SELECT ` + articleColumns + `
		FROM articles
		WHERE workspace_id = $1 AND id = $2`

	var a Article
	err := r.db.GetContext(ctx, &a, query, workspaceID, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get article: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get article: %w", err)
	}
	return &a, nil
}

func (r *repository) List(
	ctx context.Context,
	workspaceID string,
	limit, offset int,
) ([]Article, int, error) {
	var total int
	countQuery := `SELECT COUNT(*) FROM articles WHERE workspace_id = $1`
	if err := r.db.GetContext(ctx, &total, countQuery, workspaceID); err != nil {
		return nil, 0, fmt.Errorf("count articles: %w", err)
	}

	query := `SELECT ` + articleColumns + `
		FROM articles
		WHERE workspace_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3`

	var items []Article
	if err := r.db.SelectContext(ctx, &items, query, workspaceID, limit, offset); err != nil {
		return nil, 0, fmt.Errorf("list articles: %w", err)
	}
	return items, total, nil
}

func (r *repository) Delete(ctx context.Context, workspaceID, id string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM articles WHERE workspace_id = $1 AND id = $2`,
		workspaceID,
		id,
	)
	if err != nil {
		return fmt.Errorf("delete article: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete article: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("delete article: %w", core.ErrNotFound)
	}
	return nil
}

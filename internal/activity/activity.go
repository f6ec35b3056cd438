// AngelaMos | 2026
// activity.go

package activity

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/carterperez-dev/templates/tenant-runtime/internal/core"
)

const (
	ActionWorkspaceCreated = "workspace.created"
	ActionWorkspaceUpdated = "workspace.updated"
	ActionMemberInvited    = "member.invited"
	ActionMemberRoleChange = "member.role_changed"
	ActionMemberRemoved    = "member.removed"

	ActionArticleGenerated  = "article.generated"
	ActionArticleDeleted    = "article.deleted"
	ActionConnectionCreated = "connection.created"
	ActionConnectionDeleted = "connection.deleted"
	ActionSettingUpdated    = "setting.updated"
	ActionSettingDeleted    = "setting.deleted"
)

// Entry is one row of a workspace's audit trail.
type Entry struct {
	ID          string    `db:"id"`
	WorkspaceID string    `db:"workspace_id"`
	UserID      string    `db:"user_id"`
	Action      string    `db:"action"`
	Subject     string    `db:"subject"`
	Metadata    []byte    `db:"metadata"`
	CreatedAt   time.Time `db:"created_at"`
}

type Event struct {
	WorkspaceID string
	UserID      string
	Action      string
	Subject     string
	Metadata    map[string]any
}

type Repository interface {
	Insert(ctx context.Context, e *Entry) error
	List(
		ctx context.Context,
		workspaceID string,
		limit, offset int,
	) ([]Entry, int, error)
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

func (r *repository) Insert(ctx context.Context, e *Entry) error {
	query := `
		INSERT INTO activity_log (
			id, workspace_id, user_id, action, subject, metadata
		) VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at`

	err := r.db.GetContext(ctx, &e.CreatedAt, query,
		e.ID,
		e.WorkspaceID,
		e.UserID,
		e.Action,
		e.Subject,
		string(e.Metadata),
	)
	return core.MapWriteError("insert activity", err)
}

func (r *repository) List(
	ctx context.Context,
	workspaceID string,
	limit, offset int,
) ([]Entry, int, error) {
	var total int
	countQuery := `SELECT COUNT(*) FROM activity_log WHERE workspace_id = $1`
	if err := r.db.GetContext(ctx, &total, countQuery, workspaceID); err != nil {
		return nil, 0, fmt.Errorf("count activity: %w", err)
	}

	query := `
		SELECT id, workspace_id, user_id, action, subject,
		       metadata::text AS metadata, created_at
		FROM activity_log
		WHERE workspace_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3`

	var entries []Entry
	if err := r.db.SelectContext(ctx, &entries, query, workspaceID, limit, offset); err != nil {
		return nil, 0, fmt.Errorf("list activity: %w", err)
	}

	return entries, total, nil
}

// Recorder writes audit entries on a best-effort basis. A failed write is
// logged and never fails the operation being audited.
type Recorder struct {
	repo   Repository
	logger *slog.Logger
}

func NewRecorder(repo Repository, logger *slog.Logger) *Recorder {
	return &Recorder{repo: repo, logger: logger}
}

// Log is a no-op on a nil Recorder.
func (r *Recorder) Log(ctx context.Context, ev Event) {
	if r == nil {
		return
	}

	meta := []byte("{}")
	if len(ev.Metadata) > 0 {
		encoded, err := json.Marshal(ev.Metadata)
		if err != nil {
			r.logger.Warn("encode activity metadata", "action", ev.Action, "error", err)
		} else {
			meta = encoded
		}
	}

	entry := &Entry{
		ID:          uuid.New().String(),
		WorkspaceID: ev.WorkspaceID,
		UserID:      ev.UserID,
		Action:      ev.Action,
		Subject:     ev.Subject,
		Metadata:    meta,
	}

	if err := r.repo.Insert(ctx, entry); err != nil {
		r.logger.Warn("record activity failed",
			"action", ev.Action,
			"workspace_id", ev.WorkspaceID,
			"error", err,
		)
	}
}

func (r *Recorder) List(
	ctx context.Context,
	workspaceID string,
	limit, offset int,
) ([]Entry, int, error) {
	return r.repo.List(ctx, workspaceID, limit, offset)
}

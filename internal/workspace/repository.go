// AngelaMos | 2026
// repository.go

package workspace

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/carterperez-dev/templates/tenant-runtime/internal/core"
	"github.com/carterperez-dev/templates/tenant-runtime/internal/tenant"
)

type Repository interface {
	Create(ctx context.Context, ws *Workspace) error
	GetByID(ctx context.Context, id string) (*Workspace, error)
	ListForUser(ctx context.Context, userID string) ([]Summary, error)
	UpdateName(ctx context.Context, ws *Workspace) error
	DeleteUnlessLast(ctx context.Context, id, userID string) error

	MembershipStore
	ListMembers(ctx context.Context, workspaceID string) ([]Member, error)
	AddMember(ctx context.Context, m *Membership) error
	UpdateMemberRole(
		ctx context.Context,
		workspaceID, userID string,
		role tenant.Role,
	) error
	RemoveMember(ctx context.Context, workspaceID, userID string) error
}

// MembershipStore is the read side the resolver needs.
type MembershipStore interface {
	GetMembership(
		ctx context.Context,
		workspaceID, userID string,
	) (*Membership, error)
	EarliestMembership(ctx context.Context, userID string) (*Membership, error)
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

// Create inserts the workspace and its owner membership in one statement.
func (r *repository) Create(ctx context.Context, ws *Workspace) error {
	query := `
		WITH created AS (
			INSERT INTO workspaces (id, name, slug, owner_id)
			VALUES ($1, $2, $3, $4)
			RETURNING id, owner_id, created_at, updated_at
		), owner_member AS (
			INSERT INTO workspace_members (workspace_id, user_id, role)
			SELECT id, owner_id, 'owner' FROM created
		)
		SELECT created_at, updated_at FROM created`

	err := r.db.QueryRowxContext(ctx, query,
		ws.ID,
		ws.Name,
		ws.Slug,
		ws.OwnerID,
	).Scan(&ws.CreatedAt, &ws.UpdatedAt)

	return core.MapWriteError("create workspace", err)
}

func (r *repository) GetByID(ctx context.Context, id string) (*Workspace, error) {
	query := `
		SELECT id, name, slug, owner_id, created_at, updated_at
		FROM workspaces
		WHERE id = $1`

	var ws Workspace
	err := r.db.GetContext(ctx, &ws, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get workspace: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get workspace: %w", err)
	}

	return &ws, nil
}

func (r *repository) ListForUser(
	ctx context.Context,
	userID string,
) ([]Summary, error) {
	query := `
		SELECT w.id, w.name, w.slug, w.owner_id, w.created_at, w.updated_at,
		       m.role
		FROM workspace_members m
		JOIN workspaces w ON w.id = m.workspace_id
		WHERE m.user_id = $1
		ORDER BY m.joined_at ASC, w.id ASC`

	var out []Summary
	if err := r.db.SelectContext(ctx, &out, query, userID); err != nil {
		return nil, fmt.Errorf("list workspaces: %w", err)
	}

	return out, nil
}

func (r *repository) UpdateName(ctx context.Context, ws *Workspace) error {
	query := `
		UPDATE workspaces
		SET name = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`

	err := r.db.GetContext(ctx, &ws.UpdatedAt, query, ws.ID, ws.Name)
	return core.MapWriteError("update workspace", err)
}

// DeleteUnlessLast deletes the workspace only while userID belongs to at
// least one other workspace. The user's membership rows are locked first, so
// concurrent deletes for the same user run one after the other and the later
// one counts what the earlier one left.
func (r *repository) DeleteUnlessLast(ctx context.Context, id, userID string) error {
	query := `
		WITH locked AS (
			SELECT workspace_id FROM workspace_members
			WHERE user_id = $2
			FOR UPDATE
		), removed AS (
			DELETE FROM workspaces
			WHERE id = $1 AND (SELECT COUNT(*) FROM locked) > 1
			RETURNING id
		)
		SELECT (SELECT COUNT(*) FROM locked) AS memberships,
		       (SELECT COUNT(*) FROM removed) AS deleted`

	var out struct {
		Memberships int `db:"memberships"`
		Deleted     int `db:"deleted"`
	}
	if err := r.db.GetContext(ctx, &out, query, id, userID); err != nil {
		return fmt.Errorf("delete workspace: %w", err)
	}

	switch {
	case out.Deleted > 0:
		return nil
	case out.Memberships <= 1:
		return fmt.Errorf("delete workspace: %w", core.ErrLastWorkspace)
	default:
		return fmt.Errorf("delete workspace: %w", core.ErrNotFound)
	}
}

func (r *repository) GetMembership(
	ctx context.Context,
	workspaceID, userID string,
) (*Membership, error) {
	query := `
		SELECT workspace_id, user_id, role, joined_at
		FROM workspace_members
		WHERE workspace_id = $1 AND user_id = $2`

	var m Membership
	err := r.db.GetContext(ctx, &m, query, workspaceID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get membership: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get membership: %w", err)
	}

	return &m, nil
}

func (r *repository) EarliestMembership(
	ctx context.Context,
	userID string,
) (*Membership, error) {
	query := `
		SELECT workspace_id, user_id, role, joined_at
		FROM workspace_members
		WHERE user_id = $1
		ORDER BY joined_at ASC, workspace_id ASC
		LIMIT 1`

	var m Membership
	err := r.db.GetContext(ctx, &m, query, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("earliest membership: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("earliest membership: %w", err)
	}

	return &m, nil
}

func (r *repository) ListMembers(
	ctx context.Context,
	workspaceID string,
) ([]Member, error) {
	query := `
		SELECT m.workspace_id, m.user_id, m.role, m.joined_at,
		       u.email, u.name
		FROM workspace_members m
		JOIN users u ON u.id = m.user_id
		WHERE m.workspace_id = $1
		ORDER BY m.joined_at ASC`

	var out []Member
	if err := r.db.SelectContext(ctx, &out, query, workspaceID); err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}

	return out, nil
}

func (r *repository) AddMember(ctx context.Context, m *Membership) error {
	query := `
		INSERT INTO workspace_members (workspace_id, user_id, role)
		VALUES ($1, $2, $3)
		RETURNING joined_at`

	err := r.db.GetContext(ctx, &m.JoinedAt, query,
		m.WorkspaceID,
		m.UserID,
		string(m.Role),
	)
	return core.MapWriteError("add member", err)
}

func (r *repository) UpdateMemberRole(
	ctx context.Context,
	workspaceID, userID string,
	role tenant.Role,
) error {
	query := `
		UPDATE workspace_members
		SET role = $3
		WHERE workspace_id = $1 AND user_id = $2 AND role <> 'owner'`

	result, err := r.db.ExecContext(ctx, query, workspaceID, userID, string(role))
	if err != nil {
		return fmt.Errorf("update member role: %w", err)
	}

	return requireAffected("update member role", result)
}

func (r *repository) RemoveMember(
	ctx context.Context,
	workspaceID, userID string,
) error {
	query := `
		DELETE FROM workspace_members
		WHERE workspace_id = $1 AND user_id = $2 AND role <> 'owner'`

	result, err := r.db.ExecContext(ctx, query, workspaceID, userID)
	if err != nil {
		return fmt.Errorf("remove member: %w", err)
	}

	return requireAffected("remove member", result)
}

func requireAffected(op string, result sql.Result) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if rows == 0 {
		return fmt.Errorf("%s: %w", op, core.ErrNotFound)
	}
	return nil
}

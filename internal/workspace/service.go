// AngelaMos | 2026
// service.go

package workspace

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/carterperez-dev/templates/tenant-runtime/internal/activity"
	"github.com/carterperez-dev/templates/tenant-runtime/internal/core"
	"github.com/carterperez-dev/templates/tenant-runtime/internal/tenant"
)

const (
	slugAttempts  = 3
	slugMaxLength = 48
)

// UserDirectory resolves invitees by email.
type UserDirectory interface {
	FindIDByEmail(ctx context.Context, email string) (string, error)
}

type ActivityLogger interface {
	Log(ctx context.Context, ev activity.Event)
}

type Service struct {
	repo     Repository
	users    UserDirectory
	activity ActivityLogger
	logger   *slog.Logger
}

func NewService(
	repo Repository,
	users UserDirectory,
	recorder ActivityLogger,
	logger *slog.Logger,
) *Service {
	return &Service{
		repo:     repo,
		users:    users,
		activity: recorder,
		logger:   logger,
	}
}

func (s *Service) Create(
	ctx context.Context,
	userID string,
	req CreateWorkspaceRequest,
) (*Summary, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, core.Invalid("name is required")
	}

	ws := &Workspace{
		ID:      uuid.New().String(),
		Name:    name,
		OwnerID: userID,
	}

	var err error
	for range slugAttempts {
		ws.Slug, err = NewSlug(name)
		if err != nil {
			return nil, err
		}

		err = s.repo.Create(ctx, ws)
		if !errors.Is(err, core.ErrDuplicateKey) {
			break
		}
		s.logger.Debug("workspace slug collision", "slug", ws.Slug)
	}
	if err != nil {
		return nil, err
	}

	s.record(ctx, ws.ID, userID, activity.ActionWorkspaceCreated, ws.ID, nil)

	return &Summary{Workspace: *ws, Role: tenant.RoleOwner}, nil
}

func (s *Service) List(ctx context.Context, userID string) ([]Summary, error) {
	return s.repo.ListForUser(ctx, userID)
}

func (s *Service) Get(
	ctx context.Context,
	userID, workspaceID string,
) (*Summary, error) {
	m, err := s.membership(ctx, workspaceID, userID)
	if err != nil {
		return nil, err
	}

	ws, err := s.repo.GetByID(ctx, workspaceID)
	if err != nil {
		return nil, err
	}

	return &Summary{Workspace: *ws, Role: m.Role}, nil
}

func (s *Service) Update(
	ctx context.Context,
	userID, workspaceID string,
	req UpdateWorkspaceRequest,
) (*Summary, error) {
	if _, err := s.requireOwner(ctx, workspaceID, userID); err != nil {
		return nil, err
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, core.Invalid("name is required")
	}

	ws, err := s.repo.GetByID(ctx, workspaceID)
	if err != nil {
		return nil, err
	}

	ws.Name = name
	if err := s.repo.UpdateName(ctx, ws); err != nil {
		return nil, err
	}

	s.record(ctx, ws.ID, userID, activity.ActionWorkspaceUpdated, ws.ID,
		map[string]any{"name": name})

	return &Summary{Workspace: *ws, Role: tenant.RoleOwner}, nil
}

// Delete removes a workspace the caller owns, unless it is the only
// workspace the caller belongs to.
func (s *Service) Delete(ctx context.Context, userID, workspaceID string) error {
	if _, err := s.requireOwner(ctx, workspaceID, userID); err != nil {
		return err
	}

	err := s.repo.DeleteUnlessLast(ctx, workspaceID, userID)
	if errors.Is(err, core.ErrLastWorkspace) {
		return core.LastWorkspaceError()
	}
	if err != nil {
		return err
	}

	s.logger.Info("workspace deleted", "workspace_id", workspaceID, "user_id", userID)
	return nil
}

func (s *Service) ListMembers(
	ctx context.Context,
	userID, workspaceID string,
) ([]Member, error) {
	if _, err := s.membership(ctx, workspaceID, userID); err != nil {
		return nil, err
	}

	return s.repo.ListMembers(ctx, workspaceID)
}

func (s *Service) Invite(
	ctx context.Context,
	userID, workspaceID string,
	req InviteMemberRequest,
) (*Membership, error) {
	if _, err := s.requireOwner(ctx, workspaceID, userID); err != nil {
		return nil, err
	}

	role, err := assignableRole(req.Role)
	if err != nil {
		return nil, err
	}

	inviteeID, err := s.users.FindIDByEmail(ctx, req.Email)
	if err != nil {
		return nil, err
	}

	m := &Membership{
		WorkspaceID: workspaceID,
		UserID:      inviteeID,
		Role:        role,
	}
	if err := s.repo.AddMember(ctx, m); err != nil {
		if errors.Is(err, core.ErrDuplicateKey) {
			return nil, core.DuplicateError("member")
		}
		return nil, err
	}

	s.record(ctx, workspaceID, userID, activity.ActionMemberInvited, inviteeID,
		map[string]any{"role": string(role)})

	return m, nil
}

func (s *Service) ChangeRole(
	ctx context.Context,
	userID, workspaceID, targetID string,
	req UpdateMemberRoleRequest,
) error {
	if _, err := s.requireOwner(ctx, workspaceID, userID); err != nil {
		return err
	}
	if targetID == userID {
		return core.Invalid("you cannot change your own role")
	}

	role, err := assignableRole(req.Role)
	if err != nil {
		return err
	}

	if err := s.checkTarget(ctx, workspaceID, targetID); err != nil {
		return err
	}

	if err := s.repo.UpdateMemberRole(ctx, workspaceID, targetID, role); err != nil {
		return err
	}

	s.record(ctx, workspaceID, userID, activity.ActionMemberRoleChange, targetID,
		map[string]any{"role": string(role)})
	return nil
}

func (s *Service) RemoveMember(
	ctx context.Context,
	userID, workspaceID, targetID string,
) error {
	if _, err := s.requireOwner(ctx, workspaceID, userID); err != nil {
		return err
	}
	if targetID == userID {
		return core.Invalid("you cannot remove yourself")
	}

	if err := s.checkTarget(ctx, workspaceID, targetID); err != nil {
		return err
	}

	if err := s.repo.RemoveMember(ctx, workspaceID, targetID); err != nil {
		return err
	}

	s.record(ctx, workspaceID, userID, activity.ActionMemberRemoved, targetID, nil)
	return nil
}

// membership returns the caller's membership. Non-members and malformed
// ids are answered the same way so workspace ids cannot be probed.
func (s *Service) membership(
	ctx context.Context,
	workspaceID, userID string,
) (*Membership, error) {
	if uuid.Validate(workspaceID) != nil {
		return nil, core.WorkspaceForbiddenError("")
	}

	m, err := s.repo.GetMembership(ctx, workspaceID, userID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, core.WorkspaceForbiddenError("")
		}
		return nil, err
	}

	return m, nil
}

func (s *Service) requireOwner(
	ctx context.Context,
	workspaceID, userID string,
) (*Membership, error) {
	m, err := s.membership(ctx, workspaceID, userID)
	if err != nil {
		return nil, err
	}
	if m.Role != tenant.RoleOwner {
		return nil, core.WorkspaceForbiddenError(
			"only the workspace owner can do this",
		)
	}
	return m, nil
}

func (s *Service) checkTarget(ctx context.Context, workspaceID, targetID string) error {
	if uuid.Validate(targetID) != nil {
		return core.NotFoundError("member")
	}

	target, err := s.repo.GetMembership(ctx, workspaceID, targetID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return core.NotFoundError("member")
		}
		return err
	}
	if target.Role == tenant.RoleOwner {
		return core.WorkspaceForbiddenError("the workspace owner cannot be changed")
	}

	return nil
}

func (s *Service) record(
	ctx context.Context,
	workspaceID, userID, action, subject string,
	meta map[string]any,
) {
	if s.activity == nil {
		return
	}
	s.activity.Log(ctx, activity.Event{
		WorkspaceID: workspaceID,
		UserID:      userID,
		Action:      action,
		Subject:     subject,
		Metadata:    meta,
	})
}

func assignableRole(raw string) (tenant.Role, error) {
	role := tenant.Role(raw)
	if role != tenant.RoleEditor && role != tenant.RoleViewer {
		return "", core.Invalid("role must be editor or viewer")
	}
	return role, nil
}

// Slugify lowercases name and collapses everything outside [a-z0-9] into
// single hyphens.
func Slugify(name string) string {
	var b strings.Builder
	hyphen := false
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			hyphen = false
		case !hyphen && b.Len() > 0:
			b.WriteByte('-')
			hyphen = true
		}
	}

	slug := strings.TrimRight(b.String(), "-")
	if len(slug) > slugMaxLength {
		slug = strings.TrimRight(slug[:slugMaxLength], "-")
	}
	if slug == "" {
		slug = "workspace"
	}
	return slug
}

// NewSlug derives a globally unique slug candidate from name.
func NewSlug(name string) (string, error) {
	suffix := make([]byte, 3)
	if _, err := rand.Read(suffix); err != nil {
		return "", fmt.Errorf("generate slug suffix: %w", err)
	}
	return Slugify(name) + "-" + hex.EncodeToString(suffix), nil
}

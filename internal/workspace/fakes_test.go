// AngelaMos | 2026
// fakes_test.go

package workspace

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/carterperez-dev/templates/tenant-runtime/internal/activity"
	"github.com/carterperez-dev/templates/tenant-runtime/internal/core"
	"github.com/carterperez-dev/templates/tenant-runtime/internal/tenant"
)

type memoryRepo struct {
	mu         sync.Mutex
	workspaces map[string]Workspace
	members    map[string]map[string]Membership
	clock      time.Time
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		workspaces: make(map[string]Workspace),
		members:    make(map[string]map[string]Membership),
		clock:      time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (m *memoryRepo) tick() time.Time {
	m.clock = m.clock.Add(time.Second)
	return m.clock
}

func (m *memoryRepo) Create(_ context.Context, ws *Workspace) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.workspaces {
		if existing.Slug == ws.Slug {
			return fmt.Errorf("create workspace: %w", core.ErrDuplicateKey)
		}
	}
	now := m.tick()
	ws.CreatedAt, ws.UpdatedAt = now, now
	m.workspaces[ws.ID] = *ws
	m.members[ws.ID] = map[string]Membership{
		ws.OwnerID: {WorkspaceID: ws.ID, UserID: ws.OwnerID, Role: tenant.RoleOwner, JoinedAt: now},
	}
	return nil
}

func (m *memoryRepo) GetByID(_ context.Context, id string) (*Workspace, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ws, ok := m.workspaces[id]
	if !ok {
		return nil, fmt.Errorf("get workspace: %w", core.ErrNotFound)
	}
	return &ws, nil
}

func (m *memoryRepo) ListForUser(_ context.Context, userID string) ([]Summary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Summary
	for wsID, members := range m.members {
		if mem, ok := members[userID]; ok {
			out = append(out, Summary{Workspace: m.workspaces[wsID], Role: mem.Role})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *memoryRepo) UpdateName(_ context.Context, ws *Workspace) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ws.UpdatedAt = m.tick()
	m.workspaces[ws.ID] = *ws
	return nil
}

func (m *memoryRepo) DeleteUnlessLast(_ context.Context, id, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, members := range m.members {
		if _, ok := members[userID]; ok {
			n++
		}
	}
	if n <= 1 {
		return fmt.Errorf("delete workspace: %w", core.ErrLastWorkspace)
	}
	if _, ok := m.workspaces[id]; !ok {
		return fmt.Errorf("delete workspace: %w", core.ErrNotFound)
	}
	delete(m.workspaces, id)
	delete(m.members, id)
	return nil
}

func (m *memoryRepo) GetMembership(_ context.Context, wsID, userID string) (*Membership, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mem, ok := m.members[wsID][userID]
	if !ok {
		return nil, fmt.Errorf("get membership: %w", core.ErrNotFound)
	}
	return &mem, nil
}

func (m *memoryRepo) EarliestMembership(_ context.Context, userID string) (*Membership, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var best *Membership
	for _, members := range m.members {
		if mem, ok := members[userID]; ok {
			if best == nil || mem.JoinedAt.Before(best.JoinedAt) {
				best = &mem
			}
		}
	}
	if best == nil {
		return nil, fmt.Errorf("earliest membership: %w", core.ErrNotFound)
	}
	return best, nil
}

func (m *memoryRepo) ListMembers(_ context.Context, wsID string) ([]Member, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Member
	for _, mem := range m.members[wsID] {
		out = append(out, Member{Membership: mem})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].JoinedAt.Before(out[j].JoinedAt) })
	return out, nil
}

func (m *memoryRepo) AddMember(_ context.Context, mem *Membership) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.members[mem.WorkspaceID][mem.UserID]; ok {
		return fmt.Errorf("add member: %w", core.ErrDuplicateKey)
	}
	mem.JoinedAt = m.tick()
	m.members[mem.WorkspaceID][mem.UserID] = *mem
	return nil
}

func (m *memoryRepo) UpdateMemberRole(_ context.Context, wsID, userID string, role tenant.Role) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	mem, ok := m.members[wsID][userID]
	if !ok || mem.Role == tenant.RoleOwner {
		return fmt.Errorf("update member role: %w", core.ErrNotFound)
	}
	mem.Role = role
	m.members[wsID][userID] = mem
	return nil
}

func (m *memoryRepo) RemoveMember(_ context.Context, wsID, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	mem, ok := m.members[wsID][userID]
	if !ok || mem.Role == tenant.RoleOwner {
		return fmt.Errorf("remove member: %w", core.ErrNotFound)
	}
	delete(m.members[wsID], userID)
	return nil
}

type directory map[string]string

func (d directory) FindIDByEmail(_ context.Context, email string) (string, error) {
	id, ok := d[email]
	if !ok {
		return "", fmt.Errorf("get user by email: %w", core.ErrUserNotFound)
	}
	return id, nil
}

type activitySink struct {
	mu     sync.Mutex
	events []activity.Event
}

func (s *activitySink) Log(_ context.Context, ev activity.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
}

func (s *activitySink) actions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.events))
	for _, ev := range s.events {
		out = append(out, ev.Action)
	}
	return out
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// AngelaMos | 2026
// service_test.go

package workspace

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/templates/tenant-runtime/internal/activity"
	"github.com/carterperez-dev/templates/tenant-runtime/internal/core"
	"github.com/carterperez-dev/templates/tenant-runtime/internal/tenant"
)

var (
	alice = uuid.NewString()
	bob   = uuid.NewString()
	carol = uuid.NewString()
)

func newTestService() (*Service, *memoryRepo, *activitySink) {
	repo := newMemoryRepo()
	sink := &activitySink{}
	users := directory{
		"alice@example.com": alice,
		"bob@example.com":   bob,
		"carol@example.com": carol,
	}
	return NewService(repo, users, sink, discardLogger()), repo, sink
}

func create(t *testing.T, svc *Service, userID, name string) *Summary {
	t.Helper()
	ws, err := svc.Create(context.Background(), userID, CreateWorkspaceRequest{Name: name})
	require.NoError(t, err)
	return ws
}

func code(err error) string {
	return core.Classify(err).Code
}

func TestCreateMakesCallerOwner(t *testing.T) {
	svc, repo, sink := newTestService()
	ws := create(t, svc, alice, "Acme Marketing")

	assert.Equal(t, tenant.RoleOwner, ws.Role)
	assert.Regexp(t, `^acme-marketing-[0-9a-f]{6}$`, ws.Slug)

	m, err := repo.GetMembership(context.Background(), ws.ID, alice)
	require.NoError(t, err)
	assert.Equal(t, tenant.RoleOwner, m.Role)
	assert.Equal(t, []string{activity.ActionWorkspaceCreated}, sink.actions())
}

func TestCreateRejectsBlankName(t *testing.T) {
	svc, _, _ := newTestService()
	_, err := svc.Create(context.Background(), alice, CreateWorkspaceRequest{Name: "   "})
	assert.Equal(t, core.CodeValidation, code(err))
}

func TestDeleteGuardsLastWorkspace(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	first := create(t, svc, alice, "First")

	err := svc.Delete(ctx, alice, first.ID)
	require.Error(t, err)
	assert.Equal(t, core.CodeLastWorkspace, code(err))

	create(t, svc, alice, "Second")
	require.NoError(t, svc.Delete(ctx, alice, first.ID))

	_, err = svc.Get(ctx, alice, first.ID)
	assert.Equal(t, core.CodeWorkspaceForbidden, code(err))
}

func TestConcurrentDeletesKeepOneWorkspace(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()
	ids := []string{create(t, svc, alice, "First").ID, create(t, svc, alice, "Second").ID}

	errs := make([]error, len(ids))
	var wg sync.WaitGroup
	for i, id := range ids {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = svc.Delete(ctx, alice, id)
		}()
	}
	wg.Wait()

	var deleted, refused int
	for _, err := range errs {
		if err == nil {
			deleted++
			continue
		}
		assert.Equal(t, core.CodeLastWorkspace, code(err))
		refused++
	}
	assert.Equal(t, 1, deleted)
	assert.Equal(t, 1, refused)

	left, err := repo.ListForUser(ctx, alice)
	require.NoError(t, err)
	assert.Len(t, left, 1)
}

func TestInvitedEditorCannotManageWorkspace(t *testing.T) {
	svc, _, sink := newTestService()
	ctx := context.Background()
	ws := create(t, svc, alice, "W1")
	create(t, svc, bob, "Bob's own")

	m, err := svc.Invite(ctx, alice, ws.ID, InviteMemberRequest{
		Email: "bob@example.com",
		Role:  "editor",
	})
	require.NoError(t, err)
	assert.Equal(t, tenant.RoleEditor, m.Role)

	got, err := svc.Get(ctx, bob, ws.ID)
	require.NoError(t, err)
	assert.Equal(t, tenant.RoleEditor, got.Role)

	err = svc.Delete(ctx, bob, ws.ID)
	assert.Equal(t, core.CodeWorkspaceForbidden, code(err))

	_, err = svc.Update(ctx, bob, ws.ID, UpdateWorkspaceRequest{Name: "mine now"})
	assert.Equal(t, core.CodeWorkspaceForbidden, code(err))

	_, err = svc.Invite(ctx, bob, ws.ID, InviteMemberRequest{Email: "carol@example.com", Role: "viewer"})
	assert.Equal(t, core.CodeWorkspaceForbidden, code(err))

	assert.Contains(t, sink.actions(), activity.ActionMemberInvited)
}

func TestInviteErrors(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	ws := create(t, svc, alice, "W1")

	tests := []struct {
		name string
		req  InviteMemberRequest
		code string
	}{
		{"unknown user", InviteMemberRequest{Email: "zed@example.com", Role: "viewer"}, core.CodeUserNotFound},
		{"owner role", InviteMemberRequest{Email: "bob@example.com", Role: "owner"}, core.CodeValidation},
		{"already member", InviteMemberRequest{Email: "alice@example.com", Role: "viewer"}, core.CodeDuplicate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Invite(ctx, alice, ws.ID, tt.req)
			require.Error(t, err)
			assert.Equal(t, tt.code, code(err))
		})
	}
}

func TestMembershipManagementGuards(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	ws := create(t, svc, alice, "W1")
	_, err := svc.Invite(ctx, alice, ws.ID, InviteMemberRequest{Email: "bob@example.com", Role: "viewer"})
	require.NoError(t, err)

	err = svc.ChangeRole(ctx, alice, ws.ID, alice, UpdateMemberRoleRequest{Role: "editor"})
	assert.Equal(t, core.CodeValidation, code(err))

	err = svc.RemoveMember(ctx, alice, ws.ID, alice)
	assert.Equal(t, core.CodeValidation, code(err))

	err = svc.ChangeRole(ctx, alice, ws.ID, carol, UpdateMemberRoleRequest{Role: "editor"})
	assert.Equal(t, core.CodeNotFound, code(err))

	require.NoError(t, svc.ChangeRole(ctx, alice, ws.ID, bob, UpdateMemberRoleRequest{Role: "editor"}))
	got, err := svc.Get(ctx, bob, ws.ID)
	require.NoError(t, err)
	assert.Equal(t, tenant.RoleEditor, got.Role)

	require.NoError(t, svc.RemoveMember(ctx, alice, ws.ID, bob))
	_, err = svc.Get(ctx, bob, ws.ID)
	assert.Equal(t, core.CodeWorkspaceForbidden, code(err))
}

func TestOwnerCannotBeTargeted(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()
	ws := create(t, svc, alice, "W1")

	// A second owner row can only appear through legacy data.
	repo.members[ws.ID][bob] = Membership{WorkspaceID: ws.ID, UserID: bob, Role: tenant.RoleOwner}

	err := svc.RemoveMember(ctx, alice, ws.ID, bob)
	assert.Equal(t, core.CodeWorkspaceForbidden, code(err))

	err = svc.ChangeRole(ctx, alice, ws.ID, bob, UpdateMemberRoleRequest{Role: "viewer"})
	assert.Equal(t, core.CodeWorkspaceForbidden, code(err))
}

func TestGetRejectsMalformedID(t *testing.T) {
	svc, _, _ := newTestService()
	_, err := svc.Get(context.Background(), alice, "not-a-uuid")
	assert.Equal(t, core.CodeWorkspaceForbidden, code(err))
}

func TestSlugify(t *testing.T) {
	tests := map[string]string{
		"Acme Marketing":     "acme-marketing",
		"  Hello,  World!! ": "hello-world",
		"ÜBER café":          "ber-caf",
		"!!!":                "workspace",
	}
	for in, want := range tests {
		assert.Equal(t, want, Slugify(in), in)
	}
}

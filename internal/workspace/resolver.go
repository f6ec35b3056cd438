// AngelaMos | 2026
// resolver.go

package workspace

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/carterperez-dev/templates/tenant-runtime/internal/core"
	"github.com/carterperez-dev/templates/tenant-runtime/internal/middleware"
	"github.com/carterperez-dev/templates/tenant-runtime/internal/tenant"
)

const DefaultHeader = "X-Workspace-ID"

// Resolver binds every authenticated request to exactly one workspace.
type Resolver struct {
	store  MembershipStore
	header string
}

func NewResolver(store MembershipStore, header string) *Resolver {
	if header == "" {
		header = DefaultHeader
	}
	return &Resolver{store: store, header: header}
}

func (rv *Resolver) Header() string {
	return rv.header
}

// Resolve picks the workspace for userID. An explicit selector must be a
// workspace the user belongs to and never falls back to the default.
func (rv *Resolver) Resolve(
	ctx context.Context,
	userID, selector string,
) (tenant.Scope, error) {
	if selector == "" {
		m, err := rv.store.EarliestMembership(ctx, userID)
		if errors.Is(err, core.ErrNotFound) {
			return tenant.Scope{}, fmt.Errorf("resolve workspace: %w", core.ErrNoWorkspace)
		}
		if err != nil {
			return tenant.Scope{}, fmt.Errorf("resolve workspace: %w", err)
		}
		return scopeOf(m), nil
	}

	if uuid.Validate(selector) != nil {
		return tenant.Scope{}, fmt.Errorf(
			"resolve workspace: malformed selector: %w",
			core.ErrWorkspaceForbidden,
		)
	}

	m, err := rv.store.GetMembership(ctx, selector, userID)
	if errors.Is(err, core.ErrNotFound) {
		return tenant.Scope{}, fmt.Errorf("resolve workspace: %w", core.ErrWorkspaceForbidden)
	}
	if err != nil {
		return tenant.Scope{}, fmt.Errorf("resolve workspace: %w", err)
	}

	return scopeOf(m), nil
}

// Middleware must run after middleware.Authenticator.
func (rv *Resolver) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.GetUserID(r.Context())
		if userID == "" {
			core.JSONError(w, core.UnauthorizedError(""))
			return
		}

		scope, err := rv.Resolve(r.Context(), userID, r.Header.Get(rv.header))
		if err != nil {
			core.JSONError(w, err)
			return
		}

		ctx := tenant.WithScope(r.Context(), scope)
		middleware.SetLogWorkspace(ctx, scope.WorkspaceID)
		w.Header().Set(rv.header, scope.WorkspaceID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func scopeOf(m *Membership) tenant.Scope {
	return tenant.Scope{
		WorkspaceID: m.WorkspaceID,
		UserID:      m.UserID,
		Role:        m.Role,
	}
}

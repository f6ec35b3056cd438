// AngelaMos | 2026
// scope.go

package tenant

import (
	"context"
	"net/http"

	"github.com/carterperez-dev/templates/tenant-runtime/internal/core"
)

type Role string

const (
	RoleOwner  Role = "owner"
	RoleEditor Role = "editor"
	RoleViewer Role = "viewer"
)

func (r Role) Valid() bool {
	switch r {
	case RoleOwner, RoleEditor, RoleViewer:
		return true
	}
	return false
}

// Scope is the resolved workspace for one request.
type Scope struct {
	WorkspaceID string
	UserID      string
	Role        Role
}

func (s Scope) IsOwner() bool {
	return s.Role == RoleOwner
}

func (s Scope) CanWrite() bool {
	return s.Role == RoleOwner || s.Role == RoleEditor
}

type contextKey struct{}

func WithScope(ctx context.Context, s Scope) context.Context {
	return context.WithValue(ctx, contextKey{}, s)
}

func FromContext(ctx context.Context) (Scope, bool) {
	s, ok := ctx.Value(contextKey{}).(Scope)
	return s, ok && s.WorkspaceID != ""
}

// MustFromContext panics when the request never passed the resolver. Module
// routes are always mounted behind it.
func MustFromContext(ctx context.Context) Scope {
	s, ok := FromContext(ctx)
	if !ok {
		panic("tenant: scope missing from context")
	}
	return s
}

func WorkspaceID(ctx context.Context) string {
	s, _ := FromContext(ctx)
	return s.WorkspaceID
}

// RequireWriter rejects viewers.
func RequireWriter(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s, ok := FromContext(r.Context())
		if !ok {
			core.JSONError(w, core.NoWorkspaceError())
			return
		}
		if !s.CanWrite() {
			core.JSONError(
				w,
				core.WorkspaceForbiddenError("viewers have read-only access"),
			)
			return
		}
		next.ServeHTTP(w, r)
	})
}

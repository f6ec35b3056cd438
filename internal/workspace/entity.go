// AngelaMos | 2026
// entity.go

package workspace

import (
	"time"

	"github.com/carterperez-dev/templates/tenant-runtime/internal/tenant"
)

type Workspace struct {
	ID        string    `db:"id"`
	Name      string    `db:"name"`
	Slug      string    `db:"slug"`
	OwnerID   string    `db:"owner_id"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

type Membership struct {
	WorkspaceID string      `db:"workspace_id"`
	UserID      string      `db:"user_id"`
	Role        tenant.Role `db:"role"`
	JoinedAt    time.Time   `db:"joined_at"`
}

// Member is a membership joined with the member's profile.
type Member struct {
	Membership
	Email string `db:"email"`
	Name  string `db:"name"`
}

// Summary is a workspace as seen by one of its members.
type Summary struct {
	Workspace
	Role tenant.Role `db:"role"`
}

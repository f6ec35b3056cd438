// AngelaMos | 2026
// dto.go

package workspace

import (
	"time"
)

type CreateWorkspaceRequest struct {
	Name string `json:"name" validate:"required,min=1,max=100"`
}

type UpdateWorkspaceRequest struct {
	Name string `json:"name" validate:"required,min=1,max=100"`
}

type InviteMemberRequest struct {
	Email string `json:"email" validate:"required,email,max=255"`
	Role  string `json:"role"  validate:"required,oneof=editor viewer"`
}

type UpdateMemberRoleRequest struct {
	Role string `json:"role" validate:"required,oneof=editor viewer"`
}

type WorkspaceResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	OwnerID   string    `json:"owner_id"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type MemberResponse struct {
	UserID   string    `json:"user_id"`
	Email    string    `json:"email"`
	Name     string    `json:"name"`
	Role     string    `json:"role"`
	JoinedAt time.Time `json:"joined_at"`
}

func ToWorkspaceResponse(s *Summary) WorkspaceResponse {
	return WorkspaceResponse{
		ID:        s.ID,
		Name:      s.Name,
		Slug:      s.Slug,
		OwnerID:   s.OwnerID,
		Role:      string(s.Role),
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
}

func ToWorkspaceResponseList(items []Summary) []WorkspaceResponse {
	out := make([]WorkspaceResponse, 0, len(items))
	for i := range items {
		out = append(out, ToWorkspaceResponse(&items[i]))
	}
	return out
}

func ToMemberResponse(m *Member) MemberResponse {
	return MemberResponse{
		UserID:   m.UserID,
		Email:    m.Email,
		Name:     m.Name,
		Role:     string(m.Role),
		JoinedAt: m.JoinedAt,
	}
}

func ToMemberResponseList(members []Member) []MemberResponse {
	out := make([]MemberResponse, 0, len(members))
	for i := range members {
		out = append(out, ToMemberResponse(&members[i]))
	}
	return out
}

// AngelaMos | 2026
// handler.go

package workspace

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/carterperez-dev/templates/tenant-runtime/internal/core"
	"github.com/carterperez-dev/templates/tenant-runtime/internal/middleware"
)

const maxBodyBytes = 64 << 10

type Handler struct {
	service   *Service
	validator *validator.Validate
}

func NewHandler(service *Service) *Handler {
	return &Handler{
		service:   service,
		validator: validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator func(http.Handler) http.Handler,
) {
	r.Route("/workspaces", func(r chi.Router) {
		r.Use(authenticator)

		r.Get("/", h.List)
		r.Post("/", h.Create)

		r.Route("/{workspaceID}", func(r chi.Router) {
			r.Get("/", h.Get)
			r.Patch("/", h.Update)
			r.Delete("/", h.Delete)

			r.Get("/members", h.ListMembers)
			r.Post("/members", h.Invite)
			r.Patch("/members/{userID}", h.ChangeRole)
			r.Delete("/members/{userID}", h.RemoveMember)
		})
	})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		core.BadRequest(w, "invalid request body")
		return false
	}

	if err := h.validator.Struct(dst); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return false
	}

	return true
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.List(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		core.JSONError(w, err)
		return
	}

	core.OK(w, ToWorkspaceResponseList(items))
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateWorkspaceRequest
	if !h.decode(w, r, &req) {
		return
	}

	ws, err := h.service.Create(r.Context(), middleware.GetUserID(r.Context()), req)
	if err != nil {
		core.JSONError(w, err)
		return
	}

	core.Created(w, ToWorkspaceResponse(ws))
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	ws, err := h.service.Get(
		r.Context(),
		middleware.GetUserID(r.Context()),
		chi.URLParam(r, "workspaceID"),
	)
	if err != nil {
		core.JSONError(w, err)
		return
	}

	core.OK(w, ToWorkspaceResponse(ws))
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	var req UpdateWorkspaceRequest
	if !h.decode(w, r, &req) {
		return
	}

	ws, err := h.service.Update(
		r.Context(),
		middleware.GetUserID(r.Context()),
		chi.URLParam(r, "workspaceID"),
		req,
	)
	if err != nil {
		core.JSONError(w, err)
		return
	}

	core.OK(w, ToWorkspaceResponse(ws))
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	err := h.service.Delete(
		r.Context(),
		middleware.GetUserID(r.Context()),
		chi.URLParam(r, "workspaceID"),
	)
	if err != nil {
		core.JSONError(w, err)
		return
	}

	core.NoContent(w)
}

func (h *Handler) ListMembers(w http.ResponseWriter, r *http.Request) {
	members, err := h.service.ListMembers(
		r.Context(),
		middleware.GetUserID(r.Context()),
		chi.URLParam(r, "workspaceID"),
	)
	if err != nil {
		core.JSONError(w, err)
		return
	}

	core.OK(w, ToMemberResponseList(members))
}

func (h *Handler) Invite(w http.ResponseWriter, r *http.Request) {
	var req InviteMemberRequest
	if !h.decode(w, r, &req) {
		return
	}

	m, err := h.service.Invite(
		r.Context(),
		middleware.GetUserID(r.Context()),
		chi.URLParam(r, "workspaceID"),
		req,
	)
	if err != nil {
		core.JSONError(w, err)
		return
	}

	core.Created(w, MemberResponse{
		UserID:   m.UserID,
		Email:    req.Email,
		Role:     string(m.Role),
		JoinedAt: m.JoinedAt,
	})
}

func (h *Handler) ChangeRole(w http.ResponseWriter, r *http.Request) {
	var req UpdateMemberRoleRequest
	if !h.decode(w, r, &req) {
		return
	}

	err := h.service.ChangeRole(
		r.Context(),
		middleware.GetUserID(r.Context()),
		chi.URLParam(r, "workspaceID"),
		chi.URLParam(r, "userID"),
		req,
	)
	if err != nil {
		core.JSONError(w, err)
		return
	}

	core.NoContent(w)
}

func (h *Handler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	err := h.service.RemoveMember(
		r.Context(),
		middleware.GetUserID(r.Context()),
		chi.URLParam(r, "workspaceID"),
		chi.URLParam(r, "userID"),
	)
	if err != nil {
		core.JSONError(w, err)
		return
	}

	core.NoContent(w)
}

package permissions

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/cairnhq/cairn/internal/platform/httpx"
	"github.com/cairnhq/cairn/internal/shared"
)

// Handler wires HTTP endpoints for roles, permissions and assignments.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers permission routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/roles", h.listRoles)
	r.Get("/permissions", h.listPermissions)
	r.Get("/users/{userID}/roles", h.getUserRoles)
	r.Post("/users/{userID}/roles", h.grantRole)
	r.Delete("/users/{userID}/roles/{roleID}", h.revokeRole)
	r.Post("/permissions/check", h.checkPermission)
}

func (h *Handler) listRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.service.ListRoles(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, roles)
}

func (h *Handler) listPermissions(w http.ResponseWriter, r *http.Request) {
	perms, err := h.service.ListPermissions(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, perms)
}

func (h *Handler) getUserRoles(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid user id")
		return
	}
	roles, err := h.service.GetUserRoles(r.Context(), userID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if roles == nil {
		roles = []UserRole{}
	}
	httpx.JSON(w, http.StatusOK, roles)
}

type grantRoleRequest struct {
	RoleID    string `json:"role_id" validate:"required,uuid4"`
	ScopeType string `json:"scope_type" validate:"required,oneof=organization project team"`
	ScopeID   string `json:"scope_id" validate:"omitempty,uuid4"`
}

func (h *Handler) grantRole(w http.ResponseWriter, r *http.Request) {
	actorID, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}
	userID, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid user id")
		return
	}
	var req grantRoleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	roleID := uuid.MustParse(req.RoleID)
	var scopeID *uuid.UUID
	if req.ScopeID != "" {
		id := uuid.MustParse(req.ScopeID)
		scopeID = &id
	}
	assignment, err := h.service.GrantRole(r.Context(), actorID, userID, roleID, ScopeType(req.ScopeType), scopeID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, assignment)
}

func (h *Handler) revokeRole(w http.ResponseWriter, r *http.Request) {
	actorID, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}
	userID, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid user id")
		return
	}
	roleID, err := uuid.Parse(chi.URLParam(r, "roleID"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid role id")
		return
	}
	scopeType := ScopeType(r.URL.Query().Get("scope_type"))
	if scopeType == "" {
		scopeType = ScopeOrganization
	}
	var scopeID *uuid.UUID
	if raw := r.URL.Query().Get("scope_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid scope id")
			return
		}
		scopeID = &id
	}
	if err := h.service.RevokeRole(r.Context(), actorID, userID, roleID, scopeType, scopeID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type checkPermissionRequest struct {
	UserID    string `json:"user_id" validate:"required,uuid4"`
	Resource  string `json:"resource" validate:"required"`
	Action    string `json:"action" validate:"required"`
	ScopeType string `json:"scope_type" validate:"omitempty,oneof=organization project team"`
	ScopeID   string `json:"scope_id" validate:"omitempty,uuid4"`
}

func (h *Handler) checkPermission(w http.ResponseWriter, r *http.Request) {
	var req checkPermissionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	var scope *Scope
	if req.ScopeType != "" && req.ScopeID != "" {
		scope = &Scope{Type: ScopeType(req.ScopeType), ID: uuid.MustParse(req.ScopeID)}
	} else if req.ScopeType != "" || req.ScopeID != "" {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "scope_type and scope_id must be supplied together")
		return
	}
	allowed, err := h.service.CheckPermission(r.Context(), uuid.MustParse(req.UserID), req.Resource, req.Action, scope)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"allowed":  allowed,
		"resource": req.Resource,
		"action":   req.Action,
	})
}

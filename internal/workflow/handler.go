package workflow

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/cairnhq/cairn/internal/platform/httpx"
	"github.com/cairnhq/cairn/internal/shared"
)

// Handler wires HTTP endpoints for workflow management and validation.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers workflow routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/workflows", h.listWorkflows)
	r.Post("/workflows", h.createWorkflow)
	r.Put("/workflows/{workflowID}", h.updateWorkflow)
	r.Get("/projects/{projectID}/workflow", h.getProjectWorkflow)
	r.Get("/projects/{projectID}/transitions", h.availableTransitions)
	r.Post("/projects/{projectID}/transitions/validate", h.validateTransition)
}

type transitionPayload struct {
	FromStatus   string   `json:"from_status" validate:"required"`
	ToStatus     string   `json:"to_status" validate:"required"`
	AllowedRoles []string `json:"allowed_roles"`
}

type createWorkflowRequest struct {
	ProjectID   string              `json:"project_id" validate:"required,uuid4"`
	Name        string              `json:"name" validate:"required,max=255"`
	Description string              `json:"description" validate:"max=1000"`
	Statuses    []string            `json:"statuses" validate:"required,min=1"`
	Transitions []transitionPayload `json:"transitions" validate:"dive"`
	IsDefault   bool                `json:"is_default"`
}

func (h *Handler) createWorkflow(w http.ResponseWriter, r *http.Request) {
	actorID, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}
	var req createWorkflowRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	created, err := h.service.CreateWorkflow(r.Context(), CreateParams{
		ProjectID:   uuid.MustParse(req.ProjectID),
		Name:        req.Name,
		Description: req.Description,
		Statuses:    req.Statuses,
		Transitions: toTransitions(req.Transitions),
		IsDefault:   req.IsDefault,
		CreatedBy:   actorID,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

type updateWorkflowRequest struct {
	Name        string              `json:"name" validate:"required,max=255"`
	Description string              `json:"description" validate:"max=1000"`
	Statuses    []string            `json:"statuses" validate:"required,min=1"`
	Transitions []transitionPayload `json:"transitions" validate:"dive"`
	IsDefault   bool                `json:"is_default"`
}

func (h *Handler) updateWorkflow(w http.ResponseWriter, r *http.Request) {
	actorID, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}
	workflowID, err := uuid.Parse(chi.URLParam(r, "workflowID"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid workflow id")
		return
	}
	var req updateWorkflowRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	updated, err := h.service.UpdateWorkflow(r.Context(), UpdateParams{
		ID:          workflowID,
		Name:        req.Name,
		Description: req.Description,
		Statuses:    req.Statuses,
		Transitions: toTransitions(req.Transitions),
		IsDefault:   req.IsDefault,
		UpdatedBy:   actorID,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, updated)
}

func (h *Handler) listWorkflows(w http.ResponseWriter, r *http.Request) {
	var projectID *uuid.UUID
	if raw := r.URL.Query().Get("project_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid project id")
			return
		}
		projectID = &id
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	workflows, err := h.service.ListWorkflows(r.Context(), projectID, limit, offset)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if workflows == nil {
		workflows = []Workflow{}
	}
	httpx.JSON(w, http.StatusOK, workflows)
}

func (h *Handler) getProjectWorkflow(w http.ResponseWriter, r *http.Request) {
	projectID, err := uuid.Parse(chi.URLParam(r, "projectID"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid project id")
		return
	}
	wf, err := h.service.GetProjectWorkflow(r.Context(), projectID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if wf == nil {
		httpx.Problem(w, http.StatusNotFound, "Not Found", "project has no custom workflow")
		return
	}
	httpx.JSON(w, http.StatusOK, wf)
}

func (h *Handler) availableTransitions(w http.ResponseWriter, r *http.Request) {
	actorID, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}
	projectID, err := uuid.Parse(chi.URLParam(r, "projectID"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid project id")
		return
	}
	current := r.URL.Query().Get("status")
	if current == "" {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "status query parameter required")
		return
	}
	transitions, err := h.service.AvailableTransitions(r.Context(), projectID, current, actorID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"current_status": current,
		"available":      transitions,
	})
}

type validateTransitionRequest struct {
	FromStatus string `json:"from_status" validate:"required"`
	ToStatus   string `json:"to_status" validate:"required"`
}

func (h *Handler) validateTransition(w http.ResponseWriter, r *http.Request) {
	actorID, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}
	projectID, err := uuid.Parse(chi.URLParam(r, "projectID"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid project id")
		return
	}
	var req validateTransitionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	allowed, reason, err := h.service.ValidateTransition(r.Context(), projectID, req.FromStatus, req.ToStatus, actorID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"allowed": allowed,
		"reason":  reason,
	})
}

func toTransitions(payloads []transitionPayload) []Transition {
	out := make([]Transition, 0, len(payloads))
	for _, p := range payloads {
		out = append(out, Transition{
			FromStatus:   p.FromStatus,
			ToStatus:     p.ToStatus,
			AllowedRoles: p.AllowedRoles,
		})
	}
	return out
}

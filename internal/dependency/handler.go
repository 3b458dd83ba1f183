package dependency

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/cairnhq/cairn/internal/platform/httpx"
	"github.com/cairnhq/cairn/internal/shared"
)

// Handler wires HTTP endpoints for task dependencies.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers dependency routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/tasks/{taskID}/dependencies", h.createDependency)
	r.Get("/tasks/{taskID}/dependencies", h.listDependencies)
	r.Get("/tasks/{taskID}/dependents", h.listDependents)
	r.Get("/tasks/{taskID}/blocking", h.listBlocking)
	r.Delete("/dependencies/{dependencyID}", h.deleteDependency)
}

type createDependencyRequest struct {
	DependsOnTaskID string `json:"depends_on_task_id" validate:"required,uuid4"`
	Type            string `json:"type" validate:"required,oneof=blocks relates_to"`
}

func (h *Handler) createDependency(w http.ResponseWriter, r *http.Request) {
	actorID, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}
	taskID, err := uuid.Parse(chi.URLParam(r, "taskID"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid task id")
		return
	}
	var req createDependencyRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	edge, err := h.service.CreateDependency(r.Context(), actorID, taskID, uuid.MustParse(req.DependsOnTaskID), EdgeType(req.Type))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, edge)
}

func (h *Handler) listDependencies(w http.ResponseWriter, r *http.Request) {
	taskID, err := uuid.Parse(chi.URLParam(r, "taskID"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid task id")
		return
	}
	details, err := h.service.GetTaskDependencies(r.Context(), taskID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if details == nil {
		details = []EdgeDetail{}
	}
	httpx.JSON(w, http.StatusOK, details)
}

func (h *Handler) listDependents(w http.ResponseWriter, r *http.Request) {
	taskID, err := uuid.Parse(chi.URLParam(r, "taskID"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid task id")
		return
	}
	details, err := h.service.GetTaskDependents(r.Context(), taskID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if details == nil {
		details = []DependentDetail{}
	}
	httpx.JSON(w, http.StatusOK, details)
}

func (h *Handler) listBlocking(w http.ResponseWriter, r *http.Request) {
	taskID, err := uuid.Parse(chi.URLParam(r, "taskID"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid task id")
		return
	}
	blocking, err := h.service.CheckBlockingTasks(r.Context(), taskID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if blocking == nil {
		blocking = []BlockingTask{}
	}
	httpx.JSON(w, http.StatusOK, blocking)
}

func (h *Handler) deleteDependency(w http.ResponseWriter, r *http.Request) {
	actorID, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}
	dependencyID, err := uuid.Parse(chi.URLParam(r, "dependencyID"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid dependency id")
		return
	}
	if err := h.service.DeleteDependency(r.Context(), actorID, dependencyID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

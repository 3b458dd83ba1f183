package tasks

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/cairnhq/cairn/internal/platform/httpx"
	"github.com/cairnhq/cairn/internal/shared"
)

// Handler wires HTTP endpoints for task status changes.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers task routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/tasks/{taskID}", h.getTask)
	r.Put("/tasks/{taskID}/status", h.changeStatus)
}

func (h *Handler) getTask(w http.ResponseWriter, r *http.Request) {
	taskID, err := uuid.Parse(chi.URLParam(r, "taskID"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid task id")
		return
	}
	task, err := h.service.GetTask(r.Context(), taskID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, task)
}

type changeStatusRequest struct {
	Status string `json:"status" validate:"required,max=100"`
}

func (h *Handler) changeStatus(w http.ResponseWriter, r *http.Request) {
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
	var req changeStatusRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	task, err := h.service.ChangeStatus(r.Context(), actorID, taskID, req.Status)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, task)
}

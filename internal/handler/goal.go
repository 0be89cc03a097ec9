package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/liableapp/liable/internal/ctxkeys"
	"github.com/liableapp/liable/internal/model"
	"github.com/liableapp/liable/internal/repository"
	"github.com/liableapp/liable/internal/service"
	"github.com/liableapp/liable/internal/validation"
)

type goalManager interface {
	Create(ctx context.Context, plannerID string, input service.GoalInput) (*model.Goal, error)
	Goals(ctx context.Context, plannerID string) ([]*model.Goal, error)
	Cancel(ctx context.Context, plannerID, goalID string) (*model.Goal, error)
}

type GoalHandler struct {
	goalService goalManager
}

func NewGoalHandler(goalService goalManager) *GoalHandler {
	return &GoalHandler{
		goalService: goalService,
	}
}

func (h *GoalHandler) List(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())

	goals, err := h.goalService.Goals(r.Context(), user.ID)
	if err != nil {
		slog.Error("failed to get goals", "error", err, "user_id", user.ID)
		writeErrors(w, http.StatusInternalServerError, "Failed to load goals")
		return
	}

	writeJSON(w, http.StatusOK, goals)
}

func (h *GoalHandler) Create(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())

	var input service.GoalInput
	err := decodeJSON(w, r, &input)
	if err != nil {
		writeErrors(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	goal, err := h.goalService.Create(r.Context(), user.ID, input)
	var invalid validation.Errors
	if errors.As(err, &invalid) {
		writeErrors(w, http.StatusBadRequest, invalid...)
		return
	}
	if err != nil {
		slog.Error("failed to create goal", "error", err, "user_id", user.ID)
		writeErrors(w, http.StatusInternalServerError, "Failed to create goal")
		return
	}

	writeJSON(w, http.StatusOK, goal)
}

func (h *GoalHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())
	goalID := r.PathValue("id")

	goal, err := h.goalService.Cancel(r.Context(), user.ID, goalID)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, goal)
	case errors.Is(err, repository.ErrGoalNotFound):
		writeErrors(w, http.StatusNotFound, "Goal not found")
	case errors.Is(err, service.ErrGoalAlreadyCompleted):
		writeErrors(w, http.StatusConflict, "Goal is already completed")
	default:
		slog.Error("failed to cancel goal", "error", err, "user_id", user.ID, "goal_id", goalID)
		writeErrors(w, http.StatusInternalServerError, "Failed to cancel goal")
	}
}

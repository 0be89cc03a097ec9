package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/liableapp/liable/internal/model"
	"github.com/liableapp/liable/internal/service"
	"github.com/liableapp/liable/internal/service/payment"
)

const (
	msgCheckinRecorded = "Your check-in has been recorded. Thanks!"
	msgCheckinExpired  = "This Check-In URL is Expired"
)

type checkinResolver interface {
	GoalForToken(ctx context.Context, token string) (*service.CheckinGoal, error)
	Resolve(ctx context.Context, token string, outcome model.CheckinOutcome) (*model.Goal, error)
}

// CheckinHandler serves the unauthenticated endpoints behind the link in the
// partner's check-in email. The token is the only credential.
type CheckinHandler struct {
	checkins checkinResolver
}

func NewCheckinHandler(checkins checkinResolver) *CheckinHandler {
	return &CheckinHandler{checkins: checkins}
}

type checkinRequest struct {
	Token  string `json:"token"`
	Result string `json:"result"`
}

// Checkin records the partner's yes/no answer.
func (h *CheckinHandler) Checkin(w http.ResponseWriter, r *http.Request) {
	var req checkinRequest
	err := decodeJSON(w, r, &req)
	if err != nil {
		writeErrors(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	token := strings.TrimSpace(req.Token)
	if token == "" {
		writeErrors(w, http.StatusForbidden, msgCheckinExpired)
		return
	}

	outcome, err := model.ParseCheckinOutcome(req.Result)
	if err != nil {
		writeErrors(w, http.StatusBadRequest, err.Error())
		return
	}

	_, err = h.checkins.Resolve(r.Context(), token, outcome)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, []string{msgCheckinRecorded})
	case errors.Is(err, service.ErrCheckinNotFound):
		writeErrors(w, http.StatusForbidden, msgCheckinExpired)
	case errors.Is(err, model.ErrUnknownOutcome):
		writeErrors(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, payment.ErrPaymentFailed), errors.Is(err, payment.ErrNoPaymentMethod):
		writeErrors(w, http.StatusPaymentRequired, "We could not charge the incentive. Please try again later.")
	default:
		slog.Error("failed to record check-in", "error", err)
		writeErrors(w, http.StatusInternalServerError, "Something went wrong")
	}
}

// Goal returns the goal a check-in link refers to.
func (h *CheckinHandler) Goal(w http.ResponseWriter, r *http.Request) {
	var req checkinRequest
	err := decodeJSON(w, r, &req)
	if err != nil {
		writeErrors(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	token := strings.TrimSpace(req.Token)
	if token == "" {
		writeErrors(w, http.StatusForbidden, msgCheckinExpired)
		return
	}

	goal, err := h.checkins.GoalForToken(r.Context(), token)
	if errors.Is(err, service.ErrCheckinNotFound) {
		writeErrors(w, http.StatusForbidden, msgCheckinExpired)
		return
	}
	if err != nil {
		slog.Error("failed to load check-in goal", "error", err)
		writeErrors(w, http.StatusInternalServerError, "Something went wrong")
		return
	}

	writeJSON(w, http.StatusOK, goal)
}

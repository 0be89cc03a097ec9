package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/liableapp/liable/internal/cadence"
	"github.com/liableapp/liable/internal/logger"
	"github.com/liableapp/liable/internal/model"
	"github.com/liableapp/liable/internal/repository"
	"github.com/liableapp/liable/internal/service/payment"
)

// ErrCheckinNotFound covers unknown, expired and already answered tokens.
var ErrCheckinNotFound = errors.New("check-in not found or expired")

type transitionKind int

const (
	transitionSuccess transitionKind = iota
	transitionFailure
	transitionMissed
)

func (k transitionKind) String() string {
	switch k {
	case transitionSuccess:
		return "success"
	case transitionFailure:
		return "failure"
	default:
		return "missed"
	}
}

// transition is the outcome of applying a check-in result to a goal.
type transition struct {
	goal     model.Goal
	template string
	charge   bool
}

// planTransition computes the goal's next state without touching any
// collaborator. The token is always cleared; OneTime failures and misses
// push the deadline a week out; Recurring goals move to the next period.
func planTransition(goal *model.Goal, kind transitionKind, now time.Time) (transition, error) {
	next := *goal
	next.ClearCheckin()
	next.UpdatedAt = now

	t := transition{}

	if goal.IsOneTime() {
		switch kind {
		case transitionSuccess:
			next.Completed = true
			next.NextCheck = nil
			t.template = TemplateCheckinSuccessOneTime
		case transitionFailure:
			extended := cadence.ExtendOneWeek(now)
			next.EndDate = &extended
			next.NextCheck = &extended
			t.template = TemplateCheckinFailedOneTime
			t.charge = goal.HasIncentive()
		case transitionMissed:
			extended := cadence.ExtendOneWeek(now)
			next.EndDate = &extended
			next.NextCheck = &extended
			t.template = TemplateCheckinMissedOneTime
		}

		t.goal = next
		return t, nil
	}

	nextCheck, err := cadence.Next(now, goal.AccountabilityFrequency)
	if err != nil {
		return transition{}, fmt.Errorf("goal %s: %w", goal.ID, err)
	}
	next.NextCheck = &nextCheck

	switch kind {
	case transitionSuccess:
		t.template = TemplateCheckinSuccessRecurring
	case transitionFailure:
		t.template = TemplateCheckinFailedRecurring
		t.charge = goal.HasIncentive()
	case transitionMissed:
		t.template = TemplateCheckinMissedRecurring
	}

	t.goal = next
	return t, nil
}

// CheckinGoal is the goal as shown to the accountability partner.
type CheckinGoal struct {
	*model.Goal
	Planner *PlannerSummary `json:"planner"`
}

type PlannerSummary struct {
	ID        string `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

type SweepResult struct {
	Requested int
	Missed    int
	Skipped   int
	Failed    int
}

type CheckinService struct {
	goals    repository.GoalRepository
	users    repository.UserRepository
	mailer   Mailer
	emails   *EmailTemplates
	charger  payment.Charger
	appURL   string
	currency string
	now      func() time.Time
	log      *slog.Logger
}

func NewCheckinService(
	goals repository.GoalRepository,
	users repository.UserRepository,
	mailer Mailer,
	emails *EmailTemplates,
	charger payment.Charger,
	appURL string,
	currency string,
) *CheckinService {
	return &CheckinService{
		goals:    goals,
		users:    users,
		mailer:   mailer,
		emails:   emails,
		charger:  charger,
		appURL:   strings.TrimRight(appURL, "/"),
		currency: currency,
		now:      time.Now,
		log:      logger.For("checkin"),
	}
}

// GoalForToken returns the goal behind an outstanding check-in along with
// its planner's name.
func (s *CheckinService) GoalForToken(ctx context.Context, token string) (*CheckinGoal, error) {
	goal, err := s.goals.ByCheckinToken(ctx, token, s.now())
	if errors.Is(err, repository.ErrGoalNotFound) {
		return nil, ErrCheckinNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load check-in: %w", err)
	}

	view := &CheckinGoal{Goal: goal}

	planner, err := s.users.ByID(ctx, goal.PlannerID)
	if err != nil {
		s.log.Warn("planner not found for check-in", "goal_id", goal.ID, "planner_id", goal.PlannerID, "error", err)
	} else {
		view.Planner = &PlannerSummary{ID: planner.ID, FirstName: planner.FirstName, LastName: planner.LastName}
	}

	return view, nil
}

// Resolve applies the partner's answer to the check-in identified by token.
// A required charge runs before anything is saved; if it fails the check-in
// stays outstanding. On success the goal is saved once and the planner gets
// one email.
func (s *CheckinService) Resolve(ctx context.Context, token string, outcome model.CheckinOutcome) (*model.Goal, error) {
	kind := transitionSuccess
	switch outcome {
	case model.CheckinOutcomeYes:
	case model.CheckinOutcomeNo:
		kind = transitionFailure
	default:
		return nil, model.ErrUnknownOutcome
	}

	now := s.now()

	goal, err := s.goals.ByCheckinToken(ctx, token, now)
	if errors.Is(err, repository.ErrGoalNotFound) {
		return nil, ErrCheckinNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load check-in: %w", err)
	}

	t, err := planTransition(goal, kind, now)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve check-in: %w", err)
	}

	planner, plannerErr := s.users.ByID(ctx, goal.PlannerID)

	var charged *payment.ChargeResult
	if t.charge {
		if errors.Is(plannerErr, repository.ErrUserNotFound) {
			return nil, fmt.Errorf("failed to charge incentive: %w", payment.ErrNoPaymentMethod)
		}
		if plannerErr != nil {
			return nil, fmt.Errorf("failed to load planner for charge: %w", plannerErr)
		}

		charged, err = s.chargeIncentive(ctx, goal, planner, token)
		if err != nil {
			s.log.Error("incentive charge failed", "goal_id", goal.ID, "planner_id", goal.PlannerID, "error", err)
			return nil, fmt.Errorf("failed to charge incentive: %w", err)
		}
	}

	err = s.goals.SettleCheckin(ctx, &t.goal, token)
	if errors.Is(err, repository.ErrCheckinConflict) {
		if charged != nil {
			s.log.Error("check-in settled concurrently after charge",
				"goal_id", goal.ID, "charge_id", charged.ID, "amount", charged.Amount)
		}
		return nil, ErrCheckinNotFound
	}
	if err != nil {
		if charged != nil {
			s.log.Error("charged incentive but failed to save check-in",
				"goal_id", goal.ID, "charge_id", charged.ID, "error", err)
		}
		return nil, fmt.Errorf("failed to save check-in: %w", err)
	}

	s.log.Info("check-in resolved", "goal_id", goal.ID, "outcome", kind.String(), "charged", charged != nil)

	if plannerErr != nil {
		s.log.Warn("planner not found, skipping notification", "goal_id", goal.ID, "planner_id", goal.PlannerID, "error", plannerErr)
	} else {
		s.notifyPlanner(&t, planner, charged)
	}

	return &t.goal, nil
}

// Missed resolves a check-in whose partner never answered. It never charges.
func (s *CheckinService) Missed(ctx context.Context, goal *model.Goal, now time.Time) error {
	if !goal.HasOutstandingCheckin() {
		return ErrCheckinNotFound
	}
	token := *goal.CheckinToken

	t, err := planTransition(goal, transitionMissed, now)
	if err != nil {
		return err
	}

	err = s.goals.SettleCheckin(ctx, &t.goal, token)
	if err != nil {
		return fmt.Errorf("failed to save missed check-in: %w", err)
	}

	planner, err := s.users.ByID(ctx, goal.PlannerID)
	if err != nil {
		s.log.Warn("planner not found, skipping notification", "goal_id", goal.ID, "planner_id", goal.PlannerID, "error", err)
		return nil
	}

	s.notifyPlanner(&t, planner, nil)
	return nil
}

// Sweep runs one scheduler pass: request check-ins for goals coming due,
// then settle check-ins that expired unanswered. A failure on one goal is
// logged and counted, and the pass moves on.
func (s *CheckinService) Sweep(ctx context.Context, now time.Time) (SweepResult, error) {
	var result SweepResult
	var errs []error

	from, to := cadence.DueWindowBounds(now)
	due, err := s.goals.DueForCheckin(ctx, from, to)
	if err != nil {
		errs = append(errs, fmt.Errorf("failed to list due goals: %w", err))
	}

	for _, goal := range due {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}

		err := s.requestCheckin(ctx, goal, now)
		switch {
		case err == nil:
			result.Requested++
		case errors.Is(err, repository.ErrCheckinConflict):
			result.Skipped++
			s.log.Debug("check-in already requested", "goal_id", goal.ID)
		default:
			result.Failed++
			s.log.Error("failed to request check-in", "goal_id", goal.ID, "error", err)
		}
	}

	expired, err := s.goals.ExpiredCheckins(ctx, now)
	if err != nil {
		errs = append(errs, fmt.Errorf("failed to list expired check-ins: %w", err))
	}

	for _, goal := range expired {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}

		err := s.Missed(ctx, goal, now)
		switch {
		case err == nil:
			result.Missed++
		case errors.Is(err, repository.ErrCheckinConflict):
			result.Skipped++
			s.log.Debug("expired check-in already settled", "goal_id", goal.ID)
		default:
			result.Failed++
			s.log.Error("failed to settle missed check-in", "goal_id", goal.ID, "error", err)
		}
	}

	return result, errors.Join(errs...)
}

// requestCheckin mints a token for goal and emails the partner. The token is
// saved before the email goes out, and stays saved if the email fails.
func (s *CheckinService) requestCheckin(ctx context.Context, goal *model.Goal, now time.Time) error {
	if !goal.Schedulable() {
		return repository.ErrCheckinConflict
	}

	token, err := newCheckinToken()
	if err != nil {
		return fmt.Errorf("failed to generate check-in token: %w", err)
	}
	expires := cadence.CheckinExpiry(now)

	started := *goal
	started.CheckinToken = &token
	started.CheckinExpires = &expires
	started.UpdatedAt = now

	err = s.goals.StartCheckin(ctx, &started)
	if err != nil {
		return err
	}

	planner, err := s.users.ByID(ctx, goal.PlannerID)
	if err != nil {
		s.log.Warn("planner not found for check-in email", "goal_id", goal.ID, "planner_id", goal.PlannerID, "error", err)
	}

	data := newEmailData(&started, planner)
	data.CheckinURL = s.CheckinURL(token)

	email, err := s.emails.Render(TemplateCheckinRequest, started.AccountabilityPartnerEmail, data)
	if err != nil {
		s.log.Warn("failed to render check-in email", "goal_id", goal.ID, "error", err)
		return nil
	}

	s.mailer.Deliver(email)
	s.log.Info("check-in requested", "goal_id", goal.ID, "expires", expires)
	return nil
}

// CheckinURL is the link the partner follows to answer a check-in.
func (s *CheckinService) CheckinURL(token string) string {
	return s.appURL + "/checkin/" + token
}

func (s *CheckinService) chargeIncentive(ctx context.Context, goal *model.Goal, planner *model.User, token string) (*payment.ChargeResult, error) {
	if !planner.HasPaymentMethod() {
		return nil, payment.ErrNoPaymentMethod
	}

	return s.charger.Charge(ctx, payment.ChargeRequest{
		CustomerID:     *planner.StripeCustomerID,
		Amount:         *goal.Incentive,
		Currency:       s.currency,
		Description:    payment.IncentiveDescription,
		IdempotencyKey: payment.CheckinIdempotencyKey(goal.ID, token),
	})
}

func (s *CheckinService) notifyPlanner(t *transition, planner *model.User, charged *payment.ChargeResult) {
	data := newEmailData(&t.goal, planner)
	if charged != nil {
		data.Charged = true
		data.Amount = formatAmount(charged.Amount, s.currency)
	}

	email, err := s.emails.Render(t.template, planner.Email, data)
	if err != nil {
		s.log.Warn("failed to render planner email", "goal_id", t.goal.ID, "template", t.template, "error", err)
		return
	}

	s.mailer.Deliver(email)
}

package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/liableapp/liable/internal/cadence"
	"github.com/liableapp/liable/internal/logger"
	"github.com/liableapp/liable/internal/model"
	"github.com/liableapp/liable/internal/repository"
	"github.com/liableapp/liable/internal/validation"
)

var ErrGoalAlreadyCompleted = repository.ErrGoalCompleted

// GoalInput is a goal as submitted by the planner. Incentive is in whole
// currency units and converted to minor units on create.
type GoalInput struct {
	Title                          string     `json:"title"`
	GoalType                       string     `json:"goalType"`
	AccountabilityFrequency        string     `json:"accountabilityFrequency"`
	AccountabilityPartnerFirstName string     `json:"accountabilityPartnerFirstName"`
	AccountabilityPartnerEmail     string     `json:"accountabilityPartnerEmail"`
	Incentive                      *float64   `json:"incentive"`
	EndDate                        *time.Time `json:"endDate"`
}

type GoalService struct {
	goals  repository.GoalRepository
	users  repository.UserRepository
	mailer Mailer
	emails *EmailTemplates
	now    func() time.Time
	log    *slog.Logger
}

func NewGoalService(
	goals repository.GoalRepository,
	users repository.UserRepository,
	mailer Mailer,
	emails *EmailTemplates,
) *GoalService {
	return &GoalService{
		goals:  goals,
		users:  users,
		mailer: mailer,
		emails: emails,
		now:    time.Now,
		log:    logger.For("goals"),
	}
}

// Create validates input, stores the goal and invites the partner.
func (s *GoalService) Create(ctx context.Context, plannerID string, input GoalInput) (*model.Goal, error) {
	now := s.now()

	goal, err := newGoal(plannerID, input, now)
	if err != nil {
		return nil, err
	}

	planner, err := s.users.ByID(ctx, plannerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load planner: %w", err)
	}

	err = s.goals.Create(ctx, goal)
	if err != nil {
		return nil, fmt.Errorf("failed to create goal: %w", err)
	}

	s.log.Info("goal created", "goal_id", goal.ID, "planner_id", plannerID, "type", goal.GoalType, "next_check", goal.NextCheck)

	template := TemplatePartnerInviteRecurring
	if goal.IsOneTime() {
		template = TemplatePartnerInviteOneTime
	}

	email, err := s.emails.Render(template, goal.AccountabilityPartnerEmail, newEmailData(goal, planner))
	if err != nil {
		s.log.Warn("failed to render partner invite", "goal_id", goal.ID, "error", err)
		return goal, nil
	}
	s.mailer.Deliver(email)

	return goal, nil
}

func newGoal(plannerID string, input GoalInput, now time.Time) (*model.Goal, error) {
	var errs validation.Errors

	errs.Check(validation.ValidateGoalTitle(input.Title))

	frequency := strings.TrimSpace(input.AccountabilityFrequency)
	if frequency == "" {
		errs.Add("frequency is required")
	} else if !cadence.Valid(frequency) {
		errs.Add(fmt.Sprintf("frequency %q is not supported", frequency))
	}

	errs.Check(validation.ValidateName("accountability partner first name", input.AccountabilityPartnerFirstName))

	partnerEmail := validation.NormalizeEmail(input.AccountabilityPartnerEmail)
	errs.Check(validation.ValidateEmail(partnerEmail))

	goalType, err := model.ParseGoalType(input.GoalType)
	errs.Check(err)

	if goalType == model.GoalTypeOneTime && input.EndDate == nil {
		errs.Add("end date is required for a one time goal")
	}

	var incentive *int64
	if input.Incentive != nil {
		err := validation.ValidateIncentive(*input.Incentive)
		errs.Check(err)
		if err == nil && *input.Incentive > 0 {
			cents := int64(math.Round(*input.Incentive * 100))
			incentive = &cents
		}
	}

	err = errs.Err()
	if err != nil {
		return nil, err
	}

	var endDate *time.Time
	var nextCheck time.Time
	if input.EndDate != nil {
		end := input.EndDate.UTC()
		endDate = &end
		nextCheck = end
	} else {
		nextCheck, _ = cadence.Next(now, frequency)
	}

	return &model.Goal{
		ID:                             uuid.New().String(),
		PlannerID:                      plannerID,
		Title:                          strings.TrimSpace(input.Title),
		GoalType:                       goalType,
		AccountabilityFrequency:        frequency,
		AccountabilityPartnerFirstName: strings.TrimSpace(input.AccountabilityPartnerFirstName),
		AccountabilityPartnerEmail:     partnerEmail,
		Incentive:                      incentive,
		EndDate:                        endDate,
		NextCheck:                      &nextCheck,
		CreatedAt:                      now,
		UpdatedAt:                      now,
	}, nil
}

func (s *GoalService) Goals(ctx context.Context, plannerID string) ([]*model.Goal, error) {
	goals, err := s.goals.ByPlanner(ctx, plannerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list goals: %w", err)
	}
	if goals == nil {
		goals = []*model.Goal{}
	}
	return goals, nil
}

// Cancel stops all further check-ins for the goal, including one in flight.
// The store only touches the cancellation fields, so a check-in settled
// concurrently is never rolled back.
func (s *GoalService) Cancel(ctx context.Context, plannerID, goalID string) (*model.Goal, error) {
	goal, err := s.goals.Cancel(ctx, plannerID, goalID, s.now())
	if errors.Is(err, repository.ErrGoalNotFound) || errors.Is(err, ErrGoalAlreadyCompleted) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to cancel goal: %w", err)
	}

	s.log.Info("goal cancelled", "goal_id", goal.ID, "planner_id", plannerID)
	return goal, nil
}

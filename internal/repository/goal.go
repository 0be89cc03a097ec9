package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/liableapp/liable/internal/model"
)

var (
	ErrGoalNotFound = errors.New("goal not found")
	// ErrCheckinConflict is returned when a conditional check-in write finds
	// the goal's token already changed by someone else.
	ErrCheckinConflict = errors.New("check-in already settled")
	ErrGoalCompleted   = errors.New("goal already completed")
)

type GoalRepository interface {
	Create(ctx context.Context, goal *model.Goal) error
	ByID(ctx context.Context, goalID string) (*model.Goal, error)
	ByPlanner(ctx context.Context, plannerID string) ([]*model.Goal, error)
	// ByCheckinToken finds the goal holding token, provided it expires after now.
	ByCheckinToken(ctx context.Context, token string, now time.Time) (*model.Goal, error)
	// DueForCheckin lists active goals without an outstanding check-in whose
	// nextCheck falls in [from, to).
	DueForCheckin(ctx context.Context, from, to time.Time) ([]*model.Goal, error)
	// ExpiredCheckins lists goals whose outstanding check-in expired before now.
	ExpiredCheckins(ctx context.Context, now time.Time) ([]*model.Goal, error)
	// StartCheckin stores the goal's new token and expiry, only if no check-in
	// is outstanding and the goal is still active.
	StartCheckin(ctx context.Context, goal *model.Goal) error
	// SettleCheckin saves the goal only if it still holds token.
	SettleCheckin(ctx context.Context, goal *model.Goal, token string) error
	// Cancel marks the planner's goal cancelled and drops any outstanding
	// check-in, unless the goal has completed. Only those fields are written.
	Cancel(ctx context.Context, plannerID, goalID string, now time.Time) (*model.Goal, error)
}

type goalRepository struct {
	db *sqlx.DB
}

func NewGoalRepository(db *sqlx.DB) GoalRepository {
	return &goalRepository{db: db}
}

func (r *goalRepository) Create(ctx context.Context, goal *model.Goal) error {
	normalizeGoalTimes(goal)

	query := `INSERT INTO goals (
	              id, planner_id, title, goal_type, accountability_frequency,
	              accountability_partner_first_name, accountability_partner_email,
	              incentive, end_date, next_check, completed, cancelled,
	              checkin_token, checkin_expires, created_at, updated_at
	          ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`

	_, err := r.db.ExecContext(ctx, query,
		goal.ID,
		goal.PlannerID,
		goal.Title,
		string(goal.GoalType),
		goal.AccountabilityFrequency,
		goal.AccountabilityPartnerFirstName,
		goal.AccountabilityPartnerEmail,
		goal.Incentive,
		goal.EndDate,
		goal.NextCheck,
		goal.Completed,
		goal.Cancelled,
		goal.CheckinToken,
		goal.CheckinExpires,
		goal.CreatedAt,
		goal.UpdatedAt,
	)

	return err
}

func (r *goalRepository) ByID(ctx context.Context, goalID string) (*model.Goal, error) {
	goal := &model.Goal{}
	query := `SELECT * FROM goals WHERE id = $1`

	err := r.db.GetContext(ctx, goal, query, goalID)
	if err == sql.ErrNoRows {
		return nil, ErrGoalNotFound
	}
	if err != nil {
		return nil, err
	}

	return goal, nil
}

func (r *goalRepository) ByPlanner(ctx context.Context, plannerID string) ([]*model.Goal, error) {
	var goals []*model.Goal
	query := `SELECT * FROM goals WHERE planner_id = $1 ORDER BY created_at DESC`

	err := r.db.SelectContext(ctx, &goals, query, plannerID)
	if err != nil {
		return nil, err
	}

	return goals, nil
}

func (r *goalRepository) ByCheckinToken(ctx context.Context, token string, now time.Time) (*model.Goal, error) {
	if token == "" {
		return nil, ErrGoalNotFound
	}

	goal := &model.Goal{}
	query := `SELECT * FROM goals WHERE checkin_token = $1 AND checkin_expires > $2`

	err := r.db.GetContext(ctx, goal, query, token, now.UTC())
	if err == sql.ErrNoRows {
		return nil, ErrGoalNotFound
	}
	if err != nil {
		return nil, err
	}

	return goal, nil
}

func (r *goalRepository) DueForCheckin(ctx context.Context, from, to time.Time) ([]*model.Goal, error) {
	var goals []*model.Goal
	query := `SELECT * FROM goals
	          WHERE completed = $1 AND cancelled = $2
	          AND checkin_token IS NULL
	          AND next_check >= $3 AND next_check < $4
	          ORDER BY next_check ASC`

	err := r.db.SelectContext(ctx, &goals, query, false, false, from.UTC(), to.UTC())
	if err != nil {
		return nil, err
	}

	return goals, nil
}

func (r *goalRepository) ExpiredCheckins(ctx context.Context, now time.Time) ([]*model.Goal, error) {
	var goals []*model.Goal
	query := `SELECT * FROM goals
	          WHERE checkin_token IS NOT NULL AND checkin_expires < $1
	          ORDER BY checkin_expires ASC`

	err := r.db.SelectContext(ctx, &goals, query, now.UTC())
	if err != nil {
		return nil, err
	}

	return goals, nil
}

func (r *goalRepository) StartCheckin(ctx context.Context, goal *model.Goal) error {
	normalizeGoalTimes(goal)

	// Conditional UPDATE: a concurrent sweep that already minted a token wins
	query := `UPDATE goals
	          SET checkin_token = $1, checkin_expires = $2, updated_at = $3
	          WHERE id = $4 AND checkin_token IS NULL AND completed = $5 AND cancelled = $6`

	result, err := r.db.ExecContext(ctx, query,
		goal.CheckinToken,
		goal.CheckinExpires,
		goal.UpdatedAt,
		goal.ID,
		false,
		false,
	)
	if err != nil {
		return err
	}

	return expectOneRow(result, ErrCheckinConflict)
}

func (r *goalRepository) SettleCheckin(ctx context.Context, goal *model.Goal, token string) error {
	normalizeGoalTimes(goal)

	// Keyed on the previous token so a check-in can only be settled once
	query := `UPDATE goals
	          SET end_date = $1, next_check = $2, completed = $3, cancelled = $4,
	              checkin_token = $5, checkin_expires = $6, updated_at = $7
	          WHERE id = $8 AND checkin_token = $9`

	result, err := r.db.ExecContext(ctx, query,
		goal.EndDate,
		goal.NextCheck,
		goal.Completed,
		goal.Cancelled,
		goal.CheckinToken,
		goal.CheckinExpires,
		goal.UpdatedAt,
		goal.ID,
		token,
	)
	if err != nil {
		return err
	}

	return expectOneRow(result, ErrCheckinConflict)
}

func (r *goalRepository) Cancel(ctx context.Context, plannerID, goalID string, now time.Time) (*model.Goal, error) {
	goal := &model.Goal{}
	query := `UPDATE goals
	          SET cancelled = $1, checkin_token = NULL, checkin_expires = NULL, updated_at = $2
	          WHERE id = $3 AND planner_id = $4 AND completed = $5
	          RETURNING *`

	err := r.db.GetContext(ctx, goal, query, true, now.UTC(), goalID, plannerID, false)
	if err == sql.ErrNoRows {
		return nil, r.cancelRejected(ctx, plannerID, goalID)
	}
	if err != nil {
		return nil, err
	}

	return goal, nil
}

// cancelRejected explains why Cancel matched no row.
func (r *goalRepository) cancelRejected(ctx context.Context, plannerID, goalID string) error {
	goal, err := r.ByID(ctx, goalID)
	if err != nil {
		return err
	}
	if goal.PlannerID != plannerID {
		return ErrGoalNotFound
	}
	if goal.Completed {
		return ErrGoalCompleted
	}
	return ErrGoalNotFound
}

func expectOneRow(result sql.Result, notFound error) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rows == 0 {
		return notFound
	}

	return nil
}

// normalizeGoalTimes stores every timestamp in UTC so range comparisons
// behave the same on SQLite (text) and Postgres.
func normalizeGoalTimes(goal *model.Goal) {
	goal.EndDate = utcPtr(goal.EndDate)
	goal.NextCheck = utcPtr(goal.NextCheck)
	goal.CheckinExpires = utcPtr(goal.CheckinExpires)
	goal.CreatedAt = goal.CreatedAt.UTC()
	goal.UpdatedAt = goal.UpdatedAt.UTC()
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

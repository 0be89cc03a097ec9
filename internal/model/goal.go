package model

import (
	"errors"
	"strings"
	"time"
)

type GoalType string

// Stored values match the records written by the legacy web client.
const (
	GoalTypeOneTime   GoalType = "One Time"
	GoalTypeRecurring GoalType = "Recurring"
)

var ErrUnknownGoalType = errors.New(`goal type must be "One Time" or "Recurring"`)

func ParseGoalType(s string) (GoalType, error) {
	switch strings.ToLower(strings.NewReplacer(" ", "", "_", "", "-", "").Replace(s)) {
	case "onetime":
		return GoalTypeOneTime, nil
	case "recurring":
		return GoalTypeRecurring, nil
	default:
		return "", ErrUnknownGoalType
	}
}

type CheckinOutcome string

const (
	CheckinOutcomeYes CheckinOutcome = "yes"
	CheckinOutcomeNo  CheckinOutcome = "no"
)

var ErrUnknownOutcome = errors.New(`check-in result must be "yes" or "no"`)

func ParseCheckinOutcome(s string) (CheckinOutcome, error) {
	switch CheckinOutcome(strings.ToLower(strings.TrimSpace(s))) {
	case CheckinOutcomeYes:
		return CheckinOutcomeYes, nil
	case CheckinOutcomeNo:
		return CheckinOutcomeNo, nil
	default:
		return "", ErrUnknownOutcome
	}
}

type Goal struct {
	ID                             string     `db:"id" json:"id"`
	PlannerID                      string     `db:"planner_id" json:"planner"`
	Title                          string     `db:"title" json:"title"`
	GoalType                       GoalType   `db:"goal_type" json:"goalType"`
	AccountabilityFrequency        string     `db:"accountability_frequency" json:"accountabilityFrequency"`
	AccountabilityPartnerFirstName string     `db:"accountability_partner_first_name" json:"accountabilityPartnerFirstName"`
	AccountabilityPartnerEmail     string     `db:"accountability_partner_email" json:"accountabilityPartnerEmail"`
	Incentive                      *int64     `db:"incentive" json:"incentive,omitempty"` // minor units (cents)
	EndDate                        *time.Time `db:"end_date" json:"endDate,omitempty"`
	NextCheck                      *time.Time `db:"next_check" json:"nextCheck,omitempty"`
	Completed                      bool       `db:"completed" json:"completed"`
	Cancelled                      bool       `db:"cancelled" json:"cancelled"`
	CheckinToken                   *string    `db:"checkin_token" json:"-"` // credential for the partner only
	CheckinExpires                 *time.Time `db:"checkin_expires" json:"checkinExpires,omitempty"`
	CreatedAt                      time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt                      time.Time  `db:"updated_at" json:"updatedAt"`
}

func (g *Goal) IsOneTime() bool {
	return g.GoalType == GoalTypeOneTime
}

// HasOutstandingCheckin reports whether a partner check-in is awaiting an answer.
func (g *Goal) HasOutstandingCheckin() bool {
	return g.CheckinToken != nil && *g.CheckinToken != ""
}

// ClearCheckin removes the token and its expiry together.
func (g *Goal) ClearCheckin() {
	g.CheckinToken = nil
	g.CheckinExpires = nil
}

func (g *Goal) HasIncentive() bool {
	return g.Incentive != nil && *g.Incentive > 0
}

// Schedulable reports whether the scheduler may still send check-ins for the goal.
func (g *Goal) Schedulable() bool {
	return !g.Completed && !g.Cancelled
}

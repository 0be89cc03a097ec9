package service

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/liableapp/liable/internal/model"
	"github.com/liableapp/liable/internal/repository"
	"github.com/liableapp/liable/internal/service/payment"
)

// memGoals is an in-memory GoalRepository with the same conditional write
// rules as the SQL and Mongo stores.
type memGoals struct {
	mu      sync.Mutex
	goals   map[string]model.Goal
	settles int
	starts  int
	// failStart makes StartCheckin fail for the given goal id.
	failStart map[string]error
}

func newMemGoals(goals ...*model.Goal) *memGoals {
	m := &memGoals{goals: map[string]model.Goal{}, failStart: map[string]error{}}
	for _, g := range goals {
		m.goals[g.ID] = *g
	}
	return m
}

func (m *memGoals) get(id string) model.Goal {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.goals[id]
}

func (m *memGoals) Create(ctx context.Context, goal *model.Goal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.goals[goal.ID] = *goal
	return nil
}

func (m *memGoals) ByID(ctx context.Context, goalID string) (*model.Goal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.goals[goalID]
	if !ok {
		return nil, repository.ErrGoalNotFound
	}
	return &g, nil
}

func (m *memGoals) ByPlanner(ctx context.Context, plannerID string) ([]*model.Goal, error) {
	return m.filter(func(g model.Goal) bool { return g.PlannerID == plannerID }), nil
}

func (m *memGoals) ByCheckinToken(ctx context.Context, token string, now time.Time) (*model.Goal, error) {
	found := m.filter(func(g model.Goal) bool {
		return g.CheckinToken != nil && *g.CheckinToken == token && g.CheckinExpires != nil && g.CheckinExpires.After(now)
	})
	if len(found) == 0 {
		return nil, repository.ErrGoalNotFound
	}
	return found[0], nil
}

func (m *memGoals) DueForCheckin(ctx context.Context, from, to time.Time) ([]*model.Goal, error) {
	return m.filter(func(g model.Goal) bool {
		return !g.Completed && !g.Cancelled && g.CheckinToken == nil && g.NextCheck != nil &&
			!g.NextCheck.Before(from) && g.NextCheck.Before(to)
	}), nil
}

func (m *memGoals) ExpiredCheckins(ctx context.Context, now time.Time) ([]*model.Goal, error) {
	return m.filter(func(g model.Goal) bool {
		return g.CheckinToken != nil && g.CheckinExpires != nil && g.CheckinExpires.Before(now)
	}), nil
}

func (m *memGoals) StartCheckin(ctx context.Context, goal *model.Goal) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.failStart[goal.ID]; err != nil {
		return err
	}

	stored, ok := m.goals[goal.ID]
	if !ok || stored.CheckinToken != nil || !stored.Schedulable() {
		return repository.ErrCheckinConflict
	}

	stored.CheckinToken = goal.CheckinToken
	stored.CheckinExpires = goal.CheckinExpires
	stored.UpdatedAt = goal.UpdatedAt
	m.goals[goal.ID] = stored
	m.starts++
	return nil
}

func (m *memGoals) SettleCheckin(ctx context.Context, goal *model.Goal, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.goals[goal.ID]
	if !ok || stored.CheckinToken == nil || *stored.CheckinToken != token {
		return repository.ErrCheckinConflict
	}

	m.goals[goal.ID] = *goal
	m.settles++
	return nil
}

func (m *memGoals) Cancel(ctx context.Context, plannerID, goalID string, now time.Time) (*model.Goal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.goals[goalID]
	if !ok || stored.PlannerID != plannerID {
		return nil, repository.ErrGoalNotFound
	}
	if stored.Completed {
		return nil, repository.ErrGoalCompleted
	}

	stored.Cancelled = true
	stored.ClearCheckin()
	stored.UpdatedAt = now
	m.goals[goalID] = stored
	return &stored, nil
}

func (m *memGoals) filter(keep func(model.Goal) bool) []*model.Goal {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*model.Goal
	for _, g := range m.goals {
		if keep(g) {
			g := g
			out = append(out, &g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

type memUsers struct {
	users map[string]model.User
}

func newMemUsers(users ...*model.User) *memUsers {
	m := &memUsers{users: map[string]model.User{}}
	for _, u := range users {
		m.users[u.ID] = *u
	}
	return m
}

func (m *memUsers) Create(ctx context.Context, user *model.User) error {
	for _, u := range m.users {
		if u.Email == user.Email {
			return repository.ErrDuplicateEmail
		}
	}
	m.users[user.ID] = *user
	return nil
}

func (m *memUsers) ByID(ctx context.Context, id string) (*model.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	return &u, nil
}

func (m *memUsers) ByEmail(ctx context.Context, email string) (*model.User, error) {
	for _, u := range m.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (m *memUsers) Count(ctx context.Context) (int, error) {
	return len(m.users), nil
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []Email
}

func (r *recordingMailer) Deliver(email Email) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, email)
}

func (r *recordingMailer) emails() []Email {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Email(nil), r.sent...)
}

type fakeCharger struct {
	ChargeFunc func(ctx context.Context, req payment.ChargeRequest) (*payment.ChargeResult, error)
	calls      []payment.ChargeRequest
}

func (f *fakeCharger) Name() string { return "fake" }

func (f *fakeCharger) Charge(ctx context.Context, req payment.ChargeRequest) (*payment.ChargeResult, error) {
	f.calls = append(f.calls, req)
	if f.ChargeFunc != nil {
		return f.ChargeFunc(ctx, req)
	}
	return &payment.ChargeResult{ID: "ch_test", Amount: req.Amount, Currency: req.Currency}, nil
}

func newTestTemplates(t *testing.T) *EmailTemplates {
	t.Helper()
	templates, err := NewEmailTemplates("Liable")
	if err != nil {
		t.Fatalf("NewEmailTemplates() error = %v", err)
	}
	return templates
}

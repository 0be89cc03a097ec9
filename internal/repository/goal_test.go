package repository_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/liableapp/liable/internal/db"
	"github.com/liableapp/liable/internal/model"
	"github.com/liableapp/liable/internal/repository"
)

func openTestDB(t *testing.T) *sqlx.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "liable.db") + "?_pragma=foreign_keys(1)&_time_format=sqlite"
	database, err := db.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	return database
}

func createPlanner(t *testing.T, users repository.UserRepository) *model.User {
	t.Helper()

	customer := "cus_test"
	user := &model.User{
		ID:               uuid.New().String(),
		FirstName:        "Pat",
		LastName:         "Planner",
		Email:            uuid.New().String() + "@example.com",
		StripeCustomerID: &customer,
		CreatedAt:        time.Now(),
	}
	if err := users.Create(context.Background(), user); err != nil {
		t.Fatalf("failed to create planner: %v", err)
	}
	return user
}

func newGoal(plannerID string, nextCheck time.Time) *model.Goal {
	now := time.Now().UTC().Truncate(time.Second)
	return &model.Goal{
		ID:                             uuid.New().String(),
		PlannerID:                      plannerID,
		Title:                          "run a marathon",
		GoalType:                       model.GoalTypeRecurring,
		AccountabilityFrequency:        "week",
		AccountabilityPartnerFirstName: "Alex",
		AccountabilityPartnerEmail:     "alex@example.com",
		NextCheck:                      &nextCheck,
		CreatedAt:                      now,
		UpdatedAt:                      now,
	}
}

func TestGoalRepositoryCreateAndByID(t *testing.T) {
	ctx := context.Background()
	database := openTestDB(t)
	users := repository.NewUserRepository(database)
	goals := repository.NewGoalRepository(database)
	planner := createPlanner(t, users)

	now := time.Now().UTC().Truncate(time.Second)
	incentive := int64(500)
	goal := newGoal(planner.ID, now)
	goal.GoalType = model.GoalTypeOneTime
	goal.Incentive = &incentive
	goal.EndDate = &now

	if err := goals.Create(ctx, goal); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	got, err := goals.ByID(ctx, goal.ID)
	if err != nil {
		t.Fatalf("ByID() error = %v", err)
	}
	if got.GoalType != model.GoalTypeOneTime {
		t.Errorf("GoalType = %q, want %q", got.GoalType, model.GoalTypeOneTime)
	}
	if got.Incentive == nil || *got.Incentive != 500 {
		t.Errorf("Incentive = %v, want 500", got.Incentive)
	}
	if got.NextCheck == nil || !got.NextCheck.Equal(now) {
		t.Errorf("NextCheck = %v, want %v", got.NextCheck, now)
	}
	if got.HasOutstandingCheckin() {
		t.Error("new goal should not have an outstanding check-in")
	}

	_, err = goals.ByID(ctx, uuid.New().String())
	if !errors.Is(err, repository.ErrGoalNotFound) {
		t.Errorf("ByID(unknown) error = %v, want ErrGoalNotFound", err)
	}

	list, err := goals.ByPlanner(ctx, planner.ID)
	if err != nil {
		t.Fatalf("ByPlanner() error = %v", err)
	}
	if len(list) != 1 || list[0].ID != goal.ID {
		t.Errorf("ByPlanner() = %d goals, want the created goal", len(list))
	}
}

func TestGoalRepositoryDueForCheckin(t *testing.T) {
	ctx := context.Background()
	database := openTestDB(t)
	users := repository.NewUserRepository(database)
	goals := repository.NewGoalRepository(database)
	planner := createPlanner(t, users)

	now := time.Now().UTC().Truncate(time.Second)
	from, to := now.AddDate(0, 0, -1), now.AddDate(0, 0, 1)

	due := newGoal(planner.ID, now.Add(-2*time.Hour))
	edge := newGoal(planner.ID, from)
	tooLate := newGoal(planner.ID, to)
	tooEarly := newGoal(planner.ID, from.Add(-time.Second))
	completed := newGoal(planner.ID, now)
	completed.Completed = true
	cancelled := newGoal(planner.ID, now)
	cancelled.Cancelled = true
	pending := newGoal(planner.ID, now)
	token := "pendingtoken"
	expires := now.Add(48 * time.Hour)
	pending.CheckinToken = &token
	pending.CheckinExpires = &expires

	for _, g := range []*model.Goal{due, edge, tooLate, tooEarly, completed, cancelled, pending} {
		if err := goals.Create(ctx, g); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	list, err := goals.DueForCheckin(ctx, from, to)
	if err != nil {
		t.Fatalf("DueForCheckin() error = %v", err)
	}

	got := map[string]bool{}
	for _, g := range list {
		got[g.ID] = true
	}
	if len(list) != 2 || !got[due.ID] || !got[edge.ID] {
		t.Errorf("DueForCheckin() returned %d goals, want exactly the due and window-edge goals", len(list))
	}
}

func TestGoalRepositoryCheckinLifecycle(t *testing.T) {
	ctx := context.Background()
	database := openTestDB(t)
	users := repository.NewUserRepository(database)
	goals := repository.NewGoalRepository(database)
	planner := createPlanner(t, users)

	now := time.Now().UTC().Truncate(time.Second)
	goal := newGoal(planner.ID, now)
	if err := goals.Create(ctx, goal); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	token := "0123456789abcdef0123"
	expires := now.Add(48 * time.Hour)
	started := *goal
	started.CheckinToken = &token
	started.CheckinExpires = &expires

	if err := goals.StartCheckin(ctx, &started); err != nil {
		t.Fatalf("StartCheckin() error = %v", err)
	}

	// A second mint must not overwrite the outstanding token
	other := "ffffffffffffffffffff"
	again := *goal
	again.CheckinToken = &other
	again.CheckinExpires = &expires
	if err := goals.StartCheckin(ctx, &again); !errors.Is(err, repository.ErrCheckinConflict) {
		t.Fatalf("second StartCheckin() error = %v, want ErrCheckinConflict", err)
	}

	found, err := goals.ByCheckinToken(ctx, token, now)
	if err != nil {
		t.Fatalf("ByCheckinToken() error = %v", err)
	}
	if found.ID != goal.ID {
		t.Errorf("ByCheckinToken() = %s, want %s", found.ID, goal.ID)
	}

	if _, err := goals.ByCheckinToken(ctx, token, expires.Add(time.Second)); !errors.Is(err, repository.ErrGoalNotFound) {
		t.Errorf("ByCheckinToken(after expiry) error = %v, want ErrGoalNotFound", err)
	}

	expired, err := goals.ExpiredCheckins(ctx, expires.Add(time.Minute))
	if err != nil {
		t.Fatalf("ExpiredCheckins() error = %v", err)
	}
	if len(expired) != 1 || expired[0].ID != goal.ID {
		t.Errorf("ExpiredCheckins() = %d goals, want 1", len(expired))
	}

	settled := *found
	settled.ClearCheckin()
	next := now.AddDate(0, 0, 7)
	settled.NextCheck = &next
	if err := goals.SettleCheckin(ctx, &settled, token); err != nil {
		t.Fatalf("SettleCheckin() error = %v", err)
	}

	// The token is gone, so settling again is rejected
	if err := goals.SettleCheckin(ctx, &settled, token); !errors.Is(err, repository.ErrCheckinConflict) {
		t.Errorf("second SettleCheckin() error = %v, want ErrCheckinConflict", err)
	}

	reloaded, err := goals.ByID(ctx, goal.ID)
	if err != nil {
		t.Fatalf("ByID() error = %v", err)
	}
	if reloaded.HasOutstandingCheckin() || reloaded.CheckinExpires != nil {
		t.Error("settled goal should have no token or expiry")
	}
	if reloaded.NextCheck == nil || !reloaded.NextCheck.Equal(next) {
		t.Errorf("NextCheck = %v, want %v", reloaded.NextCheck, next)
	}

	expired, err = goals.ExpiredCheckins(ctx, expires.Add(time.Minute))
	if err != nil {
		t.Fatalf("ExpiredCheckins() error = %v", err)
	}
	if len(expired) != 0 {
		t.Errorf("settled goal should not be reported as expired, got %d", len(expired))
	}
}

func TestGoalRepositoryCancel(t *testing.T) {
	ctx := context.Background()
	database := openTestDB(t)
	users := repository.NewUserRepository(database)
	goals := repository.NewGoalRepository(database)
	planner := createPlanner(t, users)

	now := time.Now().UTC().Truncate(time.Second)
	goal := newGoal(planner.ID, now)
	if err := goals.Create(ctx, goal); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	token := "0123456789abcdef0123"
	expires := now.Add(48 * time.Hour)
	started := *goal
	started.CheckinToken = &token
	started.CheckinExpires = &expires
	if err := goals.StartCheckin(ctx, &started); err != nil {
		t.Fatalf("StartCheckin() error = %v", err)
	}

	if _, err := goals.Cancel(ctx, uuid.New().String(), goal.ID, now); !errors.Is(err, repository.ErrGoalNotFound) {
		t.Errorf("Cancel(other planner) error = %v, want ErrGoalNotFound", err)
	}
	if _, err := goals.Cancel(ctx, planner.ID, uuid.New().String(), now); !errors.Is(err, repository.ErrGoalNotFound) {
		t.Errorf("Cancel(unknown goal) error = %v, want ErrGoalNotFound", err)
	}

	cancelled, err := goals.Cancel(ctx, planner.ID, goal.ID, now.Add(time.Minute))
	if err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}
	if !cancelled.Cancelled || cancelled.HasOutstandingCheckin() || cancelled.CheckinExpires != nil {
		t.Errorf("Cancel() = %+v, want cancelled without a check-in", cancelled)
	}
	if cancelled.NextCheck == nil || !cancelled.NextCheck.Equal(now) {
		t.Errorf("NextCheck = %v, want it untouched", cancelled.NextCheck)
	}

	// The partner's link stops working once the goal is cancelled
	if _, err := goals.ByCheckinToken(ctx, token, now); !errors.Is(err, repository.ErrGoalNotFound) {
		t.Errorf("ByCheckinToken(after cancel) error = %v, want ErrGoalNotFound", err)
	}
}

func TestGoalRepositoryCancelAfterConcurrentCompletion(t *testing.T) {
	ctx := context.Background()
	database := openTestDB(t)
	users := repository.NewUserRepository(database)
	goals := repository.NewGoalRepository(database)
	planner := createPlanner(t, users)

	now := time.Now().UTC().Truncate(time.Second)
	goal := newGoal(planner.ID, now)
	goal.GoalType = model.GoalTypeOneTime
	goal.EndDate = &now
	if err := goals.Create(ctx, goal); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	token := "0123456789abcdef0123"
	expires := now.Add(48 * time.Hour)
	started := *goal
	started.CheckinToken = &token
	started.CheckinExpires = &expires
	if err := goals.StartCheckin(ctx, &started); err != nil {
		t.Fatalf("StartCheckin() error = %v", err)
	}

	// The planner loads the goal, then the partner answers "yes" before the
	// cancel reaches the store.
	stale, err := goals.ByID(ctx, goal.ID)
	if err != nil {
		t.Fatalf("ByID() error = %v", err)
	}

	completed := *stale
	completed.ClearCheckin()
	completed.Completed = true
	completed.NextCheck = nil
	if err := goals.SettleCheckin(ctx, &completed, token); err != nil {
		t.Fatalf("SettleCheckin() error = %v", err)
	}

	_, err = goals.Cancel(ctx, planner.ID, stale.ID, now.Add(time.Minute))
	if !errors.Is(err, repository.ErrGoalCompleted) {
		t.Fatalf("Cancel() error = %v, want ErrGoalCompleted", err)
	}

	reloaded, err := goals.ByID(ctx, goal.ID)
	if err != nil {
		t.Fatalf("ByID() error = %v", err)
	}
	if !reloaded.Completed || reloaded.Cancelled || reloaded.NextCheck != nil {
		t.Errorf("goal after rejected cancel = %+v, want it still completed", reloaded)
	}
	if reloaded.EndDate == nil || !reloaded.EndDate.Equal(now) {
		t.Errorf("EndDate = %v, want %v", reloaded.EndDate, now)
	}
}

func TestUserRepository(t *testing.T) {
	ctx := context.Background()
	database := openTestDB(t)
	users := repository.NewUserRepository(database)

	planner := createPlanner(t, users)

	got, err := users.ByEmail(ctx, planner.Email)
	if err != nil {
		t.Fatalf("ByEmail() error = %v", err)
	}
	if got.ID != planner.ID || !got.HasPaymentMethod() {
		t.Errorf("ByEmail() = %+v, want planner with payment method", got)
	}

	dup := *planner
	dup.ID = uuid.New().String()
	if err := users.Create(ctx, &dup); !errors.Is(err, repository.ErrDuplicateEmail) {
		t.Errorf("Create(duplicate) error = %v, want ErrDuplicateEmail", err)
	}

	if _, err := users.ByID(ctx, uuid.New().String()); !errors.Is(err, repository.ErrUserNotFound) {
		t.Errorf("ByID(unknown) error = %v, want ErrUserNotFound", err)
	}

	createPlanner(t, users)
	count, err := users.Count(ctx)
	if err != nil || count != 2 {
		t.Errorf("Count() = %d, %v, want 2", count, err)
	}
}

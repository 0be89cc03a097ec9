package mongostore

import (
	"testing"
	"time"

	"github.com/liableapp/liable/internal/model"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestDueFilter(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	filter := dueFilter(now.AddDate(0, 0, -1), now.AddDate(0, 0, 1))

	if filter["checkinToken"] != nil {
		t.Errorf("checkinToken = %v, want nil match", filter["checkinToken"])
	}

	window, ok := filter["nextCheck"].(bson.M)
	if !ok {
		t.Fatalf("nextCheck filter has type %T", filter["nextCheck"])
	}
	if got := window["$gte"].(time.Time); !got.Equal(now.AddDate(0, 0, -1)) {
		t.Errorf("$gte = %v", got)
	}
	if got := window["$lt"].(time.Time); !got.Equal(now.AddDate(0, 0, 1)) {
		t.Errorf("$lt = %v", got)
	}

	for _, key := range []string{"completed", "cancelled"} {
		cond, ok := filter[key].(bson.M)
		if !ok || cond["$ne"] != true {
			t.Errorf("%s filter = %v, want {$ne: true}", key, filter[key])
		}
	}
}

func TestExpiredFilterRequiresToken(t *testing.T) {
	now := time.Now()
	filter := expiredFilter(now)

	cond, ok := filter["checkinToken"].(bson.M)
	if !ok {
		t.Fatalf("checkinToken filter has type %T", filter["checkinToken"])
	}
	if _, ok := cond["$ne"]; !ok || cond["$ne"] != nil {
		t.Errorf("checkinToken filter = %v, want {$ne: nil}", cond)
	}
}

func TestSettleUpdateUnsetsClearedFields(t *testing.T) {
	next := time.Now().Add(7 * 24 * time.Hour)
	goal := &model.Goal{NextCheck: &next, Completed: false}

	update := settleUpdate(goal)

	set := update["$set"].(bson.M)
	if set["nextCheck"] != &next {
		t.Errorf("$set.nextCheck = %v, want the new schedule", set["nextCheck"])
	}

	unset, ok := update["$unset"].(bson.M)
	if !ok {
		t.Fatal("expected $unset for cleared fields")
	}
	for _, key := range []string{"checkinToken", "checkinExpires", "endDate"} {
		if _, ok := unset[key]; !ok {
			t.Errorf("%s not unset", key)
		}
	}
	if _, ok := unset["nextCheck"]; ok {
		t.Error("nextCheck should be set, not unset")
	}
}

func TestSettleFilterKeysOnToken(t *testing.T) {
	id := primitive.NewObjectID()
	filter := settleFilter(id, "abc")

	if filter["_id"] != id || filter["checkinToken"] != "abc" {
		t.Errorf("settleFilter = %v", filter)
	}
}

func TestGoalDocumentRoundTrip(t *testing.T) {
	id := primitive.NewObjectID()
	planner := primitive.NewObjectID()
	incentive := int64(500)
	goal := &model.Goal{
		ID:        id.Hex(),
		PlannerID: planner.Hex(),
		Title:     "ship it",
		GoalType:  model.GoalTypeOneTime,
		Incentive: &incentive,
	}

	got := newGoalDocument(goal).toModel()
	if got.ID != goal.ID || got.PlannerID != goal.PlannerID {
		t.Errorf("ids = %s/%s, want %s/%s", got.ID, got.PlannerID, goal.ID, goal.PlannerID)
	}
	if got.GoalType != model.GoalTypeOneTime || *got.Incentive != 500 {
		t.Errorf("document lost fields: %+v", got)
	}
}

func TestNewGoalDocumentLeavesForeignIDsForInsert(t *testing.T) {
	doc := newGoalDocument(&model.Goal{ID: "0b6a3f0e-5d1c-4d2a-9c8e-111111111111"})
	if !doc.ID.IsZero() {
		t.Errorf("non-ObjectID id should be left zero, got %s", doc.ID.Hex())
	}
}

func TestCancelLeavesCompletedGoalsAlone(t *testing.T) {
	id := primitive.NewObjectID()
	planner := primitive.NewObjectID()

	filter := cancelFilter(id, planner)
	if filter["_id"] != id || filter["planner"] != planner {
		t.Errorf("filter = %v, want goal and planner ids", filter)
	}
	completed, ok := filter["completed"].(bson.M)
	if !ok || completed["$ne"] != true {
		t.Errorf("completed filter = %v, want $ne true", filter["completed"])
	}

	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	update := cancelUpdate(now)

	set := update["$set"].(bson.M)
	if len(set) != 2 || set["cancelled"] != true || !set["updatedAt"].(time.Time).Equal(now) {
		t.Errorf("$set = %v, want only cancelled and updatedAt", set)
	}
	unset := update["$unset"].(bson.M)
	if _, ok := unset["checkinToken"]; !ok {
		t.Error("cancel should drop the outstanding token")
	}
	if _, ok := unset["checkinExpires"]; !ok {
		t.Error("cancel should drop the token expiry")
	}
	for _, field := range []string{"completed", "nextCheck", "endDate"} {
		if _, ok := set[field]; ok {
			t.Errorf("cancel must not write %s", field)
		}
	}
}

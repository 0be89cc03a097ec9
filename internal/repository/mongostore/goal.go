package mongostore

import (
	"context"
	"errors"
	"time"

	"github.com/liableapp/liable/internal/model"
	"github.com/liableapp/liable/internal/repository"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type goalDocument struct {
	ID                             primitive.ObjectID `bson:"_id,omitempty"`
	Title                          string             `bson:"title"`
	Incentive                      *int64             `bson:"incentive,omitempty"`
	AccountabilityFrequency        string             `bson:"accountabilityFrequency"`
	AccountabilityPartnerFirstName string             `bson:"accountabilityPartnerFirstName"`
	AccountabilityPartnerEmail     string             `bson:"accountabilityPartnerEmail"`
	Planner                        primitive.ObjectID `bson:"planner"`
	NextCheck                      *time.Time         `bson:"nextCheck,omitempty"`
	EndDate                        *time.Time         `bson:"endDate,omitempty"`
	GoalType                       string             `bson:"goalType"`
	Completed                      bool               `bson:"completed"`
	Cancelled                      bool               `bson:"cancelled"`
	CheckinToken                   *string            `bson:"checkinToken,omitempty"`
	CheckinExpires                 *time.Time         `bson:"checkinExpires,omitempty"`
	CreatedAt                      time.Time          `bson:"createdAt,omitempty"`
	UpdatedAt                      time.Time          `bson:"updatedAt,omitempty"`
}

func newGoalDocument(goal *model.Goal) goalDocument {
	doc := goalDocument{
		Title:                          goal.Title,
		Incentive:                      goal.Incentive,
		AccountabilityFrequency:        goal.AccountabilityFrequency,
		AccountabilityPartnerFirstName: goal.AccountabilityPartnerFirstName,
		AccountabilityPartnerEmail:     goal.AccountabilityPartnerEmail,
		NextCheck:                      goal.NextCheck,
		EndDate:                        goal.EndDate,
		GoalType:                       string(goal.GoalType),
		Completed:                      goal.Completed,
		Cancelled:                      goal.Cancelled,
		CheckinToken:                   goal.CheckinToken,
		CheckinExpires:                 goal.CheckinExpires,
		CreatedAt:                      goal.CreatedAt,
		UpdatedAt:                      goal.UpdatedAt,
	}
	doc.ID, _ = objectID(goal.ID)
	doc.Planner, _ = objectID(goal.PlannerID)
	return doc
}

func (d goalDocument) toModel() *model.Goal {
	return &model.Goal{
		ID:                             d.ID.Hex(),
		PlannerID:                      d.Planner.Hex(),
		Title:                          d.Title,
		GoalType:                       model.GoalType(d.GoalType),
		AccountabilityFrequency:        d.AccountabilityFrequency,
		AccountabilityPartnerFirstName: d.AccountabilityPartnerFirstName,
		AccountabilityPartnerEmail:     d.AccountabilityPartnerEmail,
		Incentive:                      d.Incentive,
		EndDate:                        d.EndDate,
		NextCheck:                      d.NextCheck,
		Completed:                      d.Completed,
		Cancelled:                      d.Cancelled,
		CheckinToken:                   d.CheckinToken,
		CheckinExpires:                 d.CheckinExpires,
		CreatedAt:                      d.CreatedAt,
		UpdatedAt:                      d.UpdatedAt,
	}
}

// GoalRepository implements repository.GoalRepository over the goals collection.
type GoalRepository struct {
	coll *mongo.Collection
}

var _ repository.GoalRepository = (*GoalRepository)(nil)

func (r *GoalRepository) Create(ctx context.Context, goal *model.Goal) error {
	doc := newGoalDocument(goal)
	if doc.ID.IsZero() {
		doc.ID = primitive.NewObjectID()
	}

	_, err := r.coll.InsertOne(ctx, doc)
	if err != nil {
		return err
	}

	goal.ID = doc.ID.Hex()
	return nil
}

func (r *GoalRepository) ByID(ctx context.Context, goalID string) (*model.Goal, error) {
	oid, ok := objectID(goalID)
	if !ok {
		return nil, repository.ErrGoalNotFound
	}
	return r.findOne(ctx, bson.M{"_id": oid})
}

func (r *GoalRepository) ByPlanner(ctx context.Context, plannerID string) ([]*model.Goal, error) {
	oid, ok := objectID(plannerID)
	if !ok {
		return nil, nil
	}
	return r.find(ctx, bson.M{"planner": oid}, bson.D{{Key: "_id", Value: -1}})
}

func (r *GoalRepository) ByCheckinToken(ctx context.Context, token string, now time.Time) (*model.Goal, error) {
	if token == "" {
		return nil, repository.ErrGoalNotFound
	}
	return r.findOne(ctx, tokenFilter(token, now))
}

func (r *GoalRepository) DueForCheckin(ctx context.Context, from, to time.Time) ([]*model.Goal, error) {
	return r.find(ctx, dueFilter(from, to), bson.D{{Key: "nextCheck", Value: 1}})
}

func (r *GoalRepository) ExpiredCheckins(ctx context.Context, now time.Time) ([]*model.Goal, error) {
	return r.find(ctx, expiredFilter(now), bson.D{{Key: "checkinExpires", Value: 1}})
}

func (r *GoalRepository) StartCheckin(ctx context.Context, goal *model.Goal) error {
	oid, ok := objectID(goal.ID)
	if !ok {
		return repository.ErrGoalNotFound
	}

	update := bson.M{"$set": bson.M{
		"checkinToken":   goal.CheckinToken,
		"checkinExpires": goal.CheckinExpires,
		"updatedAt":      goal.UpdatedAt,
	}}

	return r.updateOne(ctx, startFilter(oid), update)
}

func (r *GoalRepository) SettleCheckin(ctx context.Context, goal *model.Goal, token string) error {
	oid, ok := objectID(goal.ID)
	if !ok {
		return repository.ErrGoalNotFound
	}

	return r.updateOne(ctx, settleFilter(oid, token), settleUpdate(goal))
}

func (r *GoalRepository) Cancel(ctx context.Context, plannerID, goalID string, now time.Time) (*model.Goal, error) {
	oid, ok := objectID(goalID)
	if !ok {
		return nil, repository.ErrGoalNotFound
	}
	planner, ok := objectID(plannerID)
	if !ok {
		return nil, repository.ErrGoalNotFound
	}

	var doc goalDocument
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	err := r.coll.FindOneAndUpdate(ctx, cancelFilter(oid, planner), cancelUpdate(now), opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, r.cancelRejected(ctx, oid, plannerID)
	}
	if err != nil {
		return nil, err
	}

	return doc.toModel(), nil
}

// cancelRejected explains why Cancel matched no document.
func (r *GoalRepository) cancelRejected(ctx context.Context, id primitive.ObjectID, plannerID string) error {
	goal, err := r.findOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if goal.PlannerID != plannerID {
		return repository.ErrGoalNotFound
	}
	if goal.Completed {
		return repository.ErrGoalCompleted
	}
	return repository.ErrGoalNotFound
}

func (r *GoalRepository) findOne(ctx context.Context, filter bson.M) (*model.Goal, error) {
	var doc goalDocument
	err := r.coll.FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, repository.ErrGoalNotFound
	}
	if err != nil {
		return nil, err
	}
	return doc.toModel(), nil
}

func (r *GoalRepository) find(ctx context.Context, filter bson.M, sort bson.D) ([]*model.Goal, error) {
	cursor, err := r.coll.Find(ctx, filter, options.Find().SetSort(sort))
	if err != nil {
		return nil, err
	}

	var docs []goalDocument
	err = cursor.All(ctx, &docs)
	if err != nil {
		return nil, err
	}

	goals := make([]*model.Goal, 0, len(docs))
	for _, doc := range docs {
		goals = append(goals, doc.toModel())
	}
	return goals, nil
}

func (r *GoalRepository) updateOne(ctx context.Context, filter, update bson.M) error {
	result, err := r.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrCheckinConflict
	}
	return nil
}

// Stored goals from the legacy web client may lack the cancelled field
// entirely, so "not cancelled" is expressed as $ne rather than false.
func dueFilter(from, to time.Time) bson.M {
	return bson.M{
		"completed":    bson.M{"$ne": true},
		"cancelled":    bson.M{"$ne": true},
		"checkinToken": nil,
		"nextCheck":    bson.M{"$gte": from.UTC(), "$lt": to.UTC()},
	}
}

func expiredFilter(now time.Time) bson.M {
	return bson.M{
		"checkinToken":   bson.M{"$ne": nil},
		"checkinExpires": bson.M{"$lt": now.UTC()},
	}
}

func tokenFilter(token string, now time.Time) bson.M {
	return bson.M{
		"checkinToken":   token,
		"checkinExpires": bson.M{"$gt": now.UTC()},
	}
}

func startFilter(id primitive.ObjectID) bson.M {
	return bson.M{
		"_id":          id,
		"checkinToken": nil,
		"completed":    bson.M{"$ne": true},
		"cancelled":    bson.M{"$ne": true},
	}
}

func cancelFilter(id, planner primitive.ObjectID) bson.M {
	return bson.M{
		"_id":       id,
		"planner":   planner,
		"completed": bson.M{"$ne": true},
	}
}

func cancelUpdate(now time.Time) bson.M {
	return bson.M{
		"$set":   bson.M{"cancelled": true, "updatedAt": now.UTC()},
		"$unset": bson.M{"checkinToken": "", "checkinExpires": ""},
	}
}

func settleFilter(id primitive.ObjectID, token string) bson.M {
	return bson.M{"_id": id, "checkinToken": token}
}

// settleUpdate sets the resolved schedule and drops whichever optional
// fields the transition cleared.
func settleUpdate(goal *model.Goal) bson.M {
	set := bson.M{
		"completed": goal.Completed,
		"cancelled": goal.Cancelled,
		"updatedAt": goal.UpdatedAt,
	}
	unset := bson.M{}

	optional := []struct {
		key   string
		value any
		isSet bool
	}{
		{"endDate", goal.EndDate, goal.EndDate != nil},
		{"nextCheck", goal.NextCheck, goal.NextCheck != nil},
		{"checkinToken", goal.CheckinToken, goal.CheckinToken != nil},
		{"checkinExpires", goal.CheckinExpires, goal.CheckinExpires != nil},
	}
	for _, field := range optional {
		if field.isSet {
			set[field.key] = field.value
		} else {
			unset[field.key] = ""
		}
	}

	update := bson.M{"$set": set}
	if len(unset) > 0 {
		update["$unset"] = unset
	}
	return update
}

// Package mongostore keeps goals and planners in MongoDB using the document
// layout of the legacy web client, so existing collections stay readable.
package mongostore

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	goalsCollection = "goals"
	usersCollection = "users"
)

type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

// Open connects to uri, selects database and ensures the indexes the
// check-in queries rely on.
func Open(ctx context.Context, uri, database string) (*Store, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	err = client.Ping(connectCtx, nil)
	if err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	store := &Store{client: client, db: client.Database(database)}

	err = store.ensureIndexes(connectCtx)
	if err != nil {
		client.Disconnect(context.Background())
		return nil, err
	}

	slog.Info("database connected", "driver", "mongodb", "database", database)
	return store, nil
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	_, err := s.db.Collection(goalsCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "planner", Value: 1}}},
		{Keys: bson.D{{Key: "nextCheck", Value: 1}}},
		{Keys: bson.D{{Key: "checkinExpires", Value: 1}}},
		{
			Keys:    bson.D{{Key: "checkinToken", Value: 1}},
			Options: options.Index().SetUnique(true).SetSparse(true),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create goal indexes: %w", err)
	}

	_, err = s.db.Collection(usersCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("failed to create user indexes: %w", err)
	}

	return nil
}

func (s *Store) Goals() *GoalRepository {
	return &GoalRepository{coll: s.db.Collection(goalsCollection)}
}

func (s *Store) Users() *UserRepository {
	return &UserRepository{coll: s.db.Collection(usersCollection)}
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// objectID converts an id handed out by this store. New records may arrive
// with ids minted elsewhere (uuids); those get a fresh ObjectID on insert.
func objectID(id string) (primitive.ObjectID, bool) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, false
	}
	return oid, true
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

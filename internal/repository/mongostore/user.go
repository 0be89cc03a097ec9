package mongostore

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/liableapp/liable/internal/model"
	"github.com/liableapp/liable/internal/repository"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// userDocument reads the planner fields the check-in flow needs. Password
// and card details written by the legacy web client are left untouched.
type userDocument struct {
	ID               primitive.ObjectID `bson:"_id,omitempty"`
	FirstName        string             `bson:"firstName"`
	LastName         string             `bson:"lastName"`
	Email            string             `bson:"email"`
	StripeCustomerID *string            `bson:"stripeCustomerId,omitempty"`
	CreatedAt        time.Time          `bson:"createdAt,omitempty"`
}

func (d userDocument) toModel() *model.User {
	createdAt := d.CreatedAt
	if createdAt.IsZero() {
		createdAt = d.ID.Timestamp()
	}

	return &model.User{
		ID:               d.ID.Hex(),
		FirstName:        d.FirstName,
		LastName:         d.LastName,
		Email:            d.Email,
		StripeCustomerID: d.StripeCustomerID,
		CreatedAt:        createdAt,
	}
}

// UserRepository implements repository.UserRepository over the users collection.
type UserRepository struct {
	coll *mongo.Collection
}

var _ repository.UserRepository = (*UserRepository)(nil)

func (r *UserRepository) Create(ctx context.Context, user *model.User) error {
	oid, ok := objectID(user.ID)
	if !ok {
		oid = primitive.NewObjectID()
	}

	doc := userDocument{
		ID:               oid,
		FirstName:        user.FirstName,
		LastName:         user.LastName,
		Email:            strings.ToLower(strings.TrimSpace(user.Email)),
		StripeCustomerID: user.StripeCustomerID,
		CreatedAt:        user.CreatedAt,
	}

	_, err := r.coll.InsertOne(ctx, doc)
	if mongo.IsDuplicateKeyError(err) {
		return repository.ErrDuplicateEmail
	}
	if err != nil {
		return err
	}

	user.ID = oid.Hex()
	user.Email = doc.Email
	return nil
}

func (r *UserRepository) ByID(ctx context.Context, id string) (*model.User, error) {
	oid, ok := objectID(id)
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	return r.findOne(ctx, bson.M{"_id": oid})
}

func (r *UserRepository) ByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.findOne(ctx, bson.M{"email": strings.ToLower(strings.TrimSpace(email))})
}

func (r *UserRepository) Count(ctx context.Context) (int, error) {
	count, err := r.coll.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, err
	}
	return int(count), nil
}

func (r *UserRepository) findOne(ctx context.Context, filter bson.M) (*model.User, error) {
	var doc userDocument
	err := r.coll.FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, repository.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return doc.toModel(), nil
}

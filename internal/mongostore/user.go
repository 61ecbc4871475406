package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/dukerupert/habitd/internal/model"
	"github.com/dukerupert/habitd/internal/store"
)

type userDoc struct {
	ID                   string    `bson:"_id"`
	Email                string    `bson:"email"`
	Name                 string    `bson:"name"`
	PasswordHash         string    `bson:"password_hash"`
	NotificationsEnabled bool      `bson:"notifications_enabled"`
	CreatedAt            time.Time `bson:"created_at"`
	UpdatedAt            time.Time `bson:"updated_at"`
}

func (d userDoc) model() *model.User {
	return &model.User{
		ID:                   d.ID,
		Email:                d.Email,
		Name:                 d.Name,
		PasswordHash:         d.PasswordHash,
		NotificationsEnabled: d.NotificationsEnabled,
		CreatedAt:            d.CreatedAt,
		UpdatedAt:            d.UpdatedAt,
	}
}

type UserStore struct {
	db    *mongo.Database
	users *mongo.Collection
}

func NewUserStore(db *mongo.Database) *UserStore {
	return &UserStore{db: db, users: db.Collection(usersCollection)}
}

func (s *UserStore) Create(ctx context.Context, email, name, passwordHash string) (*model.User, error) {
	ts := now()
	doc := userDoc{
		ID:                   newID(),
		Email:                email,
		Name:                 name,
		PasswordHash:         passwordHash,
		NotificationsEnabled: true,
		CreatedAt:            ts,
		UpdatedAt:            ts,
	}
	if _, err := s.users.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, fmt.Errorf("insert user: %w", store.ErrDuplicate)
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return doc.model(), nil
}

func (s *UserStore) findOne(ctx context.Context, filter bson.D) (*model.User, error) {
	var doc userDoc
	err := s.users.FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return doc.model(), nil
}

func (s *UserStore) GetByID(ctx context.Context, id string) (*model.User, error) {
	u, err := s.findOne(ctx, bson.D{{Key: "_id", Value: id}})
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (s *UserStore) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	u, err := s.findOne(ctx, bson.D{{Key: "email", Value: email}})
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return u, nil
}

func (s *UserStore) Update(ctx context.Context, id string, p model.UserPatch) (*model.User, error) {
	set := bson.D{}
	if p.Email != nil {
		set = append(set, bson.E{Key: "email", Value: *p.Email})
	}
	if p.Name != nil {
		set = append(set, bson.E{Key: "name", Value: *p.Name})
	}
	if p.PasswordHash != nil {
		set = append(set, bson.E{Key: "password_hash", Value: *p.PasswordHash})
	}
	if p.NotificationsEnabled != nil {
		set = append(set, bson.E{Key: "notifications_enabled", Value: *p.NotificationsEnabled})
	}
	if len(set) == 0 {
		return s.GetByID(ctx, id)
	}
	set = append(set, bson.E{Key: "updated_at", Value: now()})

	var doc userDoc
	err := s.users.FindOneAndUpdate(ctx,
		bson.D{{Key: "_id", Value: id}},
		bson.D{{Key: "$set", Value: set}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return nil, nil
	case mongo.IsDuplicateKeyError(err):
		return nil, fmt.Errorf("update user: %w", store.ErrDuplicate)
	case err != nil:
		return nil, fmt.Errorf("update user: %w", err)
	}
	return doc.model(), nil
}

// Delete removes the user along with their habits and completions.
func (s *UserStore) Delete(ctx context.Context, id string) (bool, error) {
	res, err := s.users.DeleteOne(ctx, bson.D{{Key: "_id", Value: id}})
	if err != nil {
		return false, fmt.Errorf("delete user: %w", err)
	}
	if res.DeletedCount == 0 {
		return false, nil
	}

	byUser := bson.D{{Key: "user_id", Value: id}}
	if _, err := s.db.Collection(completionsCollection).DeleteMany(ctx, byUser); err != nil {
		return true, fmt.Errorf("delete user completions: %w", err)
	}
	if _, err := s.db.Collection(habitsCollection).DeleteMany(ctx, byUser); err != nil {
		return true, fmt.Errorf("delete user habits: %w", err)
	}
	return true, nil
}

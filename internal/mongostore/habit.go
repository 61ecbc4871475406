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
)

type habitDoc struct {
	ID          string    `bson:"_id"`
	UserID      string    `bson:"user_id"`
	Name        string    `bson:"name"`
	Description string    `bson:"description"`
	SortIndex   int       `bson:"sort_index"`
	Category    *string   `bson:"category"`
	Color       *string   `bson:"color"`
	Icon        *string   `bson:"icon"`
	StartDate   *string   `bson:"start_date"`
	EndDate     *string   `bson:"end_date"`
	Archived    bool      `bson:"archived"`
	CreatedAt   time.Time `bson:"created_at"`
	UpdatedAt   time.Time `bson:"updated_at"`
}

func (d habitDoc) model() model.Habit {
	return model.Habit{
		ID:          d.ID,
		UserID:      d.UserID,
		Name:        d.Name,
		Description: d.Description,
		SortIndex:   d.SortIndex,
		Category:    d.Category,
		Color:       d.Color,
		Icon:        d.Icon,
		StartDate:   d.StartDate,
		EndDate:     d.EndDate,
		Archived:    d.Archived,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
}

type HabitStore struct {
	db     *mongo.Database
	habits *mongo.Collection
}

func NewHabitStore(db *mongo.Database) *HabitStore {
	return &HabitStore{db: db, habits: db.Collection(habitsCollection)}
}

func (s *HabitStore) Create(ctx context.Context, h model.Habit) (*model.Habit, error) {
	ts := now()
	doc := habitDoc{
		ID:          newID(),
		UserID:      h.UserID,
		Name:        h.Name,
		Description: h.Description,
		SortIndex:   h.SortIndex,
		Category:    h.Category,
		Color:       h.Color,
		Icon:        h.Icon,
		StartDate:   h.StartDate,
		EndDate:     h.EndDate,
		Archived:    h.Archived,
		CreatedAt:   ts,
		UpdatedAt:   ts,
	}
	if _, err := s.habits.InsertOne(ctx, doc); err != nil {
		return nil, fmt.Errorf("insert habit: %w", err)
	}
	m := doc.model()
	return &m, nil
}

func (s *HabitStore) GetByID(ctx context.Context, id string) (*model.Habit, error) {
	var doc habitDoc
	err := s.habits.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get habit: %w", err)
	}
	m := doc.model()
	return &m, nil
}

// ListByUser returns the user's habits in display order.
func (s *HabitStore) ListByUser(ctx context.Context, userID string, includeArchived bool) ([]model.Habit, error) {
	filter := bson.D{{Key: "user_id", Value: userID}}
	if !includeArchived {
		filter = append(filter, bson.E{Key: "archived", Value: false})
	}
	opts := options.Find().SetSort(bson.D{{Key: "sort_index", Value: 1}, {Key: "name", Value: 1}})

	cur, err := s.habits.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("list habits: %w", err)
	}
	var docs []habitDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode habits: %w", err)
	}

	habits := make([]model.Habit, 0, len(docs))
	for _, d := range docs {
		habits = append(habits, d.model())
	}
	return habits, nil
}

func (s *HabitStore) Update(ctx context.Context, id string, p model.HabitPatch) (*model.Habit, error) {
	set := bson.D{}
	add := func(key string, v any) { set = append(set, bson.E{Key: key, Value: v}) }
	if p.Name != nil {
		add("name", *p.Name)
	}
	if p.Description != nil {
		add("description", *p.Description)
	}
	if p.SortIndex != nil {
		add("sort_index", *p.SortIndex)
	}
	if p.Category != nil {
		add("category", *p.Category)
	}
	if p.Color != nil {
		add("color", *p.Color)
	}
	if p.Icon != nil {
		add("icon", *p.Icon)
	}
	if p.StartDate != nil {
		add("start_date", *p.StartDate)
	}
	if p.EndDate != nil {
		add("end_date", *p.EndDate)
	}
	if p.Archived != nil {
		add("archived", *p.Archived)
	}
	if len(set) == 0 {
		return s.GetByID(ctx, id)
	}
	add("updated_at", now())

	var doc habitDoc
	err := s.habits.FindOneAndUpdate(ctx,
		bson.D{{Key: "_id", Value: id}},
		bson.D{{Key: "$set", Value: set}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("update habit: %w", err)
	}
	m := doc.model()
	return &m, nil
}

// Delete removes the habit and its completions.
func (s *HabitStore) Delete(ctx context.Context, id string) (bool, error) {
	res, err := s.habits.DeleteOne(ctx, bson.D{{Key: "_id", Value: id}})
	if err != nil {
		return false, fmt.Errorf("delete habit: %w", err)
	}
	if res.DeletedCount == 0 {
		return false, nil
	}
	if _, err := s.db.Collection(completionsCollection).DeleteMany(ctx, bson.D{{Key: "habit_id", Value: id}}); err != nil {
		return true, fmt.Errorf("delete habit completions: %w", err)
	}
	return true, nil
}

// UpdateSortOrder assigns sort_index by position in ids. Habits not owned by
// userID are left untouched.
func (s *HabitStore) UpdateSortOrder(ctx context.Context, userID string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	ts := now()
	models := make([]mongo.WriteModel, 0, len(ids))
	for i, id := range ids {
		models = append(models, mongo.NewUpdateOneModel().
			SetFilter(bson.D{{Key: "_id", Value: id}, {Key: "user_id", Value: userID}}).
			SetUpdate(bson.D{{Key: "$set", Value: bson.D{
				{Key: "sort_index", Value: i},
				{Key: "updated_at", Value: ts},
			}}}))
	}
	if _, err := s.habits.BulkWrite(ctx, models); err != nil {
		return fmt.Errorf("update sort order: %w", err)
	}
	return nil
}

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

type completionDoc struct {
	ID        string    `bson:"_id"`
	HabitID   string    `bson:"habit_id"`
	UserID    string    `bson:"user_id"`
	Date      string    `bson:"date"`
	Completed bool      `bson:"completed"`
	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`
}

func (d completionDoc) model() model.Completion {
	return model.Completion{
		ID:        d.ID,
		HabitID:   d.HabitID,
		UserID:    d.UserID,
		Date:      d.Date,
		Completed: d.Completed,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

type CompletionStore struct {
	completions *mongo.Collection
	habits      *mongo.Collection
}

func NewCompletionStore(db *mongo.Database) *CompletionStore {
	return &CompletionStore{
		completions: db.Collection(completionsCollection),
		habits:      db.Collection(habitsCollection),
	}
}

// Create inserts a completion. A second record for the same habit and date
// yields store.ErrDuplicate.
func (s *CompletionStore) Create(ctx context.Context, c model.Completion) (*model.Completion, error) {
	ts := now()
	doc := completionDoc{
		ID:        newID(),
		HabitID:   c.HabitID,
		UserID:    c.UserID,
		Date:      c.Date,
		Completed: c.Completed,
		CreatedAt: ts,
		UpdatedAt: ts,
	}
	if _, err := s.completions.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, fmt.Errorf("insert completion: %w", store.ErrDuplicate)
		}
		return nil, fmt.Errorf("insert completion: %w", err)
	}
	m := doc.model()
	return &m, nil
}

func (s *CompletionStore) GetByID(ctx context.Context, id string) (*model.Completion, error) {
	var doc completionDoc
	err := s.completions.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get completion: %w", err)
	}
	m := doc.model()
	return &m, nil
}

// ListByHabit returns the habit's completions newest first. Empty from/to
// leave that end of the date range open.
func (s *CompletionStore) ListByHabit(ctx context.Context, habitID, from, to string) ([]model.Completion, error) {
	filter := bson.D{{Key: "habit_id", Value: habitID}}
	dateRange := bson.D{}
	if from != "" {
		dateRange = append(dateRange, bson.E{Key: "$gte", Value: from})
	}
	if to != "" {
		dateRange = append(dateRange, bson.E{Key: "$lte", Value: to})
	}
	if len(dateRange) > 0 {
		filter = append(filter, bson.E{Key: "date", Value: dateRange})
	}

	cur, err := s.completions.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "date", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("list completions: %w", err)
	}
	var docs []completionDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode completions: %w", err)
	}

	out := make([]model.Completion, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.model())
	}
	return out, nil
}

// SetCompleted updates the completed flag in place. It returns nil if the
// completion does not exist.
func (s *CompletionStore) SetCompleted(ctx context.Context, id string, completed bool) (*model.Completion, error) {
	var doc completionDoc
	err := s.completions.FindOneAndUpdate(ctx,
		bson.D{{Key: "_id", Value: id}},
		bson.D{{Key: "$set", Value: bson.D{
			{Key: "completed", Value: completed},
			{Key: "updated_at", Value: now()},
		}}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("update completion: %w", err)
	}
	m := doc.model()
	return &m, nil
}

// Upsert records the completed flag for a habit and date, creating the record
// if needed and updating it otherwise.
func (s *CompletionStore) Upsert(ctx context.Context, userID, habitID, date string, completed bool) (*model.Completion, error) {
	ts := now()
	filter := bson.D{{Key: "habit_id", Value: habitID}, {Key: "date", Value: date}}
	update := bson.D{
		{Key: "$set", Value: bson.D{
			{Key: "completed", Value: completed},
			{Key: "updated_at", Value: ts},
		}},
		{Key: "$setOnInsert", Value: bson.D{
			{Key: "_id", Value: newID()},
			{Key: "user_id", Value: userID},
			{Key: "created_at", Value: ts},
		}},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var doc completionDoc
	err := s.completions.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc)
	if mongo.IsDuplicateKeyError(err) {
		// Lost an insert race; the record exists now, so update it.
		err = s.completions.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc)
	}
	if err != nil {
		return nil, fmt.Errorf("upsert completion: %w", err)
	}
	m := doc.model()
	return &m, nil
}

// CompletedDates returns the dates on which the habit was completed, newest first.
func (s *CompletionStore) CompletedDates(ctx context.Context, userID, habitID string) ([]string, error) {
	filter := bson.D{
		{Key: "user_id", Value: userID},
		{Key: "habit_id", Value: habitID},
		{Key: "completed", Value: true},
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "date", Value: -1}}).
		SetProjection(bson.D{{Key: "date", Value: 1}})

	cur, err := s.completions.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("list completed dates: %w", err)
	}
	var docs []struct {
		Date string `bson:"date"`
	}
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode completed dates: %w", err)
	}

	dates := make([]string, 0, len(docs))
	for _, d := range docs {
		dates = append(dates, d.Date)
	}
	return dates, nil
}

// PrepareDay makes sure every habit has a completion record for date, adding
// a not-completed record where one is missing. Existing records are never
// modified. It returns the number of records created.
func (s *CompletionStore) PrepareDay(ctx context.Context, date string) (int64, error) {
	cur, err := s.habits.Find(ctx, bson.D{},
		options.Find().SetProjection(bson.D{{Key: "_id", Value: 1}, {Key: "user_id", Value: 1}}))
	if err != nil {
		return 0, fmt.Errorf("list habits: %w", err)
	}
	var habits []struct {
		ID     string `bson:"_id"`
		UserID string `bson:"user_id"`
	}
	if err := cur.All(ctx, &habits); err != nil {
		return 0, fmt.Errorf("decode habits: %w", err)
	}
	if len(habits) == 0 {
		return 0, nil
	}

	ts := now()
	models := make([]mongo.WriteModel, 0, len(habits))
	for _, h := range habits {
		models = append(models, mongo.NewUpdateOneModel().
			SetFilter(bson.D{{Key: "habit_id", Value: h.ID}, {Key: "date", Value: date}}).
			SetUpdate(bson.D{{Key: "$setOnInsert", Value: bson.D{
				{Key: "_id", Value: newID()},
				{Key: "user_id", Value: h.UserID},
				{Key: "completed", Value: false},
				{Key: "created_at", Value: ts},
				{Key: "updated_at", Value: ts},
			}}}).
			SetUpsert(true))
	}

	res, err := s.completions.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false))
	if err != nil && !mongo.IsDuplicateKeyError(err) {
		return 0, fmt.Errorf("prepare completions: %w", err)
	}
	if res == nil {
		return 0, nil
	}
	return res.UpsertedCount, nil
}

func (s *CompletionStore) Delete(ctx context.Context, id string) (bool, error) {
	res, err := s.completions.DeleteOne(ctx, bson.D{{Key: "_id", Value: id}})
	if err != nil {
		return false, fmt.Errorf("delete completion: %w", err)
	}
	return res.DeletedCount > 0, nil
}

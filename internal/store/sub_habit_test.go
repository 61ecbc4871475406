package store

import (
	"context"
	"testing"

	"github.com/dukerupert/habitd/internal/model"
)

func TestSubHabitCRUD(t *testing.T) {
	db := setupTestDB(t)
	ss := NewSubHabitStore(db)
	ctx := context.Background()
	u := createTestUser(t, db, "alice@example.com")
	h := createTestHabit(t, db, u.ID, "Drink Water")

	sh, err := ss.Create(ctx, h.ID, "Morning Water", "A glass after waking", 0)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if sh.HabitID != h.ID {
		t.Errorf("habit id = %s, want %s", sh.HabitID, h.ID)
	}

	if _, err := ss.Create(ctx, h.ID, "Evening Water", "", 1); err != nil {
		t.Fatalf("create second: %v", err)
	}

	list, err := ss.ListByHabit(ctx, h.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].Name != "Morning Water" {
		t.Fatalf("list = %+v", list)
	}

	name := "Morning Tea"
	updated, err := ss.Update(ctx, sh.ID, model.SubHabitPatch{Name: &name})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Name != name || updated.Description != "A glass after waking" {
		t.Errorf("updated = %+v", updated)
	}

	deleted, err := ss.Delete(ctx, sh.ID)
	if err != nil || !deleted {
		t.Fatalf("delete = %v, %v", deleted, err)
	}
	got, err := ss.GetByID(ctx, sh.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != nil {
		t.Error("expected nil after delete")
	}
}

func TestSubHabitUpsertCompletion(t *testing.T) {
	db := setupTestDB(t)
	ss := NewSubHabitStore(db)
	ctx := context.Background()
	u := createTestUser(t, db, "alice@example.com")
	h := createTestHabit(t, db, u.ID, "Drink Water")
	sh, _ := ss.Create(ctx, h.ID, "Morning Water", "", 0)

	first, err := ss.UpsertCompletion(ctx, u.ID, sh.ID, "2025-02-21", true)
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	second, err := ss.UpsertCompletion(ctx, u.ID, sh.ID, "2025-02-21", false)
	if err != nil {
		t.Fatalf("upsert again: %v", err)
	}
	if first.ID != second.ID {
		t.Error("expected the same record to be updated")
	}
	if second.Completed {
		t.Error("expected completed = false")
	}

	list, err := ss.ListCompletions(ctx, sh.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 {
		t.Errorf("len = %d, want 1", len(list))
	}
}

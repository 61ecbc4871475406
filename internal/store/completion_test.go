package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/dukerupert/habitd/internal/model"
)

func createTestHabit(t *testing.T, db *sql.DB, userID, name string) *model.Habit {
	t.Helper()
	h, err := NewHabitStore(db).Create(context.Background(), model.Habit{UserID: userID, Name: name})
	if err != nil {
		t.Fatalf("create habit: %v", err)
	}
	return h
}

func TestCompletionCreateDuplicateDate(t *testing.T) {
	db := setupTestDB(t)
	cs := NewCompletionStore(db)
	ctx := context.Background()
	u := createTestUser(t, db, "alice@example.com")
	h := createTestHabit(t, db, u.ID, "Read")

	c, err := cs.Create(ctx, model.Completion{HabitID: h.ID, UserID: u.ID, Date: "2025-02-21", Completed: true})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !c.Completed || c.Date != "2025-02-21" {
		t.Errorf("got %+v", c)
	}

	_, err = cs.Create(ctx, model.Completion{HabitID: h.ID, UserID: u.ID, Date: "2025-02-21"})
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("err = %v, want ErrDuplicate", err)
	}
}

func TestCompletionSetCompleted(t *testing.T) {
	db := setupTestDB(t)
	cs := NewCompletionStore(db)
	ctx := context.Background()
	u := createTestUser(t, db, "alice@example.com")
	h := createTestHabit(t, db, u.ID, "Read")

	c, err := cs.Create(ctx, model.Completion{HabitID: h.ID, UserID: u.ID, Date: "2025-02-21"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	updated, err := cs.SetCompleted(ctx, c.ID, true)
	if err != nil {
		t.Fatalf("set completed: %v", err)
	}
	if !updated.Completed {
		t.Error("expected completed")
	}
	if updated.ID != c.ID {
		t.Errorf("id = %s, want %s (updated in place)", updated.ID, c.ID)
	}

	missing, err := cs.SetCompleted(ctx, "missing", true)
	if err != nil {
		t.Fatalf("set completed missing: %v", err)
	}
	if missing != nil {
		t.Error("expected nil for missing completion")
	}
}

func TestCompletionUpsert(t *testing.T) {
	db := setupTestDB(t)
	cs := NewCompletionStore(db)
	ctx := context.Background()
	u := createTestUser(t, db, "alice@example.com")
	h := createTestHabit(t, db, u.ID, "Read")

	first, err := cs.Upsert(ctx, u.ID, h.ID, "2025-02-21", false)
	if err != nil {
		t.Fatalf("upsert insert: %v", err)
	}
	second, err := cs.Upsert(ctx, u.ID, h.ID, "2025-02-21", true)
	if err != nil {
		t.Fatalf("upsert update: %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("id changed from %s to %s", first.ID, second.ID)
	}
	if !second.Completed {
		t.Error("expected completed after upsert")
	}

	list, err := cs.ListByHabit(ctx, h.ID, "", "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("len = %d, want 1", len(list))
	}
}

func TestCompletionListByHabitRange(t *testing.T) {
	db := setupTestDB(t)
	cs := NewCompletionStore(db)
	ctx := context.Background()
	u := createTestUser(t, db, "alice@example.com")
	h := createTestHabit(t, db, u.ID, "Read")

	for _, d := range []string{"2025-02-19", "2025-02-20", "2025-02-21", "2025-02-22"} {
		if _, err := cs.Upsert(ctx, u.ID, h.ID, d, true); err != nil {
			t.Fatalf("upsert %s: %v", d, err)
		}
	}

	list, err := cs.ListByHabit(ctx, h.ID, "2025-02-20", "2025-02-21")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("len = %d, want 2", len(list))
	}
	if list[0].Date != "2025-02-21" || list[1].Date != "2025-02-20" {
		t.Errorf("dates = %s, %s; want newest first", list[0].Date, list[1].Date)
	}
}

func TestCompletionCompletedDates(t *testing.T) {
	db := setupTestDB(t)
	cs := NewCompletionStore(db)
	ctx := context.Background()
	u := createTestUser(t, db, "alice@example.com")
	h := createTestHabit(t, db, u.ID, "Read")

	cs.Upsert(ctx, u.ID, h.ID, "2025-02-19", true)
	cs.Upsert(ctx, u.ID, h.ID, "2025-02-20", false)
	cs.Upsert(ctx, u.ID, h.ID, "2025-02-21", true)

	dates, err := cs.CompletedDates(ctx, u.ID, h.ID)
	if err != nil {
		t.Fatalf("completed dates: %v", err)
	}
	want := []string{"2025-02-21", "2025-02-19"}
	if len(dates) != len(want) {
		t.Fatalf("dates = %v, want %v", dates, want)
	}
	for i := range want {
		if dates[i] != want[i] {
			t.Errorf("dates[%d] = %s, want %s", i, dates[i], want[i])
		}
	}
}

func TestCompletionPrepareDayIdempotent(t *testing.T) {
	db := setupTestDB(t)
	cs := NewCompletionStore(db)
	ctx := context.Background()
	alice := createTestUser(t, db, "alice@example.com")
	bob := createTestUser(t, db, "bob@example.com")
	read := createTestHabit(t, db, alice.ID, "Read")
	run := createTestHabit(t, db, alice.ID, "Run")
	swim := createTestHabit(t, db, bob.ID, "Swim")

	// An existing record must survive untouched.
	if _, err := cs.Upsert(ctx, alice.ID, run.ID, "2025-02-21", true); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	created, err := cs.PrepareDay(ctx, "2025-02-21")
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}
	if created != 2 {
		t.Errorf("created = %d, want 2", created)
	}

	created, err = cs.PrepareDay(ctx, "2025-02-21")
	if err != nil {
		t.Fatalf("prepare again: %v", err)
	}
	if created != 0 {
		t.Errorf("second run created = %d, want 0", created)
	}

	for _, h := range []*model.Habit{read, run, swim} {
		list, err := cs.ListByHabit(ctx, h.ID, "2025-02-21", "2025-02-21")
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(list) != 1 {
			t.Fatalf("habit %s has %d records, want 1", h.Name, len(list))
		}
		if h.ID == run.ID && !list[0].Completed {
			t.Error("prepare overwrote an existing completion")
		}
		if h.ID != run.ID && list[0].Completed {
			t.Errorf("habit %s prepared as completed", h.Name)
		}
	}

	swimList, _ := cs.ListByHabit(ctx, swim.ID, "", "")
	if swimList[0].UserID != bob.ID {
		t.Errorf("prepared user = %s, want %s", swimList[0].UserID, bob.ID)
	}

	readList, _ := cs.ListByHabit(ctx, read.ID, "", "")
	ids := map[string]bool{}
	for _, c := range append(readList, swimList...) {
		id, err := uuid.Parse(c.ID)
		if err != nil || id.Version() != 4 || id.String() != c.ID {
			t.Errorf("prepared id %q is not a canonical v4 uuid", c.ID)
		}
		ids[c.ID] = true
	}
	if len(ids) != 2 {
		t.Errorf("prepared ids = %v, want 2 distinct", ids)
	}
}

func TestCompletionDelete(t *testing.T) {
	db := setupTestDB(t)
	cs := NewCompletionStore(db)
	ctx := context.Background()
	u := createTestUser(t, db, "alice@example.com")
	h := createTestHabit(t, db, u.ID, "Read")

	c, _ := cs.Upsert(ctx, u.ID, h.ID, "2025-02-21", true)
	deleted, err := cs.Delete(ctx, c.ID)
	if err != nil || !deleted {
		t.Fatalf("delete = %v, %v; want true, nil", deleted, err)
	}
	deleted, err = cs.Delete(ctx, c.ID)
	if err != nil || deleted {
		t.Fatalf("second delete = %v, %v; want false, nil", deleted, err)
	}
}

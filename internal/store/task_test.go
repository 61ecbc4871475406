package store

import (
	"context"
	"testing"

	"github.com/dukerupert/habitd/internal/model"
)

func TestTaskCRUD(t *testing.T) {
	db := setupTestDB(t)
	ts := NewTaskStore(db)
	ctx := context.Background()
	u := createTestUser(t, db, "alice@example.com")

	task, err := ts.Create(ctx, u.ID, "Read a book", "War and Peace", model.TaskModePartial)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if task.CompletionMode != model.TaskModePartial {
		t.Errorf("mode = %s, want PARTIAL", task.CompletionMode)
	}

	list, err := ts.ListByUser(ctx, u.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("len = %d, want 1", len(list))
	}

	mode := model.TaskModeAny
	updated, err := ts.Update(ctx, task.ID, model.TaskPatch{CompletionMode: &mode})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.CompletionMode != model.TaskModeAny || updated.Title != "Read a book" {
		t.Errorf("updated = %+v", updated)
	}

	deleted, err := ts.Delete(ctx, task.ID)
	if err != nil || !deleted {
		t.Fatalf("delete = %v, %v", deleted, err)
	}
}

func TestSubTaskCascade(t *testing.T) {
	db := setupTestDB(t)
	ts := NewTaskStore(db)
	ctx := context.Background()
	u := createTestUser(t, db, "alice@example.com")

	task, _ := ts.Create(ctx, u.ID, "Read a book", "", model.TaskModeAll)
	st, err := ts.CreateSubTask(ctx, task.ID, "Chapter 1", "", model.SubTaskModeFull)
	if err != nil {
		t.Fatalf("create sub-task: %v", err)
	}

	title := "Chapter One"
	updated, err := ts.UpdateSubTask(ctx, st.ID, model.TaskPatch{Title: &title})
	if err != nil {
		t.Fatalf("update sub-task: %v", err)
	}
	if updated.Title != title {
		t.Errorf("title = %q, want %q", updated.Title, title)
	}

	subs, err := ts.ListSubTasks(ctx, task.ID)
	if err != nil || len(subs) != 1 {
		t.Fatalf("list sub-tasks = %v, %v", subs, err)
	}

	if _, err := ts.Delete(ctx, task.ID); err != nil {
		t.Fatalf("delete task: %v", err)
	}
	got, err := ts.GetSubTaskByID(ctx, st.ID)
	if err != nil {
		t.Fatalf("get sub-task: %v", err)
	}
	if got != nil {
		t.Error("expected sub-task removed with task")
	}
}

func TestTaskDetailStatuses(t *testing.T) {
	db := setupTestDB(t)
	ts := NewTaskStore(db)
	ctx := context.Background()
	u := createTestUser(t, db, "alice@example.com")
	task, _ := ts.Create(ctx, u.ID, "Read", "", model.TaskModeAll)
	st, _ := ts.CreateSubTask(ctx, task.ID, "Chapter 1", "", model.SubTaskModeFull)

	taskDetails := NewTaskDetailStore(db, OwnerTask)
	subDetails := NewTaskDetailStore(db, OwnerSubTask)

	if _, err := taskDetails.UpsertStatus(ctx, task.ID, "2025-02-21", model.StatusPartial); err != nil {
		t.Fatalf("upsert task status: %v", err)
	}
	status, err := taskDetails.UpsertStatus(ctx, task.ID, "2025-02-21", model.StatusTrue)
	if err != nil {
		t.Fatalf("upsert task status again: %v", err)
	}
	if status.CompletionValue != model.StatusTrue || status.OwnerID != task.ID {
		t.Errorf("status = %+v", status)
	}

	if _, err := subDetails.UpsertStatus(ctx, st.ID, "2025-02-21", model.StatusFalse); err != nil {
		t.Fatalf("upsert sub-task status: %v", err)
	}

	statuses, err := taskDetails.ListStatuses(ctx, task.ID)
	if err != nil || len(statuses) != 1 {
		t.Fatalf("task statuses = %v, %v", statuses, err)
	}
	subStatuses, err := subDetails.ListStatuses(ctx, st.ID)
	if err != nil || len(subStatuses) != 1 {
		t.Fatalf("sub-task statuses = %v, %v", subStatuses, err)
	}
}

func TestTaskDetailAttributes(t *testing.T) {
	db := setupTestDB(t)
	ts := NewTaskStore(db)
	ctx := context.Background()
	u := createTestUser(t, db, "alice@example.com")
	task, _ := ts.Create(ctx, u.ID, "Read", "", model.TaskModeAll)
	details := NewTaskDetailStore(db, OwnerTask)

	if _, err := details.SetAttribute(ctx, task.ID, "pages", "5"); err != nil {
		t.Fatalf("set attribute: %v", err)
	}
	a, err := details.SetAttribute(ctx, task.ID, "pages", "10")
	if err != nil {
		t.Fatalf("replace attribute: %v", err)
	}
	if a.Value != "10" {
		t.Errorf("value = %q, want 10", a.Value)
	}
	if _, err := details.SetAttribute(ctx, task.ID, "author", "Tolstoy"); err != nil {
		t.Fatalf("set attribute: %v", err)
	}

	attrs, err := details.ListAttributes(ctx, task.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(attrs) != 2 || attrs[0].Key != "author" {
		t.Fatalf("attrs = %+v", attrs)
	}

	deleted, err := details.DeleteAttribute(ctx, task.ID, "pages")
	if err != nil || !deleted {
		t.Fatalf("delete = %v, %v", deleted, err)
	}
	deleted, err = details.DeleteAttribute(ctx, task.ID, "pages")
	if err != nil || deleted {
		t.Fatalf("second delete = %v, %v", deleted, err)
	}
}

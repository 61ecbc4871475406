package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dukerupert/habitd/internal/model"
)

type TaskStore struct {
	db *sql.DB
}

func NewTaskStore(db *sql.DB) *TaskStore {
	return &TaskStore{db: db}
}

// --- Task methods ---

func scanTask(scanner interface{ Scan(...any) error }) (*model.Task, error) {
	var t model.Task
	err := scanner.Scan(&t.ID, &t.UserID, &t.Title, &t.Description, &t.CompletionMode, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

const taskCols = `id, user_id, title, description, completion_mode, created_at, updated_at`

func (s *TaskStore) Create(ctx context.Context, userID, title, description, mode string) (*model.Task, error) {
	id := newID()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tasks (id, user_id, title, description, completion_mode) VALUES (?, ?, ?, ?, ?)`,
		id, userID, title, description, mode,
	)
	if err != nil {
		return nil, fmt.Errorf("insert task: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *TaskStore) GetByID(ctx context.Context, id string) (*model.Task, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+taskCols+` FROM tasks WHERE id = ?`, id)
	t, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return t, nil
}

func (s *TaskStore) ListByUser(ctx context.Context, userID string) ([]model.Task, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+taskCols+` FROM tasks WHERE user_id = ? ORDER BY created_at ASC, title ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []model.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}

func taskSet(p model.TaskPatch) setClause {
	var set setClause
	if p.Title != nil {
		set.add("title", *p.Title)
	}
	if p.Description != nil {
		set.add("description", *p.Description)
	}
	if p.CompletionMode != nil {
		set.add("completion_mode", *p.CompletionMode)
	}
	return set
}

func (s *TaskStore) Update(ctx context.Context, id string, p model.TaskPatch) (*model.Task, error) {
	set := taskSet(p)
	if set.empty() {
		return s.GetByID(ctx, id)
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET `+set.sql()+` WHERE id = ?`,
		append(set.args, id)...,
	)
	if err != nil {
		return nil, fmt.Errorf("update task: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *TaskStore) Delete(ctx context.Context, id string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete task: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// --- Sub-task methods ---

func scanSubTask(scanner interface{ Scan(...any) error }) (*model.SubTask, error) {
	var st model.SubTask
	err := scanner.Scan(&st.ID, &st.TaskID, &st.Title, &st.Description, &st.CompletionMode, &st.CreatedAt, &st.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &st, nil
}

const subTaskCols = `id, task_id, title, description, completion_mode, created_at, updated_at`

func (s *TaskStore) CreateSubTask(ctx context.Context, taskID, title, description, mode string) (*model.SubTask, error) {
	id := newID()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sub_tasks (id, task_id, title, description, completion_mode) VALUES (?, ?, ?, ?, ?)`,
		id, taskID, title, description, mode,
	)
	if err != nil {
		return nil, fmt.Errorf("insert sub-task: %w", err)
	}
	return s.GetSubTaskByID(ctx, id)
}

func (s *TaskStore) GetSubTaskByID(ctx context.Context, id string) (*model.SubTask, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+subTaskCols+` FROM sub_tasks WHERE id = ?`, id)
	st, err := scanSubTask(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get sub-task: %w", err)
	}
	return st, nil
}

func (s *TaskStore) ListSubTasks(ctx context.Context, taskID string) ([]model.SubTask, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+subTaskCols+` FROM sub_tasks WHERE task_id = ? ORDER BY created_at ASC, title ASC`,
		taskID,
	)
	if err != nil {
		return nil, fmt.Errorf("list sub-tasks: %w", err)
	}
	defer rows.Close()

	var subTasks []model.SubTask
	for rows.Next() {
		st, err := scanSubTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan sub-task: %w", err)
		}
		subTasks = append(subTasks, *st)
	}
	return subTasks, rows.Err()
}

func (s *TaskStore) UpdateSubTask(ctx context.Context, id string, p model.TaskPatch) (*model.SubTask, error) {
	set := taskSet(p)
	if set.empty() {
		return s.GetSubTaskByID(ctx, id)
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE sub_tasks SET `+set.sql()+` WHERE id = ?`,
		append(set.args, id)...,
	)
	if err != nil {
		return nil, fmt.Errorf("update sub-task: %w", err)
	}
	return s.GetSubTaskByID(ctx, id)
}

func (s *TaskStore) DeleteSubTask(ctx context.Context, id string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM sub_tasks WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete sub-task: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// TaskStore handles persistence for the tasks collection.
type TaskStore struct {
	q queryer
}

func NewTaskStore(db *sql.DB) *TaskStore {
	return &TaskStore{q: db}
}

// WithTx returns a TaskStore bound to the given transaction.
func (s *TaskStore) WithTx(tx *sql.Tx) *TaskStore {
	return &TaskStore{q: tx}
}

// Create persists a new task.
func (s *TaskStore) Create(ctx context.Context, task *Task) error {
	doc, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to marshal task: %w", err)
	}
	_, err = s.q.ExecContext(ctx, "INSERT INTO tasks (id, data) VALUES (?, ?)", task.ID, string(doc))
	if err != nil {
		return fmt.Errorf("failed to insert task: %w", err)
	}
	return nil
}

// GetByID retrieves a task by id. Returns ErrNotFound if absent.
func (s *TaskStore) GetByID(ctx context.Context, id string) (*Task, error) {
	row := s.q.QueryRowContext(ctx, "SELECT data FROM tasks WHERE id = ?", id)
	var doc string
	err := row.Scan(&doc)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query task: %w", err)
	}
	var task Task
	if err := json.Unmarshal([]byte(doc), &task); err != nil {
		return nil, fmt.Errorf("failed to unmarshal task: %w", err)
	}
	return &task, nil
}

// Update replaces the task document, conditional on expectedVersion still
// being the stored version. The written document carries expectedVersion+1.
// Returns ErrVersionConflict when a concurrent update got there first and
// ErrNotFound when the task is gone.
func (s *TaskStore) Update(ctx context.Context, task *Task, expectedVersion int64) error {
	task.Version = expectedVersion + 1
	doc, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to marshal task: %w", err)
	}

	res, err := s.q.ExecContext(ctx,
		`UPDATE tasks SET data = ?
		 WHERE id = ? AND json_extract(data, '$.version') = ?`,
		string(doc), task.ID, expectedVersion)
	if err != nil {
		return fmt.Errorf("failed to update task: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if n == 0 {
		// Distinguish a missing task from a stale version.
		if _, getErr := s.GetByID(ctx, task.ID); getErr != nil {
			return getErr
		}
		return ErrVersionConflict
	}
	return nil
}

// Delete removes a task by id. Returns ErrNotFound if absent.
func (s *TaskStore) Delete(ctx context.Context, id string) error {
	res, err := s.q.ExecContext(ctx, "DELETE FROM tasks WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns all tasks ordered by due date ascending.
func (s *TaskStore) List(ctx context.Context) ([]Task, error) {
	rows, err := s.q.QueryContext(ctx,
		"SELECT data FROM tasks ORDER BY json_extract(data, '$.dueDate') ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer rows.Close()

	tasks := []Task{}
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		var task Task
		if err := json.Unmarshal([]byte(doc), &task); err != nil {
			return nil, fmt.Errorf("failed to unmarshal task: %w", err)
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

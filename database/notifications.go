package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// NotificationStore handles persistence for the notifications collection.
type NotificationStore struct {
	q queryer
}

func NewNotificationStore(db *sql.DB) *NotificationStore {
	return &NotificationStore{q: db}
}

// WithTx returns a NotificationStore bound to the given transaction.
func (s *NotificationStore) WithTx(tx *sql.Tx) *NotificationStore {
	return &NotificationStore{q: tx}
}

// Create persists a notification record.
func (s *NotificationStore) Create(ctx context.Context, n *Notification) error {
	doc, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}
	_, err = s.q.ExecContext(ctx,
		"INSERT INTO notifications (id, data) VALUES (?, ?)", n.ID, string(doc))
	if err != nil {
		return fmt.Errorf("failed to insert notification: %w", err)
	}
	return nil
}

// GetByID retrieves a notification by id. Returns ErrNotFound if absent.
func (s *NotificationStore) GetByID(ctx context.Context, id string) (*Notification, error) {
	row := s.q.QueryRowContext(ctx, "SELECT data FROM notifications WHERE id = ?", id)
	var doc string
	err := row.Scan(&doc)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query notification: %w", err)
	}
	var n Notification
	if err := json.Unmarshal([]byte(doc), &n); err != nil {
		return nil, fmt.Errorf("failed to unmarshal notification: %w", err)
	}
	return &n, nil
}

// List returns the most recent notifications, newest first, at most limit.
func (s *NotificationStore) List(ctx context.Context, limit int) ([]Notification, error) {
	rows, err := s.q.QueryContext(ctx,
		"SELECT data FROM notifications ORDER BY rowid DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query notifications: %w", err)
	}
	defer rows.Close()

	notifications := []Notification{}
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		var n Notification
		if err := json.Unmarshal([]byte(doc), &n); err != nil {
			return nil, fmt.Errorf("failed to unmarshal notification: %w", err)
		}
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}

// MarkRead flips the read flag to true. Marking an already-read record is a
// no-op success. Returns the updated record, ErrNotFound if absent.
func (s *NotificationStore) MarkRead(ctx context.Context, id string) (*Notification, error) {
	n, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if n.Read {
		return n, nil
	}
	n.Read = true
	doc, err := json.Marshal(n)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal notification: %w", err)
	}
	if _, err := s.q.ExecContext(ctx,
		"UPDATE notifications SET data = ? WHERE id = ?", string(doc), id); err != nil {
		return nil, fmt.Errorf("failed to update notification: %w", err)
	}
	return n, nil
}

// Delete removes a notification by id. Returns ErrNotFound if absent.
func (s *NotificationStore) Delete(ctx context.Context, id string) error {
	res, err := s.q.ExecContext(ctx, "DELETE FROM notifications WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete notification: %w", err)
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

// Prune evicts the oldest notifications so that at most keep remain. The
// retention cap keeps the feed a bounded log.
func (s *NotificationStore) Prune(ctx context.Context, keep int) error {
	_, err := s.q.ExecContext(ctx,
		`DELETE FROM notifications WHERE rowid NOT IN (
			SELECT rowid FROM notifications ORDER BY rowid DESC LIMIT ?
		)`, keep)
	if err != nil {
		return fmt.Errorf("failed to prune notifications: %w", err)
	}
	return nil
}

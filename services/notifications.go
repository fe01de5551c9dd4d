package services

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/taskflow-app/taskflow/database"
)

// DefaultFeedLimit is how many notifications the feed returns by default.
const DefaultFeedLimit = 50

// NotificationService is the activity recorder: it persists notification
// records and keeps the feed a bounded log.
type NotificationService struct {
	store     *database.NotificationStore
	retention int
}

func NewNotificationService(store *database.NotificationStore, retention int) *NotificationService {
	return &NotificationService{store: store, retention: retention}
}

// Record assigns identity and timestamp to the notification and persists
// it. When tx is non-nil the write joins that transaction, so a failed task
// mutation never leaves a stray activity record (and vice versa). The
// retention cap is enforced in the same write.
func (s *NotificationService) Record(ctx context.Context, tx *sql.Tx, n *database.Notification) error {
	store := s.store
	if tx != nil {
		store = store.WithTx(tx)
	}

	n.ID = uuid.NewString()
	n.Timestamp = time.Now().UTC()
	n.Read = false

	if err := store.Create(ctx, n); err != nil {
		return err
	}
	return store.Prune(ctx, s.retention)
}

// List returns the most recent notifications, newest first. A limit of 0
// means DefaultFeedLimit.
func (s *NotificationService) List(ctx context.Context, limit int) ([]database.Notification, error) {
	if limit <= 0 {
		limit = DefaultFeedLimit
	}
	return s.store.List(ctx, limit)
}

// MarkRead flips a notification to read. Idempotent: re-marking a read
// record succeeds without change.
func (s *NotificationService) MarkRead(ctx context.Context, id string) (*database.Notification, error) {
	return s.store.MarkRead(ctx, id)
}

// Delete removes a notification by id.
func (s *NotificationService) Delete(ctx context.Context, id string) error {
	return s.store.Delete(ctx, id)
}

package repository

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/xenking/gadget-cartel/internal/domain/notification"
)

const (
	insertNotificationSQL = `INSERT INTO notifications (id, user_id, title, message, type)
		VALUES ($1, $2, $3, $4, $5)`

	listNotificationsSQL = `SELECT id, user_id, title, message, type, read, created_at
		FROM notifications WHERE user_id = $1 AND ($2 = FALSE OR read = FALSE)
		ORDER BY created_at DESC`

	countUnreadNotificationsSQL = `SELECT COUNT(*) FROM notifications
		WHERE user_id = $1 AND read = FALSE`

	markNotificationReadSQL = `UPDATE notifications SET read = TRUE
		WHERE id = $1 AND user_id = $2`

	markAllNotificationsReadSQL = `UPDATE notifications SET read = TRUE
		WHERE user_id = $1 AND read = FALSE`

	deleteNotificationSQL = `DELETE FROM notifications WHERE id = $1 AND user_id = $2`
)

var _ notification.Store = (*NotificationRepository)(nil)

// NotificationRepository implements notification.Store backed by PostgreSQL.
type NotificationRepository struct {
	db *DB
}

// NewNotificationRepository returns a NotificationRepository on the given DB.
func NewNotificationRepository(db *DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Insert stores a new notification.
func (r *NotificationRepository) Insert(ctx context.Context, n *notification.Notification) error {
	_, err := r.db.q(ctx).Exec(ctx, insertNotificationSQL, n.ID, n.UserID, n.Title, n.Message, n.Type)
	if err != nil {
		return errors.Wrapf(err, "inserting notification for user %q", n.UserID)
	}
	return nil
}

// ListForUser returns the user's notifications, newest first.
func (r *NotificationRepository) ListForUser(ctx context.Context, userID string, unreadOnly bool) ([]notification.Notification, error) {
	rows, err := r.db.q(ctx).Query(ctx, listNotificationsSQL, userID, unreadOnly)
	if err != nil {
		return nil, errors.Wrap(err, "listing notifications")
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (notification.Notification, error) {
		var n notification.Notification
		err := row.Scan(&n.ID, &n.UserID, &n.Title, &n.Message, &n.Type, &n.IsRead, &n.CreatedAt)
		return n, err
	})
}

// CountUnread returns how many unread notifications the user has.
func (r *NotificationRepository) CountUnread(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.db.q(ctx).QueryRow(ctx, countUnreadNotificationsSQL, userID).Scan(&count)
	if err != nil {
		return 0, errors.Wrap(err, "counting unread notifications")
	}
	return count, nil
}

// MarkRead marks one of the user's notifications read. ErrNotFound when the
// row does not exist or is owned by someone else.
func (r *NotificationRepository) MarkRead(ctx context.Context, id, userID string) error {
	tag, err := r.db.q(ctx).Exec(ctx, markNotificationReadSQL, id, userID)
	if err != nil {
		return errors.Wrapf(err, "marking notification %q read", id)
	}
	if tag.RowsAffected() == 0 {
		return notification.ErrNotFound
	}
	return nil
}

// MarkAllRead marks all of the user's notifications read.
func (r *NotificationRepository) MarkAllRead(ctx context.Context, userID string) error {
	_, err := r.db.q(ctx).Exec(ctx, markAllNotificationsReadSQL, userID)
	if err != nil {
		return errors.Wrap(err, "marking notifications read")
	}
	return nil
}

// Delete removes one of the user's notifications.
func (r *NotificationRepository) Delete(ctx context.Context, id, userID string) error {
	tag, err := r.db.q(ctx).Exec(ctx, deleteNotificationSQL, id, userID)
	if err != nil {
		return errors.Wrapf(err, "deleting notification %q", id)
	}
	if tag.RowsAffected() == 0 {
		return notification.ErrNotFound
	}
	return nil
}

// Package notification stores and serves in-app notifications. The service
// doubles as the Notifier collaborator other domains fire on order events.
package notification

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
)

// ErrNotFound is returned when a notification does not exist or belongs to
// another user.
var ErrNotFound = errors.New("notification not found")

// Notification is a single in-app message for a user.
type Notification struct {
	ID        string
	UserID    string
	Title     string
	Message   string
	Type      string
	IsRead    bool
	CreatedAt time.Time
}

// Store provides notification persistence. Mutations scoped by userID must
// affect only rows owned by that user and return ErrNotFound otherwise.
type Store interface {
	Insert(ctx context.Context, n *Notification) error
	// ListForUser returns the user's notifications, newest first.
	ListForUser(ctx context.Context, userID string, unreadOnly bool) ([]Notification, error)
	CountUnread(ctx context.Context, userID string) (int, error)
	MarkRead(ctx context.Context, id, userID string) error
	MarkAllRead(ctx context.Context, userID string) error
	Delete(ctx context.Context, id, userID string) error
}

// Service implements the notification operations. It satisfies
// order.Notifier, so checkout and fulfillment can push messages through it.
type Service struct {
	store Store
}

// NewService creates a notification Service.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// Notify creates a notification for the user.
func (s *Service) Notify(ctx context.Context, userID, title, message, typ string) error {
	n := &Notification{
		ID:      uuid.New().String(),
		UserID:  userID,
		Title:   title,
		Message: message,
		Type:    typ,
	}
	return errors.Wrap(s.store.Insert(ctx, n), "insert notification")
}

// List returns the user's notifications together with the unread count.
func (s *Service) List(ctx context.Context, userID string, unreadOnly bool) ([]Notification, int, error) {
	items, err := s.store.ListForUser(ctx, userID, unreadOnly)
	if err != nil {
		return nil, 0, errors.Wrap(err, "list notifications")
	}
	unread, err := s.store.CountUnread(ctx, userID)
	if err != nil {
		return nil, 0, errors.Wrap(err, "count unread")
	}
	return items, unread, nil
}

// MarkRead marks one of the user's notifications as read.
func (s *Service) MarkRead(ctx context.Context, id, userID string) error {
	return s.store.MarkRead(ctx, id, userID)
}

// MarkAllRead marks every notification of the user as read.
func (s *Service) MarkAllRead(ctx context.Context, userID string) error {
	return errors.Wrap(s.store.MarkAllRead(ctx, userID), "mark all read")
}

// Remove deletes one of the user's notifications.
func (s *Service) Remove(ctx context.Context, id, userID string) error {
	return s.store.Delete(ctx, id, userID)
}

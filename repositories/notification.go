package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"chat-hub/domain"
	"chat-hub/errors"
)

type NotificationRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewNotificationRepository(db *badger.DB, log *slog.Logger) NotificationRepository {
	return NotificationRepository{db: db, log: log}
}

// notificationKey sorts a user's notifications chronologically, same
// padding trick as message keys.
func notificationKey(n domain.Notification) []byte {
	return []byte(fmt.Sprintf("notif:%s:%019d:%s", n.UserID, n.CreatedAt.UnixNano(), n.ID))
}

func (n NotificationRepository) CreateNotification(_ context.Context, target domain.UserID,
	kind domain.NotificationKind, title, body string) (domain.Notification, error) {
	notification := domain.Notification{
		ID:        uuid.New(),
		UserID:    target,
		Kind:      kind,
		Title:     title,
		Body:      body,
		CreatedAt: time.Now().UTC(),
	}
	payload, err := json.Marshal(notification)
	if err != nil {
		return domain.Notification{}, fmt.Errorf("marshal notification: %w", err)
	}
	err = n.db.Update(func(txn *badger.Txn) error {
		return txn.Set(notificationKey(notification), payload)
	})
	if err != nil {
		return domain.Notification{}, err
	}
	return notification, nil
}

// GetNotifications returns the user's notifications, newest first.
func (n NotificationRepository) GetNotifications(_ context.Context, target domain.UserID, limit int) ([]domain.Notification, error) {
	var notifications []domain.Notification
	err := n.db.View(func(txn *badger.Txn) error {
		prefix := []byte(fmt.Sprintf("notif:%s:", target))
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		seekKey := append(append([]byte{}, prefix...), []byte("9999999999999999999")...)
		for it.Seek(seekKey); it.ValidForPrefix(prefix); it.Next() {
			if limit > 0 && len(notifications) == limit {
				break
			}
			err := it.Item().Value(func(value []byte) error {
				var notification domain.Notification
				if err := json.Unmarshal(value, &notification); err != nil {
					return err
				}
				notifications = append(notifications, notification)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return notifications, nil
}

func (n NotificationRepository) UnreadCount(ctx context.Context, target domain.UserID) (int, error) {
	notifications, err := n.GetNotifications(ctx, target, 0)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, notification := range notifications {
		if !notification.IsRead {
			count++
		}
	}
	return count, nil
}

// MarkRead flags one notification as read. The id alone is enough
// because keys embed the owner, so one user can never flip another's.
func (n NotificationRepository) MarkRead(ctx context.Context, target domain.UserID, notificationID uuid.UUID) error {
	notifications, err := n.GetNotifications(ctx, target, 0)
	if err != nil {
		return err
	}
	for _, notification := range notifications {
		if notification.ID != notificationID {
			continue
		}
		now := time.Now().UTC()
		notification.IsRead = true
		notification.ReadAt = &now
		payload, err := json.Marshal(notification)
		if err != nil {
			return fmt.Errorf("marshal notification: %w", err)
		}
		return n.db.Update(func(txn *badger.Txn) error {
			return txn.Set(notificationKey(notification), payload)
		})
	}
	return fmt.Errorf("notification %s: %w", notificationID, errors.ErrNotFound)
}

func (n NotificationRepository) MarkAllRead(ctx context.Context, target domain.UserID) error {
	notifications, err := n.GetNotifications(ctx, target, 0)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	return n.db.Update(func(txn *badger.Txn) error {
		for _, notification := range notifications {
			if notification.IsRead {
				continue
			}
			notification.IsRead = true
			notification.ReadAt = &now
			payload, err := json.Marshal(notification)
			if err != nil {
				return fmt.Errorf("marshal notification: %w", err)
			}
			if err := txn.Set(notificationKey(notification), payload); err != nil {
				return err
			}
		}
		return nil
	})
}

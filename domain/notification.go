package domain

import (
	"time"

	"github.com/google/uuid"
)

type NotificationKind string

const (
	NotificationMessage  NotificationKind = "message"
	NotificationMention  NotificationKind = "mention"
	NotificationReply    NotificationKind = "reply"
	NotificationReaction NotificationKind = "reaction"
)

// Notification is a persisted alert for a user, created when live
// delivery alone is not enough (offline recipient, mention).
type Notification struct {
	ID        uuid.UUID        `json:"id"`
	UserID    UserID           `json:"userId"`
	Kind      NotificationKind `json:"kind"`
	Title     string           `json:"title"`
	Body      string           `json:"body"`
	IsRead    bool             `json:"isRead"`
	ReadAt    *time.Time       `json:"readAt,omitempty"`
	CreatedAt time.Time        `json:"createdAt"`
}

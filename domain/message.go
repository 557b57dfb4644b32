// Package domain contains core concepts of the chat system.
// Messages are immutable once created and validated by the domain.
package domain

import (
	"time"

	"github.com/google/uuid"
)

type Priority string

const (
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Mention records one user referenced inside a message body.
type Mention struct {
	UserID      UserID `json:"userId"`
	DisplayName string `json:"displayName"`
}

// ReplyPreview carries a short excerpt of the message being replied to
// so clients can render the quote without a second lookup.
type ReplyPreview struct {
	MessageID uuid.UUID `json:"messageId"`
	SenderID  UserID    `json:"senderId"`
	Preview   string    `json:"preview"`
}

// Reaction is one emoji applied by one user.
type Reaction struct {
	UserID UserID `json:"userId"`
	Emoji  string `json:"emoji"`
}

// Message represents an immutable chat event. Exactly one of
// CommunityID and RecipientID is set: community messages broadcast to
// a channel, direct messages target a single user's inbox.
type Message struct {
	ID          uuid.UUID     `json:"id"`
	SenderID    UserID        `json:"senderId"`
	SenderName  string        `json:"senderName"`
	CommunityID string        `json:"communityId,omitempty"`
	RecipientID UserID        `json:"recipientId,omitempty"`
	Content     string        `json:"content"`
	Mentions    []Mention     `json:"mentions,omitempty"`
	ReplyTo     *ReplyPreview `json:"replyTo,omitempty"`
	Priority    Priority      `json:"priority"`
	Reactions   []Reaction    `json:"reactions,omitempty"`
	ReadBy      []UserID      `json:"readBy,omitempty"`
	CreatedAt   time.Time     `json:"createdAt"`
}

// Room returns the broadcast scope the message belongs to: the
// community channel for community messages, the recipient's inbox for
// direct ones.
func (m Message) Room() RoomID {
	if m.CommunityID != "" {
		return CommunityRoom(m.CommunityID)
	}
	return InboxRoom(m.RecipientID)
}

func (m Message) IsDirect() bool {
	return m.RecipientID != ""
}

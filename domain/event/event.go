// Package event defines the immutable facts the engine fans out to
// live connections, together with their delivery scope.
package event

import (
	"chat-hub/domain"
)

// Kind is the wire name of an outbound event, matching what clients
// subscribe to.
type Kind string

const (
	KindNewMessage    Kind = "new_message"
	KindReactionAdded Kind = "reaction_added"
	KindTyping        Kind = "user_typing"
	KindStoppedTyping Kind = "user_stopped_typing"
	KindStatusChanged Kind = "user_status_changed"
	KindMentioned     Kind = "mentioned"
	KindMemberJoined  Kind = "member_joined"
	KindNotification  Kind = "notification"
)

// Scope says who an event is for: one room, or an explicit set of
// users (resolved to all of their live connections at dispatch time).
// Exactly one of the two is populated.
type Scope struct {
	Room  domain.RoomID
	Users []domain.UserID
}

func RoomScope(room domain.RoomID) Scope {
	return Scope{Room: room}
}

func UserScope(users ...domain.UserID) Scope {
	return Scope{Users: users}
}

func (s Scope) IsRoom() bool {
	return s.Room != ""
}

// DomainEvent is a fact produced after a successful write (or an
// ephemeral signal), carrying its own delivery scope. Events are
// immutable and never persisted by the engine.
type DomainEvent interface {
	Kind() Kind
	DeliveryScope() Scope
}

type MessageCreated struct {
	Message domain.Message
}

func (e MessageCreated) Kind() Kind { return KindNewMessage }

// DeliveryScope routes community messages to their channel and direct
// messages to both participants, so every one of the sender's own
// connections also sees the message.
func (e MessageCreated) DeliveryScope() Scope {
	if e.Message.IsDirect() {
		return UserScope(e.Message.SenderID, e.Message.RecipientID)
	}
	return RoomScope(e.Message.Room())
}

type ReactionAdded struct {
	MessageID   string
	CommunityID string
	SenderID    domain.UserID
	RecipientID domain.UserID
	ReactedBy   domain.UserID
	Emoji       string
	Reactions   []domain.Reaction
}

func (e ReactionAdded) Kind() Kind { return KindReactionAdded }

func (e ReactionAdded) DeliveryScope() Scope {
	if e.CommunityID != "" {
		return RoomScope(domain.CommunityRoom(e.CommunityID))
	}
	return UserScope(e.SenderID, e.RecipientID)
}

type TypingStarted struct {
	UserID   domain.UserID
	UserName string
	Room     domain.RoomID
}

func (e TypingStarted) Kind() Kind          { return KindTyping }
func (e TypingStarted) DeliveryScope() Scope { return RoomScope(e.Room) }

type TypingStopped struct {
	UserID domain.UserID
	Room   domain.RoomID
}

func (e TypingStopped) Kind() Kind          { return KindStoppedTyping }
func (e TypingStopped) DeliveryScope() Scope { return RoomScope(e.Room) }

type StatusChanged struct {
	UserID domain.UserID
	Status domain.Status
	Room   domain.RoomID
}

func (e StatusChanged) Kind() Kind          { return KindStatusChanged }
func (e StatusChanged) DeliveryScope() Scope { return RoomScope(e.Room) }

// MemberJoined announces a user joining a community channel. It is
// scoped to the community's persisted member list rather than the
// room, so members who have not opened the channel still learn of it.
type MemberJoined struct {
	CommunityID string
	UserID      domain.UserID
	UserName    string
	Members     []domain.UserID
}

func (e MemberJoined) Kind() Kind          { return KindMemberJoined }
func (e MemberJoined) DeliveryScope() Scope { return UserScope(e.Members...) }

type Mentioned struct {
	Message     domain.Message
	MentionedBy string
	Target      domain.UserID
}

func (e Mentioned) Kind() Kind          { return KindMentioned }
func (e Mentioned) DeliveryScope() Scope { return UserScope(e.Target) }

type NotificationCreated struct {
	Notification domain.Notification
}

func (e NotificationCreated) Kind() Kind { return KindNotification }

func (e NotificationCreated) DeliveryScope() Scope {
	return UserScope(e.Notification.UserID)
}

package server

import (
	"time"

	"github.com/go-playground/validator/v10"

	"chat-hub/domain"
	"chat-hub/domain/event"
)

var validate = validator.New()

// ClientEvent is the inbound envelope. Kind identifies the operation
// and the target scope is unambiguous: community ids and recipient ids
// never share a field.
type ClientEvent struct {
	Kind string `json:"kind" validate:"required,oneof=send_message add_reaction typing_start typing_stop update_status mark_read join_communities leave_community"`

	CommunityID  string   `json:"communityId,omitempty"`
	CommunityIDs []string `json:"communityIds,omitempty"`
	RecipientID  string   `json:"recipientId,omitempty"`

	Content  string   `json:"content,omitempty" validate:"max=4000"`
	Mentions []string `json:"mentions,omitempty"`
	ReplyTo  string   `json:"replyTo,omitempty"`
	Priority string   `json:"priority,omitempty" validate:"omitempty,oneof=normal high urgent"`

	MessageID string `json:"messageId,omitempty"`
	Emoji     string `json:"emoji,omitempty"`
	Status    string `json:"status,omitempty" validate:"omitempty,oneof=online offline away busy"`
}

// room maps the event's target fields to a broadcast scope for typing
// signals: the community channel, or the recipient's inbox for direct
// conversations.
func (e ClientEvent) room() domain.RoomID {
	if e.CommunityID != "" {
		return domain.CommunityRoom(e.CommunityID)
	}
	return domain.InboxRoom(domain.UserID(e.RecipientID))
}

// ServerEvent is the outbound envelope. Every delivered event carries
// enough to attribute it to a room or a direct conversation.
type ServerEvent struct {
	Kind    event.Kind    `json:"kind"`
	Room    domain.RoomID `json:"room,omitempty"`
	Payload any           `json:"payload"`
}

type typingPayload struct {
	UserID   domain.UserID `json:"userId"`
	UserName string        `json:"userName,omitempty"`
}

type statusPayload struct {
	UserID domain.UserID `json:"userId"`
	Status domain.Status `json:"status"`
}

type reactionPayload struct {
	MessageID string            `json:"messageId"`
	UserID    domain.UserID     `json:"userId"`
	Emoji     string            `json:"emoji"`
	Reactions []domain.Reaction `json:"reactions"`
}

type memberJoinedPayload struct {
	CommunityID string        `json:"communityId"`
	UserID      domain.UserID `json:"userId"`
	UserName    string        `json:"userName,omitempty"`
}

type mentionPayload struct {
	Message     domain.Message `json:"message"`
	MentionedBy string         `json:"mentionedBy"`
}

type ackPayload struct {
	Success      bool      `json:"success"`
	MessageID    string    `json:"messageId,omitempty"`
	CommunityIDs []string  `json:"communityIds,omitempty"`
	CommunityID  string    `json:"communityId,omitempty"`
	At           time.Time `json:"at,omitempty"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// toWire translates an engine event into its outbound envelope.
func toWire(e event.DomainEvent) ServerEvent {
	out := ServerEvent{Kind: e.Kind()}
	if scope := e.DeliveryScope(); scope.IsRoom() {
		out.Room = scope.Room
	}

	switch evt := e.(type) {
	case event.MessageCreated:
		out.Room = evt.Message.Room()
		out.Payload = evt.Message
	case event.ReactionAdded:
		out.Payload = reactionPayload{
			MessageID: evt.MessageID,
			UserID:    evt.ReactedBy,
			Emoji:     evt.Emoji,
			Reactions: evt.Reactions,
		}
	case event.TypingStarted:
		out.Payload = typingPayload{UserID: evt.UserID, UserName: evt.UserName}
	case event.TypingStopped:
		out.Payload = typingPayload{UserID: evt.UserID}
	case event.StatusChanged:
		out.Payload = statusPayload{UserID: evt.UserID, Status: evt.Status}
	case event.MemberJoined:
		out.Room = domain.CommunityRoom(evt.CommunityID)
		out.Payload = memberJoinedPayload{CommunityID: evt.CommunityID, UserID: evt.UserID, UserName: evt.UserName}
	case event.Mentioned:
		out.Payload = mentionPayload{Message: evt.Message, MentionedBy: evt.MentionedBy}
	case event.NotificationCreated:
		out.Payload = evt.Notification
	default:
		out.Payload = evt
	}
	return out
}

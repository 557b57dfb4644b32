package runtime

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"chat-hub/domain"
	"chat-hub/domain/event"
	"chat-hub/mocks"
)

// drainEvents empties a connection's outbound queue without blocking.
func drainEvents(conn *Connection) []event.DomainEvent {
	var events []event.DomainEvent
	for {
		select {
		case e := <-conn.Outbound():
			events = append(events, e)
		default:
			return events
		}
	}
}

func kindsOf(events []event.DomainEvent) []event.Kind {
	kinds := make([]event.Kind, 0, len(events))
	for _, e := range events {
		kinds = append(kinds, e.Kind())
	}
	return kinds
}

func TestDispatcher_CommunityFanoutReachesEveryMemberConnection(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	notifier := mocks.NewMockNotificationCreator(ctrl)

	presence := NewPresence()
	membership := NewMembership()
	dispatcher := NewDispatcher(slog.Default(), presence, membership, notifier, 16)

	// Given the sender on two devices and one other member, all in #dev
	alice1 := newConnection("alice", "Alice", 8)
	alice2 := newConnection("alice", "Alice", 8)
	bob := newConnection("bob", "Bob", 8)
	dev := domain.CommunityRoom("dev")
	for _, conn := range []*Connection{alice1, alice2, bob} {
		presence.Register(conn.UserID(), conn)
		membership.Join(conn, dev)
	}

	// And carol, offline, mentioned in the message
	notifier.EXPECT().
		CreateNotification(gomock.Any(), domain.UserID("carol"), domain.NotificationMention,
			gomock.Any(), gomock.Any()).
		Return(domain.Notification{ID: uuid.New(), UserID: "carol"}, nil).
		Times(1)

	msg := domain.Message{
		ID:          uuid.New(),
		SenderID:    "alice",
		SenderName:  "Alice",
		CommunityID: "dev",
		Content:     "hey @carol",
		Mentions:    []domain.Mention{{UserID: "carol", DisplayName: "Carol"}},
		CreatedAt:   time.Now().UTC(),
	}

	// When the message fans out
	dispatcher.Fanout(context.Background(), event.MessageCreated{Message: msg}, nil)

	// Then every member connection received it exactly once,
	// including both of the sender's devices
	req.Equal([]event.Kind{event.KindNewMessage}, kindsOf(drainEvents(alice1)))
	req.Equal([]event.Kind{event.KindNewMessage}, kindsOf(drainEvents(alice2)))
	req.Equal([]event.Kind{event.KindNewMessage}, kindsOf(drainEvents(bob)))
}

func TestDispatcher_OnlineMentionGetsLiveEventAndNotification(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	notifier := mocks.NewMockNotificationCreator(ctrl)

	presence := NewPresence()
	membership := NewMembership()
	dispatcher := NewDispatcher(slog.Default(), presence, membership, notifier, 16)

	alice := newConnection("alice", "Alice", 8)
	bob := newConnection("bob", "Bob", 8)
	dev := domain.CommunityRoom("dev")
	for _, conn := range []*Connection{alice, bob} {
		presence.Register(conn.UserID(), conn)
		membership.Join(conn, dev)
	}

	// Mentions are persisted even for online users
	persisted := domain.Notification{ID: uuid.New(), UserID: "bob", Kind: domain.NotificationMention}
	notifier.EXPECT().
		CreateNotification(gomock.Any(), domain.UserID("bob"), domain.NotificationMention,
			gomock.Any(), gomock.Any()).
		Return(persisted, nil).
		Times(1)

	msg := domain.Message{
		ID:          uuid.New(),
		SenderID:    "alice",
		SenderName:  "Alice",
		CommunityID: "dev",
		Content:     "ping @bob",
		Mentions:    []domain.Mention{{UserID: "bob", DisplayName: "Bob"}},
	}

	dispatcher.Fanout(context.Background(), event.MessageCreated{Message: msg}, nil)

	// Then bob saw the message, the live mention and the stored
	// notification pushed to him
	req.ElementsMatch(
		[]event.Kind{event.KindNewMessage, event.KindMentioned, event.KindNotification},
		kindsOf(drainEvents(bob)))
}

func TestDispatcher_DirectMessageReachesBothParticipants(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	notifier := mocks.NewMockNotificationCreator(ctrl)

	presence := NewPresence()
	membership := NewMembership()
	dispatcher := NewDispatcher(slog.Default(), presence, membership, notifier, 16)

	// Given both participants online, the sender on two devices
	alice1 := newConnection("alice", "Alice", 8)
	alice2 := newConnection("alice", "Alice", 8)
	bob := newConnection("bob", "Bob", 8)
	for _, conn := range []*Connection{alice1, alice2, bob} {
		presence.Register(conn.UserID(), conn)
		membership.Join(conn, domain.InboxRoom(conn.UserID()))
	}

	msg := domain.Message{
		ID:          uuid.New(),
		SenderID:    "alice",
		SenderName:  "Alice",
		RecipientID: "bob",
		Content:     "hi",
	}

	dispatcher.Fanout(context.Background(), event.MessageCreated{Message: msg}, nil)

	// Then the recipient and every sender device got the echo, and no
	// notification was persisted since the recipient is online
	req.Len(drainEvents(alice1), 1)
	req.Len(drainEvents(alice2), 1)
	req.Len(drainEvents(bob), 1)
}

func TestDispatcher_OfflineDirectRecipientGetsNotification(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	notifier := mocks.NewMockNotificationCreator(ctrl)

	presence := NewPresence()
	membership := NewMembership()
	dispatcher := NewDispatcher(slog.Default(), presence, membership, notifier, 16)

	alice := newConnection("alice", "Alice", 8)
	presence.Register("alice", alice)
	membership.Join(alice, domain.InboxRoom("alice"))

	notifier.EXPECT().
		CreateNotification(gomock.Any(), domain.UserID("bob"), domain.NotificationMessage,
			"New message", gomock.Any()).
		Return(domain.Notification{ID: uuid.New(), UserID: "bob"}, nil).
		Times(1)

	msg := domain.Message{
		ID:          uuid.New(),
		SenderID:    "alice",
		SenderName:  "Alice",
		RecipientID: "bob",
		Content:     "are you there?",
	}

	dispatcher.Fanout(context.Background(), event.MessageCreated{Message: msg}, nil)

	// The sender still sees the echo on their own connection
	req.Len(drainEvents(alice), 1)
}

func TestDispatcher_DeadConnectionIsSkippedAndEvicted(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	notifier := mocks.NewMockNotificationCreator(ctrl)

	presence := NewPresence()
	membership := NewMembership()
	dispatcher := NewDispatcher(slog.Default(), presence, membership, notifier, 16)

	evicted := make(chan *Connection, 1)
	dispatcher.OnDeliveryFailure(func(conn *Connection) { evicted <- conn })

	dev := domain.CommunityRoom("dev")
	healthy := newConnection("alice", "Alice", 8)
	dead := newConnection("bob", "Bob", 8)
	for _, conn := range []*Connection{healthy, dead} {
		presence.Register(conn.UserID(), conn)
		membership.Join(conn, dev)
	}
	dead.close()

	msg := domain.Message{ID: uuid.New(), SenderID: "alice", SenderName: "Alice", CommunityID: "dev", Content: "hello"}
	dispatcher.Fanout(context.Background(), event.MessageCreated{Message: msg}, nil)

	// Then the healthy connection got the event and the dead one was
	// handed to the eviction hook
	req.Len(drainEvents(healthy), 1)
	select {
	case conn := <-evicted:
		req.Same(dead, conn)
	case <-time.After(time.Second):
		req.Fail("eviction hook was never invoked")
	}
}

func TestDispatcher_RunDeliversInEnqueueOrder(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	notifier := mocks.NewMockNotificationCreator(ctrl)

	presence := NewPresence()
	membership := NewMembership()
	dispatcher := NewDispatcher(slog.Default(), presence, membership, notifier, 16)

	dev := domain.CommunityRoom("dev")
	bob := newConnection("bob", "Bob", 8)
	presence.Register("bob", bob)
	membership.Join(bob, dev)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = dispatcher.Run(ctx) }()

	// When two signals target the same room back to back
	dispatcher.Dispatch(ctx, event.TypingStarted{UserID: "alice", Room: dev})
	dispatcher.Dispatch(ctx, event.TypingStopped{UserID: "alice", Room: dev})

	// Then they arrive in enqueue order
	req.Eventually(func() bool { return len(bob.outbound) == 2 }, time.Second, 5*time.Millisecond)
	req.Equal(event.KindTyping, (<-bob.Outbound()).Kind())
	req.Equal(event.KindStoppedTyping, (<-bob.Outbound()).Kind())
}

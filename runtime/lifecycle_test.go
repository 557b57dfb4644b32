package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"chat-hub/contract"
	"chat-hub/domain"
	"chat-hub/domain/event"
	"chat-hub/errors"
	"chat-hub/mocks"
	"chat-hub/moderation"
)

type engineFixture struct {
	engine   *Engine
	verifier *mocks.MockAuthVerifier
	store    *mocks.MockDataStore
	notifier *mocks.MockNotificationCreator
}

func newEngineFixture(t *testing.T) engineFixture {
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	verifier := mocks.NewMockAuthVerifier(ctrl)
	store := mocks.NewMockDataStore(ctrl)
	notifier := mocks.NewMockNotificationCreator(ctrl)

	// Connect and Disconnect write status in the background; those
	// writes are best-effort and not what these tests assert on.
	store.EXPECT().UpdateUserStatus(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil).AnyTimes()

	return engineFixture{
		engine:   NewEngine(slog.Default(), verifier, store, notifier, 8, 16),
		verifier: verifier,
		store:    store,
		notifier: notifier,
	}
}

func (f engineFixture) connect(t *testing.T, userID domain.UserID, name string) *Connection {
	f.verifier.EXPECT().
		Verify(gomock.Any(), gomock.Any()).
		Return(contract.Identity{UserID: userID, DisplayName: name}, nil).
		Times(1)

	conn, err := f.engine.Connect(context.Background(), "token-"+string(userID))
	require.NoError(t, err)
	return conn
}

func TestEngine_FailedHandshakeCreatesNoState(t *testing.T) {
	req := require.New(t)
	f := newEngineFixture(t)

	// Given a credential the verifier rejects
	f.verifier.EXPECT().
		Verify(gomock.Any(), "bad-token").
		Return(contract.Identity{}, fmt.Errorf("signature mismatch")).
		Times(1)

	conn, err := f.engine.Connect(context.Background(), "bad-token")

	req.ErrorIs(err, errors.ErrAuthenticationFailed)
	req.Nil(conn)
	req.Zero(f.engine.Presence().Count())
}

func TestEngine_ConnectRegistersAndJoinsInbox(t *testing.T) {
	req := require.New(t)
	f := newEngineFixture(t)

	conn := f.connect(t, "alice", "Alice")

	req.True(f.engine.Presence().IsOnline("alice"))
	req.ElementsMatch([]domain.RoomID{domain.InboxRoom("alice")}, f.engine.membership.RoomsOf(conn))
}

func TestEngine_DisconnectIsIdempotent(t *testing.T) {
	req := require.New(t)
	f := newEngineFixture(t)

	conn := f.connect(t, "alice", "Alice")
	f.engine.Disconnect(conn)
	f.engine.Disconnect(conn)
	f.engine.Disconnect(nil)

	req.False(f.engine.Presence().IsOnline("alice"))
	req.Nil(f.engine.membership.RoomsOf(conn))
	req.True(conn.Closed())
}

func TestEngine_JoinDeniedForNonMember(t *testing.T) {
	req := require.New(t)
	f := newEngineFixture(t)

	conn := f.connect(t, "alice", "Alice")
	f.store.EXPECT().
		IsCommunityMember(gomock.Any(), "private", domain.UserID("alice")).
		Return(false, nil).
		Times(1)

	err := f.engine.RequestJoin(context.Background(), conn, domain.CommunityRoom("private"))

	// Then the room set is untouched and the connection stays up
	req.ErrorIs(err, errors.ErrNotCommunityMember)
	req.ElementsMatch([]domain.RoomID{domain.InboxRoom("alice")}, f.engine.membership.RoomsOf(conn))
	req.False(conn.Closed())
}

func TestEngine_JoinForeignInboxDenied(t *testing.T) {
	req := require.New(t)
	f := newEngineFixture(t)

	conn := f.connect(t, "alice", "Alice")

	err := f.engine.RequestJoin(context.Background(), conn, domain.InboxRoom("bob"))

	req.ErrorIs(err, errors.ErrUnauthorizedRoom)
}

func TestEngine_JoinAnnouncesToPersistedMembers(t *testing.T) {
	req := require.New(t)
	f := newEngineFixture(t)

	conn := f.connect(t, "alice", "Alice")
	f.store.EXPECT().IsCommunityMember(gomock.Any(), "dev", domain.UserID("alice")).Return(true, nil)
	f.store.EXPECT().FindCommunityMembers(gomock.Any(), "dev").Return([]domain.UserID{"alice", "bob"}, nil)

	req.NoError(f.engine.RequestJoin(context.Background(), conn, domain.CommunityRoom("dev")))

	// Then the announcement targets the persisted member list and
	// skips the joiner's own connection
	queued := <-f.engine.dispatcher.deliveries
	joined, ok := queued.evt.(event.MemberJoined)
	req.True(ok)
	req.Equal(domain.UserID("alice"), joined.UserID)
	req.ElementsMatch([]domain.UserID{"alice", "bob"}, joined.Members)
	req.Same(conn, queued.except)
}

func TestEngine_JoinCommunitiesSkipsDeniedIDs(t *testing.T) {
	req := require.New(t)
	f := newEngineFixture(t)

	conn := f.connect(t, "alice", "Alice")
	f.store.EXPECT().IsCommunityMember(gomock.Any(), "dev", domain.UserID("alice")).Return(true, nil)
	f.store.EXPECT().IsCommunityMember(gomock.Any(), "private", domain.UserID("alice")).Return(false, nil)
	f.store.EXPECT().IsCommunityMember(gomock.Any(), "ops", domain.UserID("alice")).Return(true, nil)
	f.store.EXPECT().FindCommunityMembers(gomock.Any(), gomock.Any()).
		Return([]domain.UserID{"alice", "bob"}, nil).AnyTimes()

	joined, err := f.engine.JoinCommunities(context.Background(), conn, []string{"dev", "private", "ops"})

	req.NoError(err)
	req.Equal([]string{"dev", "ops"}, joined)
	req.ElementsMatch(
		[]domain.RoomID{domain.InboxRoom("alice"), domain.CommunityRoom("dev"), domain.CommunityRoom("ops")},
		f.engine.membership.RoomsOf(conn))
}

func TestEngine_SendMessageRequiresExactlyOneTarget(t *testing.T) {
	req := require.New(t)
	f := newEngineFixture(t)
	conn := f.connect(t, "alice", "Alice")

	_, err := f.engine.SendMessage(context.Background(), conn, domain.SendMessageCommand{Content: "hi"})
	req.ErrorIs(err, errors.ErrInvalidClientEvent)

	_, err = f.engine.SendMessage(context.Background(), conn, domain.SendMessageCommand{
		CommunityID: "dev", RecipientID: "bob", Content: "hi",
	})
	req.ErrorIs(err, errors.ErrInvalidClientEvent)
}

func TestEngine_SendMessageToNonMemberCommunityDenied(t *testing.T) {
	req := require.New(t)
	f := newEngineFixture(t)
	conn := f.connect(t, "alice", "Alice")

	f.store.EXPECT().
		IsCommunityMember(gomock.Any(), "private", domain.UserID("alice")).
		Return(false, nil)

	_, err := f.engine.SendMessage(context.Background(), conn, domain.SendMessageCommand{
		CommunityID: "private", Content: "hi",
	})

	req.ErrorIs(err, errors.ErrNotCommunityMember)
}

func TestEngine_SendMessageToBlockingRecipientDenied(t *testing.T) {
	req := require.New(t)
	f := newEngineFixture(t)
	conn := f.connect(t, "alice", "Alice")

	f.store.EXPECT().
		FindUser(gomock.Any(), domain.UserID("bob")).
		Return(domain.User{ID: "bob", BlockedUsers: []domain.UserID{"alice"}}, nil)

	_, err := f.engine.SendMessage(context.Background(), conn, domain.SendMessageCommand{
		RecipientID: "bob", Content: "hi",
	})

	req.ErrorIs(err, errors.ErrRecipientBlocked)
}

func TestEngine_SendMessageStoreFailureSurfaces(t *testing.T) {
	req := require.New(t)
	f := newEngineFixture(t)
	conn := f.connect(t, "alice", "Alice")

	f.store.EXPECT().IsCommunityMember(gomock.Any(), "dev", domain.UserID("alice")).Return(true, nil)
	f.store.EXPECT().
		CreateMessage(gomock.Any(), gomock.Any()).
		Return(domain.Message{}, fmt.Errorf("disk full"))

	_, err := f.engine.SendMessage(context.Background(), conn, domain.SendMessageCommand{
		CommunityID: "dev", Content: "hi",
	})

	req.Error(err)
	req.Contains(err.Error(), "disk full")
}

func TestEngine_SendMessagePersistsMasksAndDispatches(t *testing.T) {
	req := require.New(t)
	f := newEngineFixture(t)

	filter, err := moderation.NewFilter([]string{"badword"}, '*')
	req.NoError(err)
	f.engine.WithModeration(filter)

	conn := f.connect(t, "alice", "Alice")
	f.store.EXPECT().IsCommunityMember(gomock.Any(), "dev", domain.UserID("alice")).Return(true, nil)
	f.store.EXPECT().FindUser(gomock.Any(), domain.UserID("bob")).Return(domain.User{ID: "bob", DisplayName: "Bob"}, nil)

	var persisted domain.Message
	f.store.EXPECT().
		CreateMessage(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, msg domain.Message) (domain.Message, error) {
			persisted = msg
			return msg, nil
		})

	sent, err := f.engine.SendMessage(context.Background(), conn, domain.SendMessageCommand{
		CommunityID: "dev",
		Content:     "this badword stays between us @bob",
		Mentions:    []domain.UserID{"bob"},
	})

	req.NoError(err)
	req.Equal("this ******* stays between us @bob", persisted.Content)
	req.Equal(domain.PriorityNormal, persisted.Priority)
	req.Equal([]domain.Mention{{UserID: "bob", DisplayName: "Bob"}}, persisted.Mentions)
	req.Equal(persisted.ID, sent.ID)
	req.NotEqual(uuid.Nil, sent.ID)
	req.False(sent.CreatedAt.IsZero())

	// And the created event sits in the dispatch queue
	req.Eventually(func() bool { return len(f.engine.dispatcher.deliveries) == 1 },
		time.Second, 5*time.Millisecond)
	queued := <-f.engine.dispatcher.deliveries
	req.Equal(event.KindNewMessage, queued.evt.Kind())
}

func TestEngine_MentionOfUnknownUserDropped(t *testing.T) {
	req := require.New(t)
	f := newEngineFixture(t)
	conn := f.connect(t, "alice", "Alice")

	f.store.EXPECT().IsCommunityMember(gomock.Any(), "dev", domain.UserID("alice")).Return(true, nil)
	f.store.EXPECT().FindUser(gomock.Any(), domain.UserID("ghost")).Return(domain.User{}, errors.ErrNotFound)
	f.store.EXPECT().
		CreateMessage(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, msg domain.Message) (domain.Message, error) {
			return msg, nil
		})

	sent, err := f.engine.SendMessage(context.Background(), conn, domain.SendMessageCommand{
		CommunityID: "dev",
		Content:     "hello @ghost",
		Mentions:    []domain.UserID{"ghost"},
	})

	req.NoError(err)
	req.Empty(sent.Mentions)
}

func TestEngine_AddReactionDispatchesUpdatedSet(t *testing.T) {
	req := require.New(t)
	f := newEngineFixture(t)
	conn := f.connect(t, "alice", "Alice")

	messageID := uuid.NewString()
	f.store.EXPECT().
		AddReaction(gomock.Any(), messageID, domain.Reaction{UserID: "alice", Emoji: "👍"}).
		Return(domain.Message{
			CommunityID: "dev",
			Reactions:   []domain.Reaction{{UserID: "alice", Emoji: "👍"}},
		}, nil)

	err := f.engine.AddReaction(context.Background(), conn, domain.ReactionCommand{
		MessageID: messageID, Emoji: "👍",
	})

	req.NoError(err)
	queued := <-f.engine.dispatcher.deliveries
	reaction, ok := queued.evt.(event.ReactionAdded)
	req.True(ok)
	req.Equal(domain.CommunityRoom("dev"), reaction.DeliveryScope().Room)
	req.Len(reaction.Reactions, 1)
}

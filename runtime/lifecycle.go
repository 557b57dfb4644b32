// Package runtime is the live session and fan-out engine: it tracks
// which users are connected, which rooms each connection joined, and
// delivers domain events to the right set of live connections. All of
// its state is in memory only; a process restart is equivalent to
// every client disconnecting.
package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"chat-hub/contract"
	"chat-hub/domain"
	"chat-hub/domain/event"
	"chat-hub/errors"
	"chat-hub/moderation"
)

// Indexer receives every durably created message for search indexing.
type Indexer interface {
	IndexMessage(msg domain.Message) error
}

// Engine orchestrates the connection lifecycle: authentication
// handshake, presence and room bookkeeping, event submission and
// disconnect cleanup. Each connection moves through
// Connecting -> Authenticated -> Active -> Disconnected; no state is
// ever created for a connection that fails authentication.
type Engine struct {
	log        *slog.Logger
	verifier   contract.AuthVerifier
	store      contract.DataStore
	presence   *Presence
	membership *Membership
	dispatcher *Dispatcher
	caster     *Broadcaster

	filter  *moderation.Filter
	indexer Indexer

	connectionBufferSize int
}

func NewEngine(log *slog.Logger, verifier contract.AuthVerifier, store contract.DataStore,
	notifier contract.NotificationCreator, connectionBufferSize, dispatchBufferSize int) *Engine {
	presence := NewPresence()
	membership := NewMembership()
	dispatcher := NewDispatcher(log, presence, membership, notifier, dispatchBufferSize)

	engine := &Engine{
		log:                  log,
		verifier:             verifier,
		store:                store,
		presence:             presence,
		membership:           membership,
		dispatcher:           dispatcher,
		caster:               NewBroadcaster(log, presence, membership, store, dispatcher),
		connectionBufferSize: connectionBufferSize,
	}
	dispatcher.OnDeliveryFailure(engine.Disconnect)
	return engine
}

// WithModeration masks banned words in message content before
// persistence and fan-out.
func (e *Engine) WithModeration(filter *moderation.Filter) *Engine {
	e.filter = filter
	return e
}

// WithIndexer forwards created messages to a search index.
func (e *Engine) WithIndexer(indexer Indexer) *Engine {
	e.indexer = indexer
	return e
}

// Presence exposes the registry for diagnostics (online user count).
func (e *Engine) Presence() *Presence { return e.presence }

// Dispatcher exposes the fan-out worker so the supervisor can run it.
func (e *Engine) Dispatcher() *Dispatcher { return e.dispatcher }

// OnlineUsers and OpenRooms feed telemetry and health reporting.
func (e *Engine) OnlineUsers() int { return e.presence.Count() }
func (e *Engine) OpenRooms() int   { return e.membership.RoomCount() }

// Connect authenticates a credential and, on success, registers the
// new connection in the presence registry and auto-joins its personal
// inbox room. The online-status write is best-effort and happens in
// the background: presence bookkeeping never depends on store
// availability. A failed handshake creates no state at all.
func (e *Engine) Connect(ctx context.Context, credential string) (*Connection, error) {
	identity, err := e.verifier.Verify(ctx, credential)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrAuthenticationFailed, err)
	}

	conn := newConnection(identity.UserID, identity.DisplayName, e.connectionBufferSize)
	e.presence.Register(identity.UserID, conn)
	e.membership.Join(conn, domain.InboxRoom(identity.UserID))

	go e.persistStatus(identity.UserID, domain.StatusOnline)

	e.log.Info("Connection established",
		"connection_id", conn.ID(),
		"user_id", identity.UserID)
	return conn, nil
}

// Disconnect tears a connection down: deregister from presence, drop
// every room, then persist offline status in the background when this
// was the user's last connection. In-memory cleanup is unconditional
// and fully visible to the dispatcher before Disconnect returns.
// Calling it twice, from any number of signals, is safe.
func (e *Engine) Disconnect(conn *Connection) {
	if conn == nil || !conn.close() {
		return
	}

	userID := conn.UserID()
	e.presence.Deregister(userID, conn)
	e.membership.DropAll(conn)

	if !e.presence.IsOnline(userID) {
		go e.persistStatus(userID, domain.StatusOffline)
	}

	e.log.Info("Connection closed",
		"connection_id", conn.ID(),
		"user_id", userID)
}

// RequestJoin adds the connection to a room after authorization.
// Community rooms require current membership in the store; cached or
// stale membership is never trusted. A denied join leaves the
// connection's room set untouched and does not drop the connection.
func (e *Engine) RequestJoin(ctx context.Context, conn *Connection, room domain.RoomID) error {
	if conn.Closed() {
		return errors.ErrConnectionClosed
	}

	switch {
	case room.IsCommunity():
		member, err := e.store.IsCommunityMember(ctx, room.CommunityID(), conn.UserID())
		if err != nil {
			return fmt.Errorf("membership check for %s: %w", room, err)
		}
		if !member {
			return errors.ErrNotCommunityMember
		}
	case room.IsInbox():
		if room != domain.InboxRoom(conn.UserID()) {
			return errors.ErrUnauthorizedRoom
		}
	default:
		return errors.ErrInvalidClientEvent
	}

	e.membership.Join(conn, room)
	if conn.Closed() {
		// Lost the race with a disconnect; undo the join so the dead
		// connection cannot linger in the reverse index.
		e.membership.DropAll(conn)
		return nil
	}

	if room.IsCommunity() {
		e.announceJoin(ctx, conn, room.CommunityID())
	}
	return nil
}

// announceJoin tells the community's persisted members that someone
// joined the channel. Best-effort; a member-list read failure only
// loses the announcement.
func (e *Engine) announceJoin(ctx context.Context, conn *Connection, communityID string) {
	members, err := e.store.FindCommunityMembers(ctx, communityID)
	if err != nil {
		e.log.Warn("Join announcement skipped",
			"community_id", communityID,
			"error", err)
		return
	}
	e.dispatcher.DispatchExcept(ctx, event.MemberJoined{
		CommunityID: communityID,
		UserID:      conn.UserID(),
		UserName:    conn.UserName(),
		Members:     members,
	}, conn)
}

// JoinCommunities joins a batch of community rooms, validating each
// one. Unauthorized ids are skipped and logged; the returned slice
// holds the ids that were actually joined.
func (e *Engine) JoinCommunities(ctx context.Context, conn *Connection, communityIDs []string) ([]string, error) {
	joined := make([]string, 0, len(communityIDs))
	for _, communityID := range communityIDs {
		err := e.RequestJoin(ctx, conn, domain.CommunityRoom(communityID))
		switch {
		case err == nil:
			joined = append(joined, communityID)
		case errors.Is(err, errors.ErrNotCommunityMember):
			e.log.Info("Join denied",
				"user_id", conn.UserID(),
				"community_id", communityID)
		default:
			return joined, err
		}
	}
	return joined, nil
}

func (e *Engine) RequestLeave(conn *Connection, room domain.RoomID) {
	e.membership.Leave(conn, room)
}

// SendMessage validates, persists and dispatches one message. A store
// failure is surfaced to the caller: an event that was never durably
// created can never be dispatched. Everything after persistence
// (indexing, fan-out side effects) is best-effort.
func (e *Engine) SendMessage(ctx context.Context, conn *Connection, cmd domain.SendMessageCommand) (domain.Message, error) {
	if (cmd.CommunityID == "") == (cmd.RecipientID == "") {
		return domain.Message{}, fmt.Errorf("%w: message needs exactly one of community or recipient",
			errors.ErrInvalidClientEvent)
	}

	if cmd.CommunityID != "" {
		member, err := e.store.IsCommunityMember(ctx, cmd.CommunityID, conn.UserID())
		if err != nil {
			return domain.Message{}, fmt.Errorf("membership check: %w", err)
		}
		if !member {
			return domain.Message{}, errors.ErrNotCommunityMember
		}
	} else {
		recipient, err := e.store.FindUser(ctx, cmd.RecipientID)
		if err != nil {
			return domain.Message{}, fmt.Errorf("recipient %s: %w", cmd.RecipientID, err)
		}
		if recipient.HasBlocked(conn.UserID()) {
			return domain.Message{}, errors.ErrRecipientBlocked
		}
	}

	content := cmd.Content
	if e.filter != nil {
		content = e.filter.Mask(content)
	}

	priority := cmd.Priority
	if priority == "" {
		priority = domain.PriorityNormal
	}

	msg := domain.Message{
		ID:          uuid.New(),
		SenderID:    conn.UserID(),
		SenderName:  conn.UserName(),
		CommunityID: cmd.CommunityID,
		RecipientID: cmd.RecipientID,
		Content:     content,
		Mentions:    e.resolveMentions(ctx, cmd.Mentions),
		ReplyTo:     e.replyPreview(ctx, cmd.ReplyTo),
		Priority:    priority,
		CreatedAt:   time.Now().UTC(),
	}

	stored, err := e.store.CreateMessage(ctx, msg)
	if err != nil {
		return domain.Message{}, fmt.Errorf("create message: %w", err)
	}

	if e.indexer != nil {
		if err := e.indexer.IndexMessage(stored); err != nil {
			e.log.Warn("Message indexing failed", "message_id", stored.ID, "error", err)
		}
	}

	e.dispatcher.Dispatch(ctx, event.MessageCreated{Message: stored})
	return stored, nil
}

// resolveMentions keeps only mentions of users that actually exist,
// attaching their display name for clients.
func (e *Engine) resolveMentions(ctx context.Context, userIDs []domain.UserID) []domain.Mention {
	var mentions []domain.Mention
	for _, userID := range userIDs {
		user, err := e.store.FindUser(ctx, userID)
		if err != nil {
			e.log.Debug("Dropping mention of unknown user", "user_id", userID)
			continue
		}
		mentions = append(mentions, domain.Mention{UserID: user.ID, DisplayName: user.DisplayName})
	}
	return mentions
}

func (e *Engine) replyPreview(ctx context.Context, messageID string) *domain.ReplyPreview {
	if messageID == "" {
		return nil
	}
	original, err := e.store.FindMessage(ctx, messageID)
	if err != nil {
		e.log.Debug("Reply target not found", "message_id", messageID)
		return nil
	}
	return &domain.ReplyPreview{
		MessageID: original.ID,
		SenderID:  original.SenderID,
		Preview:   truncate(original.Content, 100),
	}
}

// AddReaction persists the reaction and fans the updated reaction set
// out to the message's scope.
func (e *Engine) AddReaction(ctx context.Context, conn *Connection, cmd domain.ReactionCommand) error {
	msg, err := e.store.AddReaction(ctx, cmd.MessageID, domain.Reaction{
		UserID: conn.UserID(),
		Emoji:  cmd.Emoji,
	})
	if err != nil {
		return fmt.Errorf("add reaction to %s: %w", cmd.MessageID, err)
	}

	e.dispatcher.Dispatch(ctx, event.ReactionAdded{
		MessageID:   cmd.MessageID,
		CommunityID: msg.CommunityID,
		SenderID:    msg.SenderID,
		RecipientID: msg.RecipientID,
		ReactedBy:   conn.UserID(),
		Emoji:       cmd.Emoji,
		Reactions:   msg.Reactions,
	})
	return nil
}

func (e *Engine) MarkRead(ctx context.Context, conn *Connection, messageID string) error {
	if err := e.store.MarkRead(ctx, messageID, conn.UserID()); err != nil {
		return fmt.Errorf("mark read %s: %w", messageID, err)
	}
	return nil
}

func (e *Engine) TypingStarted(ctx context.Context, conn *Connection, room domain.RoomID) {
	e.caster.TypingStarted(ctx, conn, room)
}

func (e *Engine) TypingStopped(ctx context.Context, conn *Connection, room domain.RoomID) {
	e.caster.TypingStopped(ctx, conn, room)
}

func (e *Engine) UpdateStatus(ctx context.Context, conn *Connection, status domain.Status) error {
	return e.caster.StatusChanged(ctx, conn, status)
}

func (e *Engine) persistStatus(userID domain.UserID, status domain.Status) {
	ctx, cancel := context.WithTimeout(context.Background(), statusWriteTimeout)
	defer cancel()
	if err := e.store.UpdateUserStatus(ctx, userID, status); err != nil {
		e.log.Warn("Status persistence failed",
			"user_id", userID,
			"status", status,
			"error", err)
	}
}

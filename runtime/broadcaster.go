package runtime

import (
	"context"
	"log/slog"
	"time"

	"github.com/samber/lo"

	"chat-hub/contract"
	"chat-hub/domain"
	"chat-hub/domain/event"
	"chat-hub/errors"
)

const statusWriteTimeout = 5 * time.Second

// Broadcaster relays ephemeral signals. Typing indicators go straight
// to current room members minus the originator, with no persistence
// and no retry: a signal that finds nobody is simply lost. Status
// changes additionally persist through the store, fire-and-forget,
// before the broadcast goes out.
type Broadcaster struct {
	log        *slog.Logger
	presence   *Presence
	membership *Membership
	store      contract.DataStore
	dispatcher *Dispatcher
}

func NewBroadcaster(log *slog.Logger, presence *Presence, membership *Membership,
	store contract.DataStore, dispatcher *Dispatcher) *Broadcaster {
	return &Broadcaster{
		log:        log,
		presence:   presence,
		membership: membership,
		store:      store,
		dispatcher: dispatcher,
	}
}

func (b *Broadcaster) TypingStarted(ctx context.Context, origin *Connection, room domain.RoomID) {
	b.dispatcher.DispatchExcept(ctx, event.TypingStarted{
		UserID:   origin.UserID(),
		UserName: origin.UserName(),
		Room:     room,
	}, origin)
}

func (b *Broadcaster) TypingStopped(ctx context.Context, origin *Connection, room domain.RoomID) {
	b.dispatcher.DispatchExcept(ctx, event.TypingStopped{
		UserID: origin.UserID(),
		Room:   room,
	}, origin)
}

// StatusChanged persists the new status (best-effort, in the
// background) and broadcasts it to every room the user is currently in
// across all of their connections. The broadcast does not wait for the
// write to succeed.
func (b *Broadcaster) StatusChanged(ctx context.Context, origin *Connection, status domain.Status) error {
	if !status.Valid() {
		return errors.ErrInvalidClientEvent
	}

	userID := origin.UserID()
	go func() {
		writeCtx, cancel := context.WithTimeout(context.Background(), statusWriteTimeout)
		defer cancel()
		if err := b.store.UpdateUserStatus(writeCtx, userID, status); err != nil {
			b.log.Warn("Status persistence failed",
				"user_id", userID,
				"status", status,
				"error", err)
		}
	}()

	for _, room := range b.userRooms(userID) {
		b.dispatcher.DispatchExcept(ctx, event.StatusChanged{
			UserID: userID,
			Status: status,
			Room:   room,
		}, origin)
	}
	return nil
}

// userRooms is the union of joined rooms over every connection the
// user currently holds.
func (b *Broadcaster) userRooms(userID domain.UserID) []domain.RoomID {
	var rooms []domain.RoomID
	for _, conn := range b.presence.ConnectionsFor(userID) {
		rooms = append(rooms, b.membership.RoomsOf(conn)...)
	}
	return lo.Uniq(rooms)
}

package runtime

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/samber/lo"

	"chat-hub/contract"
	"chat-hub/domain"
	"chat-hub/domain/event"
)

// delivery is one queued fan-out unit. except carries the originating
// connection for ephemeral signals that must not echo back to their
// sender.
type delivery struct {
	evt    event.DomainEvent
	except *Connection
}

// Dispatcher fans domain events out to every live connection in their
// delivery scope. Events are consumed from a single queue by one
// worker goroutine, which gives events targeting the same room FIFO
// delivery in enqueue order without any per-room locking.
//
// Targets are resolved from the presence and membership indexes at
// fan-out time, never cached, so a connection that disconnected after
// an event was queued is simply skipped.
type Dispatcher struct {
	log        *slog.Logger
	presence   *Presence
	membership *Membership
	notifier   contract.NotificationCreator
	deliveries chan delivery
	evict      func(*Connection)
}

func NewDispatcher(log *slog.Logger, presence *Presence, membership *Membership,
	notifier contract.NotificationCreator, bufferSize int) *Dispatcher {
	return &Dispatcher{
		log:        log,
		presence:   presence,
		membership: membership,
		notifier:   notifier,
		deliveries: make(chan delivery, bufferSize),
	}
}

// OnDeliveryFailure installs the cleanup hook invoked when enqueueing
// to a connection fails. The hook must be safe to call concurrently
// and more than once for the same connection.
func (d *Dispatcher) OnDeliveryFailure(fn func(*Connection)) {
	d.evict = fn
}

// Dispatch queues an event for fan-out. It blocks only when the
// dispatch queue itself is full, which is backpressure on producers,
// not on any individual client connection.
func (d *Dispatcher) Dispatch(ctx context.Context, evt event.DomainEvent) {
	d.dispatch(ctx, delivery{evt: evt})
}

// DispatchExcept queues an event that skips the originating
// connection, used for typing and status signals.
func (d *Dispatcher) DispatchExcept(ctx context.Context, evt event.DomainEvent, origin *Connection) {
	d.dispatch(ctx, delivery{evt: evt, except: origin})
}

func (d *Dispatcher) dispatch(ctx context.Context, del delivery) {
	select {
	case d.deliveries <- del:
	case <-ctx.Done():
		d.log.Warn("Dispatch abandoned, context done", "kind", del.evt.Kind())
	}
}

// Run consumes the dispatch queue. It is supervised like any other
// worker and only returns when the context is cancelled.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			d.log.Debug("Context done, stopping dispatcher")
			return nil
		case del := <-d.deliveries:
			d.Fanout(ctx, del.evt, del.except)
		}
	}
}

// Fanout delivers one event to its current target set and runs the
// event's persistence side effects (offline and mention
// notifications). Exported so tests and synchronous callers can drive
// it without the worker loop.
func (d *Dispatcher) Fanout(ctx context.Context, evt event.DomainEvent, except *Connection) {
	d.deliver(ctx, evt, except)

	if msg, ok := evt.(event.MessageCreated); ok {
		d.notifyOfflineRecipient(ctx, msg.Message)
		d.notifyMentions(ctx, msg.Message)
	}
}

func (d *Dispatcher) deliver(ctx context.Context, evt event.DomainEvent, except *Connection) {
	for _, conn := range d.targets(evt.DeliveryScope()) {
		if conn == except {
			continue
		}
		if err := conn.Consume(ctx, evt); err != nil {
			// One dead connection never aborts delivery to the rest.
			d.log.Warn("Delivery failed, scheduling disconnect",
				"connection_id", conn.ID(),
				"user_id", conn.UserID(),
				"kind", evt.Kind(),
				"error", err)
			if d.evict != nil {
				go d.evict(conn)
			}
		}
	}
}

// targets resolves a scope to connections using the live indexes.
func (d *Dispatcher) targets(scope event.Scope) []*Connection {
	if scope.IsRoom() {
		return d.membership.MembersOf(scope.Room)
	}
	var conns []*Connection
	for _, userID := range scope.Users {
		conns = append(conns, d.presence.ConnectionsFor(userID)...)
	}
	return lo.Uniq(conns)
}

// notifyOfflineRecipient persists a "new message" notification when a
// direct message targets a user with no live connection.
func (d *Dispatcher) notifyOfflineRecipient(ctx context.Context, msg domain.Message) {
	if !msg.IsDirect() || d.presence.IsOnline(msg.RecipientID) {
		return
	}
	d.createNotification(ctx, msg.RecipientID, domain.NotificationMessage,
		"New message", fmt.Sprintf("%s: %s", msg.SenderName, truncate(msg.Content, 100)))
}

// notifyMentions pushes a live "mentioned" event to each mentioned
// user and persists a mention notification for them regardless of
// online status. Both happen, not either/or.
func (d *Dispatcher) notifyMentions(ctx context.Context, msg domain.Message) {
	for _, mention := range msg.Mentions {
		d.deliver(ctx, event.Mentioned{
			Message:     msg,
			MentionedBy: msg.SenderName,
			Target:      mention.UserID,
		}, nil)

		d.createNotification(ctx, mention.UserID, domain.NotificationMention,
			"You were mentioned",
			fmt.Sprintf("%s mentioned you: %s", msg.SenderName, truncate(msg.Content, 100)))
	}
}

// createNotification is best-effort: a store failure is logged and
// never reaches the sender's delivery path. On success the persisted
// notification is also pushed live to the target's connections.
func (d *Dispatcher) createNotification(ctx context.Context, target domain.UserID,
	kind domain.NotificationKind, title, body string) {
	notification, err := d.notifier.CreateNotification(ctx, target, kind, title, body)
	if err != nil {
		d.log.Warn("Notification creation failed",
			"user_id", target,
			"kind", kind,
			"error", err)
		return
	}
	d.deliver(ctx, event.NotificationCreated{Notification: notification}, nil)
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

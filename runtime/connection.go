package runtime

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"chat-hub/domain"
	"chat-hub/domain/event"
	"chat-hub/errors"
)

// Connection is the handle for one live client session. The engine
// owns it from successful authentication until disconnect; the
// transport layer drains Outbound and pushes each event to the client.
//
// Delivery is a non-blocking enqueue onto a buffered channel, so a
// slow or dead transport never stalls dispatch to other connections.
type Connection struct {
	id        uuid.UUID
	userID    domain.UserID
	userName  string
	createdAt time.Time

	outbound chan event.DomainEvent

	once   sync.Once
	closed chan struct{}
}

func newConnection(userID domain.UserID, userName string, bufferSize int) *Connection {
	return &Connection{
		id:        uuid.New(),
		userID:    userID,
		userName:  userName,
		createdAt: time.Now().UTC(),
		outbound:  make(chan event.DomainEvent, bufferSize),
		closed:    make(chan struct{}),
	}
}

func (c *Connection) ID() uuid.UUID        { return c.id }
func (c *Connection) UserID() domain.UserID { return c.userID }
func (c *Connection) UserName() string      { return c.userName }
func (c *Connection) CreatedAt() time.Time  { return c.createdAt }

// Outbound is the queue the transport write loop drains.
func (c *Connection) Outbound() <-chan event.DomainEvent { return c.outbound }

// Done is closed when the connection has been disconnected.
func (c *Connection) Done() <-chan struct{} { return c.closed }

// Consume enqueues an event for the client. It returns an error when
// the connection is already closed or its queue is full; the caller
// treats either as a dead connection.
func (c *Connection) Consume(_ context.Context, e event.DomainEvent) error {
	select {
	case <-c.closed:
		return errors.ErrConnectionClosed
	default:
	}

	select {
	case c.outbound <- e:
		return nil
	case <-c.closed:
		return errors.ErrConnectionClosed
	default:
		return errors.ErrSlowConsumer
	}
}

// Closed reports whether the connection has been disconnected.
func (c *Connection) Closed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

// close marks the connection terminal. Returns true on the first call
// only, so disconnect cleanup runs exactly once even when signalled
// from multiple paths.
func (c *Connection) close() bool {
	first := false
	c.once.Do(func() {
		close(c.closed)
		first = true
	})
	return first
}

package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
	"github.com/samber/lo"

	"chat-hub/domain"
	"chat-hub/domain/event"
	"chat-hub/errors"
	"chat-hub/runtime"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// client glues one websocket to one engine connection: the read pump
// parses and submits inbound events, the write pump drains the
// connection's outbound queue. Either pump exiting triggers engine
// disconnect, which is idempotent, so both may report it.
type client struct {
	ws     *websocket.Conn
	conn   *runtime.Connection
	engine *runtime.Engine
	log    *slog.Logger

	// direct carries acks and errors for this websocket only. The
	// write pump is the single writer; pumps never write concurrently.
	direct chan ServerEvent
}

func newClient(ws *websocket.Conn, conn *runtime.Connection, engine *runtime.Engine, log *slog.Logger) *client {
	return &client{
		ws:     ws,
		conn:   conn,
		engine: engine,
		log:    log,
		direct: make(chan ServerEvent, 16),
	}
}

func (c *client) run(ctx context.Context) {
	go c.writePump(ctx)
	c.readPump(ctx)
}

func (c *client) readPump(ctx context.Context) {
	defer func() {
		c.engine.Disconnect(c.conn)
		_ = c.ws.Close()
	}()

	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure) && err != io.EOF {
				c.log.Warn("Unexpected websocket error",
					"connection_id", c.conn.ID(),
					"error", err)
			}
			return
		}

		var evt ClientEvent
		if err := json.Unmarshal(raw, &evt); err != nil {
			c.sendError(fmt.Errorf("%w: %v", errors.ErrInvalidClientEvent, err))
			continue
		}
		if err := validate.Struct(evt); err != nil {
			c.sendError(fmt.Errorf("%w: %v", errors.ErrInvalidClientEvent, err))
			continue
		}
		c.handle(ctx, evt)
	}
}

// handle submits one client event to the engine and acknowledges or
// reports the outcome on this websocket only.
func (c *client) handle(ctx context.Context, evt ClientEvent) {
	switch evt.Kind {
	case "send_message":
		msg, err := c.engine.SendMessage(ctx, c.conn, domain.SendMessageCommand{
			CommunityID: evt.CommunityID,
			RecipientID: domain.UserID(evt.RecipientID),
			Content:     evt.Content,
			Mentions: lo.Map(evt.Mentions, func(id string, _ int) domain.UserID {
				return domain.UserID(id)
			}),
			ReplyTo:  evt.ReplyTo,
			Priority: domain.Priority(evt.Priority),
		})
		if err != nil {
			c.sendError(err)
			return
		}
		c.sendAck("message_sent", ackPayload{Success: true, MessageID: msg.ID.String(), At: msg.CreatedAt})

	case "add_reaction":
		if err := c.engine.AddReaction(ctx, c.conn, domain.ReactionCommand{
			MessageID: evt.MessageID,
			Emoji:     evt.Emoji,
		}); err != nil {
			c.sendError(err)
		}

	case "typing_start":
		c.engine.TypingStarted(ctx, c.conn, evt.room())

	case "typing_stop":
		c.engine.TypingStopped(ctx, c.conn, evt.room())

	case "update_status":
		if err := c.engine.UpdateStatus(ctx, c.conn, domain.Status(evt.Status)); err != nil {
			c.sendError(err)
		}

	case "mark_read":
		if err := c.engine.MarkRead(ctx, c.conn, evt.MessageID); err != nil {
			c.sendError(err)
			return
		}
		c.sendAck("marked_read", ackPayload{Success: true, MessageID: evt.MessageID})

	case "join_communities":
		joined, err := c.engine.JoinCommunities(ctx, c.conn, evt.CommunityIDs)
		if err != nil {
			c.sendError(err)
			return
		}
		c.sendAck("joined_communities", ackPayload{Success: true, CommunityIDs: joined})

	case "leave_community":
		c.engine.RequestLeave(c.conn, domain.CommunityRoom(evt.CommunityID))
		c.sendAck("left_community", ackPayload{Success: true, CommunityID: evt.CommunityID})
	}
}

// writePump pushes queued events and pings until the connection dies.
// A write error only closes this websocket; the engine skips dead
// connections on its own.
func (c *client) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.engine.Disconnect(c.conn)
		_ = c.ws.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.conn.Done():
			_ = c.ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, ""), time.Now().Add(writeWait))
			return
		case evt := <-c.conn.Outbound():
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteJSON(toWire(evt)); err != nil {
				c.log.Warn("Websocket write failed",
					"connection_id", c.conn.ID(),
					"error", err)
				return
			}
		case out := <-c.direct:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteJSON(out); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *client) sendAck(kind string, payload ackPayload) {
	c.sendDirect(ServerEvent{Kind: event.Kind(kind), Payload: payload})
}

func (c *client) sendError(err error) {
	c.sendDirect(ServerEvent{Kind: "error", Payload: errorPayload{Message: err.Error()}})
}

// sendDirect hands a request/response frame (ack, error) to the write
// pump. Dropping under pressure is fine; acks are advisory.
func (c *client) sendDirect(evt ServerEvent) {
	select {
	case c.direct <- evt:
	default:
		c.log.Debug("Ack dropped, direct queue full", "connection_id", c.conn.ID())
	}
}

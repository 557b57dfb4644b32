// Package search maintains a full-text index of persisted messages and
// answers room-scoped search queries.
package search

import (
	"context"
	"log/slog"
	"time"

	"github.com/blugelabs/bluge"

	"chat-hub/domain"
)

// Index wraps a Bluge index keyed by message id. Indexing is
// best-effort from the engine's point of view: the message store is
// the source of truth and a failed index write only degrades search.
type Index struct {
	writer *bluge.Writer
	log    *slog.Logger
}

func Open(path string, log *slog.Logger) (*Index, error) {
	writer, err := bluge.OpenWriter(bluge.DefaultConfig(path))
	if err != nil {
		return nil, err
	}
	return &Index{writer: writer, log: log}, nil
}

func (ix *Index) Close() error {
	return ix.writer.Close()
}

// IndexMessage upserts one message. The room keyword field lets Search
// restrict results to rooms the caller belongs to.
func (ix *Index) IndexMessage(msg domain.Message) error {
	doc := bluge.NewDocument(msg.ID.String())
	doc.AddField(bluge.NewTextField("content", msg.Content).StoreValue())
	doc.AddField(bluge.NewKeywordField("room", string(msg.Room())).StoreValue())
	doc.AddField(bluge.NewKeywordField("sender", string(msg.SenderID)).StoreValue())
	doc.AddField(bluge.NewStoredOnlyField("created_at", []byte(msg.CreatedAt.Format(time.RFC3339Nano))))
	return ix.writer.Update(doc.ID(), doc)
}

// Hit is one search result, hydrated from stored fields only.
type Hit struct {
	MessageID string        `json:"messageId"`
	Room      domain.RoomID `json:"room"`
	SenderID  domain.UserID `json:"senderId"`
	Content   string        `json:"content"`
	CreatedAt time.Time     `json:"createdAt"`
}

// Search matches terms against message content, restricted to the
// given rooms. An empty room list returns no results rather than
// leaking messages from rooms the caller cannot see.
func (ix *Index) Search(ctx context.Context, terms string, rooms []domain.RoomID, limit int) ([]Hit, error) {
	if len(rooms) == 0 {
		return nil, nil
	}

	roomFilter := bluge.NewBooleanQuery()
	roomFilter.SetMinShould(1)
	for _, room := range rooms {
		roomFilter.AddShould(bluge.NewTermQuery(string(room)).SetField("room"))
	}

	query := bluge.NewBooleanQuery().
		AddMust(bluge.NewMatchQuery(terms).SetField("content")).
		AddMust(roomFilter)

	reader, err := ix.writer.Reader()
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := reader.Close(); err != nil {
			ix.log.Warn("Search reader close failed", "error", err)
		}
	}()

	iterator, err := reader.Search(ctx, bluge.NewTopNSearch(limit, query))
	if err != nil {
		return nil, err
	}

	var hits []Hit
	for {
		match, err := iterator.Next()
		if err != nil {
			return nil, err
		}
		if match == nil {
			break
		}
		var hit Hit
		err = match.VisitStoredFields(func(field string, value []byte) bool {
			switch field {
			case "_id":
				hit.MessageID = string(value)
			case "room":
				hit.Room = domain.RoomID(value)
			case "sender":
				hit.SenderID = domain.UserID(value)
			case "content":
				hit.Content = string(value)
			case "created_at":
				if t, err := time.Parse(time.RFC3339Nano, string(value)); err == nil {
					hit.CreatedAt = t
				}
			}
			return true
		})
		if err != nil {
			return nil, err
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

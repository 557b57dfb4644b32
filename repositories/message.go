package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"

	"github.com/dgraph-io/badger/v4"

	"chat-hub/domain"
	"chat-hub/errors"
)

type MessageRepository struct {
	db            *badger.DB
	log           *slog.Logger
	limitMessages *int
}

func NewMessageRepository(db *badger.DB, log *slog.Logger, limitMessages *int) MessageRepository {
	return MessageRepository{db: db, log: log, limitMessages: limitMessages}
}

// DMConversation names the shared history bucket of a user pair, the
// same key for both directions so either participant pages through
// the same history.
func DMConversation(a, b domain.UserID) string {
	if string(a) > string(b) {
		a, b = b, a
	}
	return fmt.Sprintf("dm:%s:%s", a, b)
}

// conversationKey names the history bucket a message belongs to:
// the community room for channel messages, the pair bucket for
// direct ones.
func conversationKey(msg domain.Message) string {
	if !msg.IsDirect() {
		return string(msg.Room())
	}
	return DMConversation(msg.SenderID, msg.RecipientID)
}

// primaryKey is formatted as "msg:{conversation}:{timestamp_padded}:{uuid}" to:
//  1. Ensure chronological sorting using 19-digit zero padding
//     (lexicographical order).
//  2. Prevent data loss by using the UUID as a collision disconnector
//     if two messages arrive at the same nanosecond.
func primaryKey(msg domain.Message) []byte {
	return []byte(fmt.Sprintf("msg:%s:%019d:%s",
		conversationKey(msg),
		msg.CreatedAt.UnixNano(),
		msg.ID,
	))
}

func idKey(messageID string) []byte {
	return []byte("msgid:" + messageID)
}

// StoreMessage persists a message together with a message-id index
// entry pointing at the primary key, so reactions and read receipts
// can find a message without knowing its conversation.
func (m MessageRepository) StoreMessage(_ context.Context, msg domain.Message) (domain.Message, error) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return domain.Message{}, fmt.Errorf("marshal message: %w", err)
	}
	key := primaryKey(msg)
	err = m.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(key, payload); err != nil {
			return err
		}
		return txn.Set(idKey(msg.ID.String()), key)
	})
	if err != nil {
		return domain.Message{}, err
	}
	return msg, nil
}

func (m MessageRepository) FindMessage(_ context.Context, messageID string) (domain.Message, error) {
	var msg domain.Message
	err := m.db.View(func(txn *badger.Txn) error {
		indexItem, err := txn.Get(idKey(messageID))
		if err != nil {
			return err
		}
		key, err := indexItem.ValueCopy(nil)
		if err != nil {
			return err
		}
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		return item.Value(func(value []byte) error {
			return json.Unmarshal(value, &msg)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return domain.Message{}, fmt.Errorf("message %s: %w", messageID, errors.ErrNotFound)
	}
	if err != nil {
		return domain.Message{}, err
	}
	return msg, nil
}

// AddReaction appends the reaction to the stored message and returns
// the updated document. Reacting twice with the same emoji is a no-op.
func (m MessageRepository) AddReaction(ctx context.Context, messageID string, reaction domain.Reaction) (domain.Message, error) {
	return m.mutate(ctx, messageID, func(msg *domain.Message) {
		for _, existing := range msg.Reactions {
			if existing == reaction {
				return
			}
		}
		msg.Reactions = append(msg.Reactions, reaction)
	})
}

// MarkRead records the reader on the message, once.
func (m MessageRepository) MarkRead(ctx context.Context, messageID string, reader domain.UserID) error {
	_, err := m.mutate(ctx, messageID, func(msg *domain.Message) {
		for _, existing := range msg.ReadBy {
			if existing == reader {
				return
			}
		}
		msg.ReadBy = append(msg.ReadBy, reader)
	})
	return err
}

func (m MessageRepository) mutate(ctx context.Context, messageID string, apply func(*domain.Message)) (domain.Message, error) {
	msg, err := m.FindMessage(ctx, messageID)
	if err != nil {
		return domain.Message{}, err
	}
	apply(&msg)
	payload, err := json.Marshal(msg)
	if err != nil {
		return domain.Message{}, fmt.Errorf("marshal message: %w", err)
	}
	err = m.db.Update(func(txn *badger.Txn) error {
		return txn.Set(primaryKey(msg), payload)
	})
	if err != nil {
		return domain.Message{}, err
	}
	return msg, nil
}

// GetMessages pages backwards through a conversation's history using a
// reverse prefix scan. Thanks to the padded timestamp in the key the
// iteration order is newest first; the returned slice is flipped to
// chronological order. The cursor is the key suffix of the oldest
// message returned, to be passed back for the next page.
func (m MessageRepository) GetMessages(conversation string, cursor *string) ([]domain.Message, *string, error) {
	var messages []domain.Message
	var lastKey string
	err := m.db.View(func(txn *badger.Txn) error {
		prefixStr := fmt.Sprintf("msg:%s:", conversation)
		prefix := []byte(prefixStr)
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		var seekKey []byte
		switch cursor {
		case nil:
			// Seek past every possible timestamp, then walk backwards.
			seekKey = append(prefix, []byte("9999999999999999999")...)
		default:
			seekKey = append(prefix, []byte(*cursor)...)
		}

		it.Seek(seekKey)
		if cursor != nil && it.ValidForPrefix(prefix) {
			it.Next()
		}

		for ; it.ValidForPrefix(prefix); it.Next() {
			if m.limitMessages != nil && len(messages) == *m.limitMessages {
				m.log.Debug(fmt.Sprintf("Maximum of %d messages reached", *m.limitMessages))
				break
			}
			item := it.Item()
			lastKey = string(item.Key()[len(prefixStr):])
			err := item.Value(func(value []byte) error {
				var msg domain.Message
				if err := json.Unmarshal(value, &msg); err != nil {
					return err
				}
				messages = append(messages, msg)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	sort.Slice(messages, func(i, j int) bool {
		return messages[i].CreatedAt.Before(messages[j].CreatedAt)
	})
	if lastKey == "" {
		return messages, nil, nil
	}
	return messages, &lastKey, nil
}

// Package repositories persists the chat system's documents in
// BadgerDB. Keys embed their chronological ordering so history reads
// are prefix scans, never full-table filters.
package repositories

import (
	"context"
	"log/slog"

	"github.com/dgraph-io/badger/v4"

	"chat-hub/domain"
)

// Store composes the per-document repositories into the single
// persistence contract the engine consumes.
type Store struct {
	MessageRepository
	UserRepository
	CommunityRepository
}

func NewStore(db *badger.DB, log *slog.Logger, limitMessages *int) Store {
	return Store{
		MessageRepository:   NewMessageRepository(db, log, limitMessages),
		UserRepository:      NewUserRepository(db),
		CommunityRepository: NewCommunityRepository(db),
	}
}

func (s Store) CreateMessage(ctx context.Context, msg domain.Message) (domain.Message, error) {
	return s.StoreMessage(ctx, msg)
}

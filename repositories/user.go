package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"

	"chat-hub/domain"
	"chat-hub/errors"
)

type UserRepository struct {
	db *badger.DB
}

func NewUserRepository(db *badger.DB) UserRepository {
	return UserRepository{db: db}
}

func userKey(id domain.UserID) []byte {
	return []byte("user:" + string(id))
}

func (u UserRepository) SaveUser(_ context.Context, user domain.User) error {
	payload, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("marshal user: %w", err)
	}
	return u.db.Update(func(txn *badger.Txn) error {
		return txn.Set(userKey(user.ID), payload)
	})
}

func (u UserRepository) FindUser(_ context.Context, id domain.UserID) (domain.User, error) {
	var user domain.User
	err := u.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(userKey(id))
		if err != nil {
			return err
		}
		return item.Value(func(value []byte) error {
			return json.Unmarshal(value, &user)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return domain.User{}, fmt.Errorf("user %s: %w", id, errors.ErrNotFound)
	}
	if err != nil {
		return domain.User{}, err
	}
	return user, nil
}

// UpdateUserStatus stores the new status and stamps last-seen. The
// engine treats this call as best-effort; the repository itself still
// reports a missing user so callers can log it.
func (u UserRepository) UpdateUserStatus(ctx context.Context, id domain.UserID, status domain.Status) error {
	user, err := u.FindUser(ctx, id)
	if err != nil {
		return err
	}
	user.Status = status
	user.LastSeen = time.Now().UTC()
	return u.SaveUser(ctx, user)
}

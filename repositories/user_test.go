package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"chat-hub/domain"
	"chat-hub/errors"
)

func TestUserRepository_SaveAndFind(t *testing.T) {
	req := require.New(t)
	db, _ := setupDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	user := domain.User{
		ID:           "alice",
		DisplayName:  "Alice",
		Status:       domain.StatusOnline,
		LastSeen:     time.Now().UTC(),
		BlockedUsers: []domain.UserID{"troll"},
	}
	req.NoError(repo.SaveUser(ctx, user))

	fetched, err := repo.FindUser(ctx, "alice")
	req.NoError(err)
	req.Equal("Alice", fetched.DisplayName)
	req.True(fetched.HasBlocked("troll"))
	req.False(fetched.HasBlocked("bob"))
}

func TestUserRepository_FindUnknown(t *testing.T) {
	req := require.New(t)
	db, _ := setupDB(t)
	repo := NewUserRepository(db)

	_, err := repo.FindUser(context.Background(), "ghost")

	req.ErrorIs(err, errors.ErrNotFound)
}

func TestUserRepository_UpdateStatusTouchesLastSeen(t *testing.T) {
	req := require.New(t)
	db, _ := setupDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	lastWeek := time.Now().UTC().Add(-7 * 24 * time.Hour)
	req.NoError(repo.SaveUser(ctx, domain.User{ID: "alice", Status: domain.StatusOffline, LastSeen: lastWeek}))

	req.NoError(repo.UpdateUserStatus(ctx, "alice", domain.StatusBusy))

	fetched, err := repo.FindUser(ctx, "alice")
	req.NoError(err)
	req.Equal(domain.StatusBusy, fetched.Status)
	req.True(fetched.LastSeen.After(lastWeek))
}

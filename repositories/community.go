package repositories

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/samber/lo"

	"chat-hub/domain"
	"chat-hub/errors"
)

// Community is the stored community document. Only the fields the
// engine consults live here; the REST layer owns the rest of the
// community shape.
type Community struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Members  []domain.UserID `json:"members"`
	IsActive bool            `json:"isActive"`
}

type CommunityRepository struct {
	db *badger.DB
}

func NewCommunityRepository(db *badger.DB) CommunityRepository {
	return CommunityRepository{db: db}
}

func communityKey(id string) []byte {
	return []byte("community:" + id)
}

func (c CommunityRepository) SaveCommunity(_ context.Context, community Community) error {
	payload, err := json.Marshal(community)
	if err != nil {
		return fmt.Errorf("marshal community: %w", err)
	}
	return c.db.Update(func(txn *badger.Txn) error {
		return txn.Set(communityKey(community.ID), payload)
	})
}

func (c CommunityRepository) FindCommunity(_ context.Context, id string) (Community, error) {
	var community Community
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(communityKey(id))
		if err != nil {
			return err
		}
		return item.Value(func(value []byte) error {
			return json.Unmarshal(value, &community)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return Community{}, fmt.Errorf("community %s: %w", id, errors.ErrNotFound)
	}
	if err != nil {
		return Community{}, err
	}
	return community, nil
}

// IsCommunityMember is consulted at join time and message-send time;
// an inactive community behaves as if the caller were not a member.
func (c CommunityRepository) IsCommunityMember(ctx context.Context, communityID string, id domain.UserID) (bool, error) {
	community, err := c.FindCommunity(ctx, communityID)
	if errors.Is(err, errors.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return community.IsActive && lo.Contains(community.Members, id), nil
}

func (c CommunityRepository) FindCommunityMembers(ctx context.Context, communityID string) ([]domain.UserID, error) {
	community, err := c.FindCommunity(ctx, communityID)
	if err != nil {
		return nil, err
	}
	return community.Members, nil
}

func (c CommunityRepository) AddMember(ctx context.Context, communityID string, id domain.UserID) error {
	community, err := c.FindCommunity(ctx, communityID)
	if err != nil {
		return err
	}
	if lo.Contains(community.Members, id) {
		return nil
	}
	community.Members = append(community.Members, id)
	return c.SaveCommunity(ctx, community)
}

func (c CommunityRepository) RemoveMember(ctx context.Context, communityID string, id domain.UserID) error {
	community, err := c.FindCommunity(ctx, communityID)
	if err != nil {
		return err
	}
	community.Members = lo.Without(community.Members, id)
	return c.SaveCommunity(ctx, community)
}

package domain

import "time"

// UserID is the stable identifier assigned by the identity provider.
// It is a foreign key into the user store, never generated here.
type UserID string

type Status string

const (
	StatusOnline  Status = "online"
	StatusOffline Status = "offline"
	StatusAway    Status = "away"
	StatusBusy    Status = "busy"
)

func (s Status) Valid() bool {
	switch s {
	case StatusOnline, StatusOffline, StatusAway, StatusBusy:
		return true
	}
	return false
}

type User struct {
	ID           UserID
	DisplayName  string
	Status       Status
	LastSeen     time.Time
	BlockedUsers []UserID
}

func (u User) HasBlocked(other UserID) bool {
	for _, blocked := range u.BlockedUsers {
		if blocked == other {
			return true
		}
	}
	return false
}

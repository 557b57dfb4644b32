package domain

import "strings"

// RoomID names a broadcast scope. Two forms exist:
// "community:<id>" for a community channel and "user:<uid>" for a
// personal inbox. The inbox room is joined automatically at connect
// time and is how private messages and notifications reach a user.
type RoomID string

const (
	communityPrefix = "community:"
	inboxPrefix     = "user:"
)

func CommunityRoom(communityID string) RoomID {
	return RoomID(communityPrefix + communityID)
}

func InboxRoom(userID UserID) RoomID {
	return RoomID(inboxPrefix + string(userID))
}

func (r RoomID) IsCommunity() bool {
	return strings.HasPrefix(string(r), communityPrefix)
}

func (r RoomID) IsInbox() bool {
	return strings.HasPrefix(string(r), inboxPrefix)
}

// CommunityID returns the community identifier part of a community
// room, or "" when the room is not a community channel.
func (r RoomID) CommunityID() string {
	if !r.IsCommunity() {
		return ""
	}
	return strings.TrimPrefix(string(r), communityPrefix)
}

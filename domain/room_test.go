package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRoomID_CommunityAndInboxForms(t *testing.T) {
	req := require.New(t)

	dev := CommunityRoom("dev")
	req.True(dev.IsCommunity())
	req.False(dev.IsInbox())
	req.Equal("dev", dev.CommunityID())

	inbox := InboxRoom("alice")
	req.True(inbox.IsInbox())
	req.False(inbox.IsCommunity())
	req.Empty(inbox.CommunityID())
}

func TestMessage_RoomAndDirection(t *testing.T) {
	req := require.New(t)

	channel := Message{SenderID: "alice", CommunityID: "dev"}
	req.False(channel.IsDirect())
	req.Equal(CommunityRoom("dev"), channel.Room())

	direct := Message{SenderID: "alice", RecipientID: "bob"}
	req.True(direct.IsDirect())
	req.Equal(InboxRoom("bob"), direct.Room())
}

func TestUser_HasBlocked(t *testing.T) {
	req := require.New(t)

	user := User{ID: "bob", BlockedUsers: []UserID{"troll"}}
	req.True(user.HasBlocked("troll"))
	req.False(user.HasBlocked("alice"))
}

func TestStatus_Valid(t *testing.T) {
	req := require.New(t)

	for _, status := range []Status{StatusOnline, StatusOffline, StatusAway, StatusBusy} {
		req.True(status.Valid())
	}
	req.False(Status("invisible").Valid())
	req.False(Status("").Valid())
}

package errors

import (
	stderrors "errors"
	"fmt"
)

var (
	ErrAuthenticationFailed = fmt.Errorf("authentication failed")
	ErrNotCommunityMember   = fmt.Errorf("not a member of this community")
	ErrNotFound             = fmt.Errorf("not found")
	ErrRecipientBlocked     = fmt.Errorf("cannot send message to this user")
	ErrInvalidClientEvent   = fmt.Errorf("invalid client event")
	ErrConnectionClosed     = fmt.Errorf("connection closed")
	ErrSlowConsumer         = fmt.Errorf("outbound queue full")
	ErrUnauthorizedRoom     = fmt.Errorf("room not allowed for this user")
	ErrWorkerPanic          = fmt.Errorf("worker panic")
	ErrEmptyWords           = fmt.Errorf("no censored words loaded")
)

// Is re-exports the standard library matcher so callers of this
// package don't need a second errors import.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

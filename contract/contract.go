//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"

	"chat-hub/domain"
	"chat-hub/domain/event"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

type WorkerName string

// Worker doesn't protect itself. The supervisor restarts it on panic.
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// Used for logging and supervision purposes, avoiding manual naming in
// the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// EventSink receives events destined for one live connection.
// Implementations must not block: a slow consumer is reported through
// the returned error, never by stalling the caller.
type EventSink interface {
	Consume(ctx context.Context, e event.DomainEvent) error
}

// Identity is what a verified credential resolves to.
type Identity struct {
	UserID      domain.UserID
	DisplayName string
}

// AuthVerifier checks the credential presented during the connection
// handshake. A failed verification rejects the connection before any
// engine state is created.
type AuthVerifier interface {
	Verify(ctx context.Context, credential string) (Identity, error)
}

// DataStore is the narrow persistence contract the engine consumes.
// Status writes are best-effort from the engine's perspective; message
// creation is not, since an event that was never durably created can
// never be dispatched.
type DataStore interface {
	FindUser(ctx context.Context, id domain.UserID) (domain.User, error)
	UpdateUserStatus(ctx context.Context, id domain.UserID, status domain.Status) error
	IsCommunityMember(ctx context.Context, communityID string, id domain.UserID) (bool, error)
	FindCommunityMembers(ctx context.Context, communityID string) ([]domain.UserID, error)
	CreateMessage(ctx context.Context, message domain.Message) (domain.Message, error)
	FindMessage(ctx context.Context, messageID string) (domain.Message, error)
	AddReaction(ctx context.Context, messageID string, reaction domain.Reaction) (domain.Message, error)
	MarkRead(ctx context.Context, messageID string, reader domain.UserID) error
}

// NotificationCreator persists alerts for users that live delivery
// cannot reach (offline recipients) or that must survive it (mentions).
type NotificationCreator interface {
	CreateNotification(ctx context.Context, target domain.UserID, kind domain.NotificationKind,
		title, body string) (domain.Notification, error)
}

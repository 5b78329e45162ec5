// Package channel defines the boundary to the external channel client.
// Authentication and session management live behind this interface and are
// not part of the monitor service.
package channel

import (
	"context"

	"github.com/gadicohen93/Veriver/internal/domain"
)

// Entity is a resolved channel-like peer. Broadcast distinguishes real
// broadcast channels from users and group chats.
type Entity struct {
	ID        int64
	Handle    string
	Broadcast bool
}

// Channel converts the entity to its domain identity.
func (e Entity) Channel() domain.Channel {
	return domain.Channel{ID: e.ID, Handle: e.Handle}
}

// Handler is invoked for each delivered push event. Implementations must not
// block other channels' event handling; the client runtime delivers one
// event per channel at a time.
type Handler func(ctx context.Context, msg domain.RawMessage)

// Client is the external channel-client boundary consumed by the monitor.
type Client interface {
	// Resolve looks up a canonical handle and returns the peer entity.
	Resolve(ctx context.Context, handle string) (Entity, error)

	// IterRecent returns up to limit of the most recent messages for the
	// entity, newest first.
	IterRecent(ctx context.Context, entity Entity, limit int) ([]domain.RawMessage, error)

	// OnNewMessage registers a push binding for new messages in the entity's
	// channel. Bindings stay registered for the client's lifetime.
	OnNewMessage(entity Entity, h Handler)

	// OnEditedMessage registers a push binding for edited messages.
	OnEditedMessage(entity Entity, h Handler)

	// DownloadMedia fetches the message's attachment into dest and returns
	// the local path written.
	DownloadMedia(ctx context.Context, msg domain.RawMessage, dest string) (string, error)
}

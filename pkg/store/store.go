// Package store is the remote relational mirror of a user's journal. The
// in-memory journal stays authoritative; this copy exists so a reinstalled
// or second device can hydrate.
package store

import (
	"context"
	"errors"

	"dreamdecode/pkg/domain"
)

// ErrNotFound is returned by lookups that must find a row.
var ErrNotFound = errors.New("record not found")

// Store defines persistence operations for users, dreams and dream conversations.
type Store interface {
	// users
	SaveUser(ctx context.Context, u domain.User) error
	GetUser(ctx context.Context, id string) (domain.User, bool, error)

	// dreams
	SaveDream(ctx context.Context, d domain.Dream) error
	GetDream(ctx context.Context, userID, id string) (domain.Dream, bool, error)
	ListDreams(ctx context.Context, userID string) ([]domain.Dream, error)
	DeleteDream(ctx context.Context, userID, id string) error

	// conversations
	AppendMessage(ctx context.Context, dreamID string, msg domain.ConversationMessage) error
	ListMessages(ctx context.Context, dreamID string, limit int) ([]domain.ConversationMessage, error)
}

// RemoteDream returns the copy of d that is sent to the remote mirror.
// art_style only exists in the local shape and has no remote column.
func RemoteDream(d domain.Dream) domain.Dream {
	d.ArtStyle = nil
	return d
}

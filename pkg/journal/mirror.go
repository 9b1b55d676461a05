package journal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"dreamdecode/pkg/domain"
	"dreamdecode/pkg/localstore"
	"dreamdecode/pkg/store"
)

// Mirror is a best-effort copy of the journal.
type Mirror interface {
	Name() string
	SaveDream(ctx context.Context, d domain.Dream) error
	DeleteDream(ctx context.Context, userID, id string) error
}

// UserMirror is implemented by mirrors that also keep the user profile.
type UserMirror interface {
	SaveUser(ctx context.Context, u domain.User) error
}

// Loader hydrates a journal from persistence.
type Loader interface {
	Name() string
	LoadDreams(ctx context.Context, userID string) ([]domain.Dream, error)
}

// SyncResult is the outcome of one mirror write.
type SyncResult struct {
	Mirror   string
	Op       string
	Err      error
	Duration time.Duration
}

// LocalMirror writes the full local shape, art style included, to SQLite.
type LocalMirror struct {
	Store *localstore.Store
}

func (LocalMirror) Name() string { return "local" }

func (m LocalMirror) SaveDream(ctx context.Context, d domain.Dream) error {
	return m.Store.SaveDream(ctx, d)
}

func (m LocalMirror) DeleteDream(ctx context.Context, userID, id string) error {
	return m.Store.DeleteDream(ctx, userID, id)
}

func (m LocalMirror) LoadDreams(ctx context.Context, userID string) ([]domain.Dream, error) {
	dreams, skipped, err := m.Store.LoadDreams(ctx, userID)
	if err != nil {
		return nil, err
	}
	if skipped > 0 {
		return dreams, fmt.Errorf("%d unreadable local dreams skipped", skipped)
	}
	return dreams, nil
}

// RemoteMirror writes to the relational store without the local-only fields.
type RemoteMirror struct {
	Store store.Store
}

func (RemoteMirror) Name() string { return "remote" }

func (m RemoteMirror) SaveDream(ctx context.Context, d domain.Dream) error {
	return m.Store.SaveDream(ctx, store.RemoteDream(d))
}

func (m RemoteMirror) DeleteDream(ctx context.Context, userID, id string) error {
	err := m.Store.DeleteDream(ctx, userID, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	return err
}

func (m RemoteMirror) SaveUser(ctx context.Context, u domain.User) error {
	return m.Store.SaveUser(ctx, u)
}

func (m RemoteMirror) LoadDreams(ctx context.Context, userID string) ([]domain.Dream, error) {
	return m.Store.ListDreams(ctx, userID)
}

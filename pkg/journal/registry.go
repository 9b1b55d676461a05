package journal

import (
	"context"
	"sync"

	"dreamdecode/internal/util"
	"dreamdecode/pkg/domain"
)

// Registry keeps one Store per user, hydrating it on first use from the
// first loader that answers.
type Registry struct {
	opts    Options
	loaders []Loader

	mu     sync.Mutex
	stores map[string]*Store
}

func NewRegistry(opts Options, loaders ...Loader) *Registry {
	return &Registry{opts: opts, loaders: loaders, stores: make(map[string]*Store)}
}

// Open returns the user's store, creating and hydrating it if needed. The
// profile passed in seeds a new store; an existing store keeps its own.
func (r *Registry) Open(ctx context.Context, user domain.User) *Store {
	r.mu.Lock()
	if s, ok := r.stores[user.ID]; ok {
		r.mu.Unlock()
		return s
	}
	r.mu.Unlock()

	dreams := r.hydrate(ctx, user.ID)

	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.stores[user.ID]; ok {
		return s
	}
	s := NewStore(user, dreams, r.opts)
	r.stores[user.ID] = s
	return s
}

// Lookup returns an already opened store.
func (r *Registry) Lookup(userID string) (*Store, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.stores[userID]
	return s, ok
}

// Evict drops the in-memory copy; the next Open hydrates again.
func (r *Registry) Evict(userID string) {
	r.mu.Lock()
	delete(r.stores, userID)
	r.mu.Unlock()
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.stores)
}

func (r *Registry) hydrate(ctx context.Context, userID string) []domain.Dream {
	logger := util.LoggerFromContext(ctx)
	for _, l := range r.loaders {
		dreams, err := l.LoadDreams(ctx, userID)
		if err != nil {
			logger.Warn("hydrate journal failed", "source", l.Name(), "user_id", userID, "err", err)
			if len(dreams) == 0 {
				continue
			}
		}
		if len(dreams) > 0 {
			return dreams
		}
	}
	return nil
}

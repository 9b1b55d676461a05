package store

import (
	"context"
	"sort"
	"sync"

	"dreamdecode/pkg/domain"
)

// MemoryStore is a process-local Store for development and tests.
type MemoryStore struct {
	mu       sync.RWMutex
	users    map[string]domain.User
	dreams   map[string]domain.Dream
	messages map[string][]domain.ConversationMessage
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:    make(map[string]domain.User),
		dreams:   make(map[string]domain.Dream),
		messages: make(map[string][]domain.ConversationMessage),
	}
}

func (s *MemoryStore) SaveUser(_ context.Context, u domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
	return nil
}

func (s *MemoryStore) GetUser(_ context.Context, id string) (domain.User, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	return u, ok, nil
}

func (s *MemoryStore) SaveDream(_ context.Context, d domain.Dream) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dreams[d.ID] = RemoteDream(d)
	return nil
}

func (s *MemoryStore) GetDream(_ context.Context, userID, id string) (domain.Dream, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.dreams[id]
	if !ok || d.UserID != userID {
		return domain.Dream{}, false, nil
	}
	return d, true, nil
}

func (s *MemoryStore) ListDreams(_ context.Context, userID string) ([]domain.Dream, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []domain.Dream{}
	for _, d := range s.dreams {
		if d.UserID == userID {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) DeleteDream(_ context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d, ok := s.dreams[id]; ok && d.UserID == userID {
		delete(s.dreams, id)
		delete(s.messages, id)
	}
	return nil
}

func (s *MemoryStore) AppendMessage(_ context.Context, dreamID string, msg domain.ConversationMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages[dreamID] = append(s.messages[dreamID], msg)
	return nil
}

func (s *MemoryStore) ListMessages(_ context.Context, dreamID string, limit int) ([]domain.ConversationMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs := s.messages[dreamID]
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return append([]domain.ConversationMessage(nil), msgs...), nil
}

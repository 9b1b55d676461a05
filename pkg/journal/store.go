package journal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"dreamdecode/internal/util"
	"dreamdecode/pkg/domain"
	"dreamdecode/pkg/insights"
)

var (
	// ErrProcessing is returned while another recording is being processed.
	ErrProcessing    = errors.New("a dream is already being processed")
	ErrDreamNotFound = errors.New("dream not found")
)

// Pending tracks the mirror writes started by one mutation. Mirror failures
// never undo the in-memory change; callers may wait and log them.
type Pending struct {
	g       errgroup.Group
	mu      sync.Mutex
	results []SyncResult
	once    sync.Once
}

// Wait blocks until every mirror write finished and returns their results.
func (p *Pending) Wait() []SyncResult {
	if p == nil {
		return nil
	}
	p.once.Do(func() { _ = p.g.Wait() })
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]SyncResult, len(p.results))
	copy(out, p.results)
	return out
}

// Err waits and joins every mirror error.
func (p *Pending) Err() error {
	var errs []error
	for _, r := range p.Wait() {
		if r.Err != nil {
			errs = append(errs, fmt.Errorf("%s %s: %w", r.Mirror, r.Op, r.Err))
		}
	}
	return errors.Join(errs...)
}

func (p *Pending) run(ctx context.Context, mirror, op string, fn func(context.Context) error, observe func(SyncResult)) {
	p.g.Go(func() error {
		start := time.Now()
		err := fn(ctx)
		res := SyncResult{Mirror: mirror, Op: op, Err: err, Duration: time.Since(start)}
		p.mu.Lock()
		p.results = append(p.results, res)
		p.mu.Unlock()
		if observe != nil {
			observe(res)
		}
		// Mirror errors are reported through results, not the group.
		return nil
	})
}

// Options configures a Store.
type Options struct {
	Mirrors []Mirror
	Logger  *slog.Logger
	// OnSync is called after every mirror write.
	OnSync func(SyncResult)
	// MirrorTimeout bounds each mirror write. Zero means no bound.
	MirrorTimeout time.Duration
	Now           func() time.Time
}

// Store owns one user's State. All mutations go through Reduce.
//
// Writes to one mirror run in the order their mutations were applied: each
// write waits for the previous write to the same mirror, so a slow save can
// never land after the delete that followed it.
type Store struct {
	mu    sync.RWMutex
	state State
	opts  Options
	// tails[i] is closed when the last queued write to Mirrors[i] finishes.
	// Guarded by mu.
	tails []chan struct{}
}

func NewStore(user domain.User, dreams []domain.Dream, opts Options) *Store {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	s := &Store{opts: opts, tails: make([]chan struct{}, len(opts.Mirrors))}
	s.state = Reduce(Reduce(State{}, SetUser{User: user}), SetDreams{Dreams: dreams})
	return s
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := s.state
	st.Dreams = append([]domain.Dream(nil), s.state.Dreams...)
	return st
}

func (s *Store) User() domain.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.User
}

// Dreams returns the dreams newest first.
func (s *Store) Dreams() []domain.Dream {
	return s.Snapshot().Dreams
}

func (s *Store) Dream(id string) (domain.Dream, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := indexOf(s.state.Dreams, id); i >= 0 {
		return s.state.Dreams[i], true
	}
	return domain.Dream{}, false
}

// Dispatch applies actions that need no persistence.
func (s *Store) Dispatch(actions ...Action) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range actions {
		s.state = Reduce(s.state, a)
	}
	return s.state
}

// Insights computes the aggregation report over the current dreams.
func (s *Store) Insights(w insights.Weights) insights.Report {
	return insights.Compute(s.Dreams(), s.opts.Now(), w)
}

// BeginProcessing claims the single processing slot. The returned func
// releases it and is safe to call more than once.
func (s *Store) BeginProcessing() (func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Processing {
		return nil, ErrProcessing
	}
	s.state = Reduce(s.state, SetProcessing{Active: true})
	var once sync.Once
	return func() {
		once.Do(func() { s.Dispatch(SetProcessing{Active: false}) })
	}, nil
}

// RecordDream adds a freshly processed dream and advances the streak.
func (s *Store) RecordDream(ctx context.Context, d domain.Dream) (domain.User, *Pending) {
	s.mu.Lock()
	defer s.mu.Unlock()
	streak := insights.AdvanceStreak(s.state.User, d.CreatedAt)
	user := s.state.User
	user.StreakCurrent = streak.Current
	user.StreakLongest = streak.Longest
	last := streak.LastDate
	user.LastDreamDate = &last
	s.state = Reduce(Reduce(s.state, AddDream{Dream: d}), SetUser{User: user})

	p := &Pending{}
	s.mirrorDreamLocked(ctx, p, d)
	s.mirrorUserLocked(ctx, p, user)
	return user, p
}

// AddDream inserts or replaces a dream without touching the streak.
func (s *Store) AddDream(ctx context.Context, d domain.Dream) *Pending {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = Reduce(s.state, AddDream{Dream: d})
	p := &Pending{}
	s.mirrorDreamLocked(ctx, p, d)
	return p
}

func (s *Store) UpdateDream(ctx context.Context, id string, patch domain.DreamPatch) (domain.Dream, *Pending, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := indexOf(s.state.Dreams, id)
	if i < 0 {
		return domain.Dream{}, nil, ErrDreamNotFound
	}
	s.state = Reduce(s.state, UpdateDream{ID: id, Patch: patch})
	updated := s.state.Dreams[i]
	p := &Pending{}
	s.mirrorDreamLocked(ctx, p, updated)
	return updated, p, nil
}

func (s *Store) RemoveDream(ctx context.Context, id string) (*Pending, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if indexOf(s.state.Dreams, id) < 0 {
		return nil, ErrDreamNotFound
	}
	s.state = Reduce(s.state, RemoveDream{ID: id})
	userID := s.state.User.ID

	p := &Pending{}
	for i, m := range s.opts.Mirrors {
		s.enqueueLocked(ctx, p, i, "delete_dream", func(ctx context.Context) error {
			return m.DeleteDream(ctx, userID, id)
		})
	}
	return p, nil
}

// UpdateUser applies a profile patch and mirrors the user.
func (s *Store) UpdateUser(ctx context.Context, patch domain.UserPatch) (domain.User, *Pending) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user := patch.Apply(s.state.User)
	s.state = Reduce(s.state, SetUser{User: user})
	p := &Pending{}
	s.mirrorUserLocked(ctx, p, user)
	return user, p
}

func (s *Store) mirrorDreamLocked(ctx context.Context, p *Pending, d domain.Dream) {
	for i, m := range s.opts.Mirrors {
		s.enqueueLocked(ctx, p, i, "save_dream", func(ctx context.Context) error {
			return m.SaveDream(ctx, d)
		})
	}
}

func (s *Store) mirrorUserLocked(ctx context.Context, p *Pending, u domain.User) {
	for i, m := range s.opts.Mirrors {
		um, ok := m.(UserMirror)
		if !ok {
			continue
		}
		s.enqueueLocked(ctx, p, i, "save_user", func(ctx context.Context) error {
			return um.SaveUser(ctx, u)
		})
	}
}

// enqueueLocked chains fn behind the previous write to mirror i. The caller
// holds s.mu, so lane order matches the order mutations hit the state.
func (s *Store) enqueueLocked(ctx context.Context, p *Pending, i int, op string, fn func(context.Context) error) {
	prev := s.tails[i]
	done := make(chan struct{})
	s.tails[i] = done
	ctx = s.detach(ctx)
	write := s.bounded(fn)
	p.run(ctx, s.opts.Mirrors[i].Name(), op, func(ctx context.Context) error {
		defer close(done)
		if prev != nil {
			<-prev
		}
		return write(ctx)
	}, s.observe(ctx))
}

// detach keeps request values but drops cancellation: leaving a request
// does not abort its mirror writes.
func (s *Store) detach(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return context.WithoutCancel(ctx)
}

func (s *Store) bounded(fn func(context.Context) error) func(context.Context) error {
	if s.opts.MirrorTimeout <= 0 {
		return fn
	}
	return func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, s.opts.MirrorTimeout)
		defer cancel()
		return fn(ctx)
	}
}

func (s *Store) observe(ctx context.Context) func(SyncResult) {
	return func(r SyncResult) {
		if r.Err != nil {
			logger := s.opts.Logger
			if logger == nil {
				logger = util.LoggerFromContext(ctx)
			}
			logger.Warn("mirror write failed", "mirror", r.Mirror, "op", r.Op, "err", r.Err)
		}
		if s.opts.OnSync != nil {
			s.opts.OnSync(r)
		}
	}
}

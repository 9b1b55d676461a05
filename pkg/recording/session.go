// Package recording drives a single dream recording from capture to a
// processed dream.
package recording

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// MinDuration is the shortest recording that is sent for processing.
const MinDuration = 3 * time.Second

type State string

const (
	StateIdle       State = "idle"
	StateRecording  State = "recording"
	StateDiscarded  State = "discarded"
	StateProcessing State = "processing"
	StateSucceeded  State = "succeeded"
	StateFailed     State = "failed"
)

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateDiscarded || s == StateSucceeded || s == StateFailed
}

var (
	ErrTooShort          = errors.New("recording too short")
	ErrEmpty             = errors.New("recording has no audio")
	ErrInvalidTransition = errors.New("invalid recording transition")
)

// Clip is captured audio ready for processing.
type Clip struct {
	Data     []byte
	MIMEType string
	Duration time.Duration
}

// AudioRecorder is the capture capability. Implementations are chosen when
// the application is composed.
type AudioRecorder interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) (Clip, error)
}

// Session is the state machine of one recording. It is safe for concurrent use.
type Session struct {
	recorder    AudioRecorder
	minDuration time.Duration

	mu    sync.Mutex
	state State
	clip  Clip
	err   error
}

func NewSession(recorder AudioRecorder) *Session {
	return &Session{recorder: recorder, minDuration: MinDuration, state: StateIdle}
}

// WithMinDuration overrides the discard threshold.
func (s *Session) WithMinDuration(d time.Duration) *Session {
	s.minDuration = d
	return s
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Err returns the failure that ended the session, if any.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Start moves idle to recording.
func (s *Session) Start(ctx context.Context) error {
	if err := s.transition(StateIdle, StateRecording); err != nil {
		return err
	}
	if err := s.recorder.Start(ctx); err != nil {
		s.finish(StateFailed, fmt.Errorf("start recorder: %w", err))
		return err
	}
	return nil
}

// Stop ends capture. Clips shorter than the minimum are discarded and
// ErrTooShort is returned; otherwise the session moves to processing.
func (s *Session) Stop(ctx context.Context) (Clip, error) {
	if err := s.expect(StateRecording); err != nil {
		return Clip{}, err
	}
	clip, err := s.recorder.Stop(ctx)
	if err != nil {
		s.finish(StateFailed, fmt.Errorf("stop recorder: %w", err))
		return Clip{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if clip.Duration < s.minDuration {
		s.state = StateDiscarded
		return Clip{}, fmt.Errorf("%w: %s", ErrTooShort, clip.Duration.Round(time.Millisecond))
	}
	s.state = StateProcessing
	s.clip = clip
	return clip, nil
}

// Process runs fn over the captured clip. A nil result moves the session to
// succeeded; an error moves it to failed and drops the clip.
func (s *Session) Process(ctx context.Context, fn func(context.Context, Clip) error) error {
	s.mu.Lock()
	if s.state != StateProcessing {
		state := s.state
		s.mu.Unlock()
		return fmt.Errorf("%w: process from %s", ErrInvalidTransition, state)
	}
	clip := s.clip
	s.mu.Unlock()

	if err := fn(ctx, clip); err != nil {
		s.finish(StateFailed, err)
		return err
	}
	s.finish(StateSucceeded, nil)
	return nil
}

func (s *Session) transition(from, to State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != from {
		return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, s.state, to)
	}
	s.state = to
	return nil
}

func (s *Session) expect(state State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != state {
		return fmt.Errorf("%w: expected %s, in %s", ErrInvalidTransition, state, s.state)
	}
	return nil
}

func (s *Session) finish(state State, err error) {
	s.mu.Lock()
	s.state = state
	s.err = err
	s.clip = Clip{}
	s.mu.Unlock()
}

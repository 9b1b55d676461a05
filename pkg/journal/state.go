// Package journal holds a user's dreams in memory and mirrors every change
// to local and remote persistence on a best-effort basis.
package journal

import (
	"slices"

	"dreamdecode/pkg/domain"
)

// State is the application state of one user's journal. Dreams are kept
// newest first.
type State struct {
	User       domain.User
	Dreams     []domain.Dream
	Processing bool
	Recording  bool
}

// Action is a state mutation applied by Reduce.
type Action interface {
	apply(State) State
}

type (
	SetUser     struct{ User domain.User }
	SetDreams   struct{ Dreams []domain.Dream }
	AddDream    struct{ Dream domain.Dream }
	UpdateDream struct {
		ID    string
		Patch domain.DreamPatch
	}
	RemoveDream   struct{ ID string }
	SetProcessing struct{ Active bool }
	SetRecording  struct{ Active bool }
)

// Reduce returns the state after a. The input state is never modified.
func Reduce(s State, a Action) State {
	if a == nil {
		return s
	}
	return a.apply(s)
}

func (a SetUser) apply(s State) State {
	s.User = a.User
	return s
}

func (a SetDreams) apply(s State) State {
	s.Dreams = slices.Clone(a.Dreams)
	if s.Dreams == nil {
		s.Dreams = []domain.Dream{}
	}
	return s
}

// AddDream puts the dream at the front, replacing an older copy with the same id.
func (a AddDream) apply(s State) State {
	out := make([]domain.Dream, 0, len(s.Dreams)+1)
	out = append(out, a.Dream)
	for _, d := range s.Dreams {
		if d.ID != a.Dream.ID {
			out = append(out, d)
		}
	}
	s.Dreams = out
	return s
}

func (a UpdateDream) apply(s State) State {
	i := indexOf(s.Dreams, a.ID)
	if i < 0 {
		return s
	}
	s.Dreams = slices.Clone(s.Dreams)
	s.Dreams[i] = a.Patch.Apply(s.Dreams[i])
	return s
}

func (a RemoveDream) apply(s State) State {
	i := indexOf(s.Dreams, a.ID)
	if i < 0 {
		return s
	}
	s.Dreams = slices.Delete(slices.Clone(s.Dreams), i, i+1)
	return s
}

func (a SetProcessing) apply(s State) State {
	s.Processing = a.Active
	return s
}

func (a SetRecording) apply(s State) State {
	s.Recording = a.Active
	return s
}

func indexOf(dreams []domain.Dream, id string) int {
	return slices.IndexFunc(dreams, func(d domain.Dream) bool { return d.ID == id })
}

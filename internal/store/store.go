// Package store is the explicit application-state container: an auth slice
// and the active-meeting cache. It replaces any ambient global store; the
// instance is created in cmd and passed down to every component.
package store

import (
	"sync"

	"counselgo/client/internal/models"
)

type AuthState struct {
	UserID   string
	Role     string
	Token    string
	LoggedIn bool
}

// State is a value snapshot; listeners receive copies, never shared pointers.
type State struct {
	Auth          AuthState
	ActiveMeeting *models.Meeting
}

// Listener отримує знімок стану після кожної зміни.
type Listener func(State)

type Store struct {
	mu        sync.RWMutex
	state     State
	listeners map[int]Listener
	nextID    int
}

func New() *Store {
	return &Store{listeners: make(map[int]Listener)}
}

// Snapshot returns a copy of the current state. The active meeting is cloned
// so no caller can mutate the cache in place; writes go through the defined
// actions only.
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneState(s.state)
}

// Subscribe registers a listener and returns its unsubscribe func.
func (s *Store) Subscribe(listener Listener) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = listener
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// --- Actions ---

func (s *Store) Login(identity models.Identity, token string) {
	s.apply(func(state *State) {
		state.Auth = AuthState{
			UserID:   identity.UserID,
			Role:     identity.Role,
			Token:    token,
			LoggedIn: true,
		}
	})
}

// Logout скидає auth-слайс та кеш активної зустрічі.
func (s *Store) Logout() {
	s.apply(func(state *State) {
		state.Auth = AuthState{}
		state.ActiveMeeting = nil
	})
}

// SetActiveMeeting replaces the active-meeting cache with the authoritative
// record from a re-fetch. nil means "no active booking". Last write wins.
func (s *Store) SetActiveMeeting(meeting *models.Meeting) {
	s.apply(func(state *State) {
		if meeting == nil {
			state.ActiveMeeting = nil
			return
		}
		clone := *meeting
		state.ActiveMeeting = &clone
	})
}

func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Auth.Token
}

func (s *Store) ActiveMeeting() *models.Meeting {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state.ActiveMeeting == nil {
		return nil
	}
	clone := *s.state.ActiveMeeting
	return &clone
}

func (s *Store) apply(mutate func(*State)) {
	s.mu.Lock()
	mutate(&s.state)
	snapshot := cloneState(s.state)
	listeners := make([]Listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}
	s.mu.Unlock()

	for _, l := range listeners {
		l(snapshot)
	}
}

func cloneState(state State) State {
	out := state
	if state.ActiveMeeting != nil {
		clone := *state.ActiveMeeting
		out.ActiveMeeting = &clone
	}
	return out
}

// Package sessionregistry is the Session Registry (SESS): the CM Core's
// authoritative map of every active client communication session and its
// state machine (CONNECTING -> AUTHENTICATED -> ACTIVE <-> SUSPENDED ->
// CLOSED). It follows the same mutex-guarded map shape as the teacher's
// pkg/auth/auth.go Service.sessions table, generalized from a single
// token-keyed session to the full state machine this spec's north-bound
// protocol requires.
package sessionregistry

import (
	"fmt"
	"sync"
	"time"
)

// State is one point in the session lifecycle (§4.2).
type State int

const (
	StateConnecting State = iota
	StateAuthenticated
	StateActive
	StateSuspended
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "CONNECTING"
	case StateAuthenticated:
		return "AUTHENTICATED"
	case StateActive:
		return "ACTIVE"
	case StateSuspended:
		return "SUSPENDED"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// validTransitions enumerates the state machine's legal edges (§4.2, §8).
var validTransitions = map[State]map[State]bool{
	StateConnecting:    {StateAuthenticated: true, StateClosed: true},
	StateAuthenticated: {StateActive: true, StateClosed: true},
	StateActive:        {StateSuspended: true, StateClosed: true},
	StateSuspended:     {StateActive: true, StateClosed: true},
	StateClosed:        {},
}

// Session is one client's admitted connection: identity, current link
// binding, granted bandwidth, and subscription level.
type Session struct {
	SessionID           string
	ClientID            string
	ClientRealm         string // stored explicitly at auth time, see SPEC_FULL.md Open Question 1
	ProfileName         string
	State               State
	CurrentLink         string
	GrantedBandwidthKbps   uint32
	GrantedRetBandwidthKbps uint32
	SubscriptionLevel   int
	LastLinkSwitchAt    time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// Registry is the mutex-guarded Session Registry.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	maxSessions int
}

// NewRegistry constructs an empty registry bounded at maxSessions concurrent entries.
func NewRegistry(maxSessions int) *Registry {
	if maxSessions <= 0 {
		maxSessions = 256
	}
	return &Registry{sessions: make(map[string]*Session), maxSessions: maxSessions}
}

// Create admits a new session in CONNECTING state. Returns an error if the
// registry is at capacity or sessionID is already in use.
func (r *Registry) Create(sessionID, clientID string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[sessionID]; exists {
		return nil, fmt.Errorf("sessionregistry: session %q already exists", sessionID)
	}
	if len(r.sessions) >= r.maxSessions {
		return nil, fmt.Errorf("sessionregistry: at capacity (%d sessions)", r.maxSessions)
	}

	now := time.Now()
	sess := &Session{
		SessionID: sessionID,
		ClientID:  clientID,
		State:     StateConnecting,
		CreatedAt: now,
		UpdatedAt: now,
	}
	r.sessions[sessionID] = sess
	return sess, nil
}

// Get returns a copy of the named session's current state.
func (r *Registry) Get(sessionID string) (Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sess, ok := r.sessions[sessionID]
	if !ok {
		return Session{}, false
	}
	return *sess, true
}

// Transition moves a session to a new state, rejecting any edge not present
// in validTransitions (§4.2 invariant: the state machine never skips a step).
// A transition to CLOSED also removes the session from the registry.
func (r *Registry) Transition(sessionID string, to State) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[sessionID]
	if !ok {
		return fmt.Errorf("sessionregistry: unknown session %q", sessionID)
	}
	if !validTransitions[sess.State][to] {
		return fmt.Errorf("sessionregistry: illegal transition %s -> %s for session %q", sess.State, to, sessionID)
	}
	sess.State = to
	sess.UpdatedAt = time.Now()
	if to == StateClosed {
		delete(r.sessions, sessionID)
	}
	return nil
}

// Authenticate records the realm resolved at auth time and moves the
// session to AUTHENTICATED. ClientRealm is never re-derived from ClientID
// later (Open Question 1) — it is fixed here, at the single point the
// protocol actually supplies it.
func (r *Registry) Authenticate(sessionID, clientRealm, profileName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[sessionID]
	if !ok {
		return fmt.Errorf("sessionregistry: unknown session %q", sessionID)
	}
	if !validTransitions[sess.State][StateAuthenticated] {
		return fmt.Errorf("sessionregistry: illegal transition %s -> AUTHENTICATED for session %q", sess.State, sessionID)
	}
	sess.State = StateAuthenticated
	sess.ClientRealm = clientRealm
	sess.ProfileName = profileName
	sess.UpdatedAt = time.Now()
	return nil
}

// BindLink records the chosen link and granted bandwidth for an active
// session. The caller must apply this before announcing the change over
// MNTR (§4.6 ordering invariant): state mutation happens here, first.
func (r *Registry) BindLink(sessionID, linkName string, grantedFwd, grantedRet uint32) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[sessionID]
	if !ok {
		return fmt.Errorf("sessionregistry: unknown session %q", sessionID)
	}
	sess.CurrentLink = linkName
	sess.GrantedBandwidthKbps = grantedFwd
	sess.GrantedRetBandwidthKbps = grantedRet
	sess.LastLinkSwitchAt = time.Now()
	sess.UpdatedAt = time.Now()
	return nil
}

// SetSubscriptionLevel records the MSCR subscription bitmask for a session.
func (r *Registry) SetSubscriptionLevel(sessionID string, level int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[sessionID]
	if !ok {
		return fmt.Errorf("sessionregistry: unknown session %q", sessionID)
	}
	sess.SubscriptionLevel = level
	sess.UpdatedAt = time.Now()
	return nil
}

// Close transitions a session to CLOSED and removes it from the active map.
func (r *Registry) Close(sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[sessionID]
	if !ok {
		return fmt.Errorf("sessionregistry: unknown session %q", sessionID)
	}
	sess.State = StateClosed
	delete(r.sessions, sessionID)
	return nil
}

// All returns a snapshot copy of every active session.
func (r *Registry) All() []Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, *s)
	}
	return out
}

// ByLink returns every session currently bound to the given link, used by
// the Push Engine to fan out force-send MNTR on a link status change
// (magic_cic_on_link_status_change).
func (r *Registry) ByLink(linkName string) []Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Session
	for _, s := range r.sessions {
		if s.CurrentLink == linkName {
			out = append(out, *s)
		}
	}
	return out
}

// SubscribedTo returns every session whose subscription level implies
// interest in the given bitmask bit (need_magic/need_dlm gating, §4.6).
func (r *Registry) SubscribedTo(bit int) []Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Session
	for _, s := range r.sessions {
		if s.SubscriptionLevel&bit != 0 {
			out = append(out, *s)
		}
	}
	return out
}

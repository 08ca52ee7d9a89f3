package api

import (
	"sync"

	"github.com/google/uuid"
	"github.com/stacks/fines-engine/fines"
)

// =============================================================================
// SESSION REGISTRY
// =============================================================================

// SessionRegistry holds settlement sessions keyed by session id. It also
// enforces the caller precondition that at most one live session exists per
// borrow id. The engine itself does not prevent that, and violating it can
// double-flip shelf status and duplicate receipts.
//
// Claiming a borrow id and creating its session are separate steps (the
// receipt is emitted in between), so the claim is taken up front with Reserve
// and either consumed by Register or dropped with Release. A concurrent
// initiation for the same borrow id loses at Reserve, never after. Terminal
// sessions are evicted once their borrow id is claimed again.
type SessionRegistry struct {
	mu       sync.Mutex
	sessions map[string]*entry
	byBorrow map[string]string   // borrowID -> live session id
	reserved map[string]struct{} // borrowIDs claimed but not yet registered
}

type entry struct {
	borrowID string
	session  *fines.Session
}

func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{
		sessions: make(map[string]*entry),
		byBorrow: make(map[string]string),
		reserved: make(map[string]struct{}),
	}
}

// Reserve claims the borrow id for a session about to be created. Returns
// false when a live session or another claim already holds it.
func (r *SessionRegistry) Reserve(borrowID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, claimed := r.reserved[borrowID]; claimed {
		return false
	}
	if r.liveLocked(borrowID) {
		return false
	}
	r.reserved[borrowID] = struct{}{}
	return true
}

// Release drops a claim whose session never materialized.
func (r *SessionRegistry) Release(borrowID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.reserved, borrowID)
}

func (r *SessionRegistry) liveLocked(borrowID string) bool {
	id, ok := r.byBorrow[borrowID]
	if !ok {
		return false
	}
	e := r.sessions[id]
	if e == nil || e.session.State().Terminal() {
		// Resolved; evict so the registry does not accumulate terminal
		// sessions across the server's lifetime.
		delete(r.sessions, id)
		delete(r.byBorrow, borrowID)
		return false
	}
	return true
}

// Register stores a session, consuming the claim taken by Reserve, and
// returns its new session id.
func (r *SessionRegistry) Register(borrowID string, s *fines.Session) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.reserved, borrowID)
	id := uuid.New().String()
	r.sessions[id] = &entry{borrowID: borrowID, session: s}
	r.byBorrow[borrowID] = id
	return id
}

// Get returns a session and its borrow id.
func (r *SessionRegistry) Get(sessionID string) (*fines.Session, string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.sessions[sessionID]
	if !ok {
		return nil, "", false
	}
	return e.session, e.borrowID, true
}

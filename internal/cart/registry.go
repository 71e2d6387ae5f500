package cart

import (
	"sync"
	"time"
)

const draftIdleTTL = 30 * time.Minute

type draftEntry struct {
	draft      *Draft
	lastAccess time.Time
}

// Registry keeps at most one open draft per session. Drafts live in memory
// only; a process restart discards them, mirroring the fact that a draft
// never survives a full page reload. Abandoned drafts are swept after
// draftIdleTTL without access.
type Registry struct {
	mu     sync.Mutex
	drafts map[string]*draftEntry

	stopCh chan struct{}
}

func NewRegistry() *Registry {
	r := &Registry{
		drafts: make(map[string]*draftEntry),
		stopCh: make(chan struct{}),
	}
	go r.cleanupLoop()
	return r
}

// Open installs a fresh draft for the session, replacing any previous one.
func (r *Registry) Open(sessionID string, d *Draft) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.drafts[sessionID] = &draftEntry{draft: d, lastAccess: time.Now()}
}

func (r *Registry) Get(sessionID string) (*Draft, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.drafts[sessionID]
	if !ok {
		return nil, false
	}
	e.lastAccess = time.Now()
	return e.draft, true
}

// Close discards the session's draft, on cancel, logout or successful
// submit.
func (r *Registry) Close(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.drafts, sessionID)
}

func (r *Registry) cleanupLoop() {
	ticker := time.NewTicker(draftIdleTTL)
	defer ticker.Stop()
	for {
		select {
		case <-r.stopCh:
			return
		case <-ticker.C:
			r.sweep(time.Now().Add(-draftIdleTTL))
		}
	}
}

// sweep drops every draft last touched before cutoff.
func (r *Registry) sweep(cutoff time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for sessionID, e := range r.drafts {
		if e.lastAccess.Before(cutoff) {
			delete(r.drafts, sessionID)
		}
	}
}

func (r *Registry) Stop() {
	close(r.stopCh)
}

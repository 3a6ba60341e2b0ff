package shoporders

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/egannguyen/instaprint/internal/entity"
	"github.com/google/uuid"
)

// Registry holds the live synchronizers of the API process by session id.
// Sessions that see no request for cfg.SessionIdle are closed by a reaper
// that runs until Close.
type Registry struct {
	deps Deps
	cfg  Config

	mu       sync.RWMutex
	sessions map[string]*session

	stop chan struct{}
	done chan struct{}
	once sync.Once
}

type session struct {
	syncer   *Synchronizer
	lastSeen time.Time
}

func NewRegistry(deps Deps, cfg Config) *Registry {
	r := &Registry{
		deps:     deps,
		cfg:      cfg.withDefaults(),
		sessions: make(map[string]*session),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go r.reaper()
	return r
}

// Open starts a synchronizer and registers it. When the operator owns
// several shops and shopID is empty, the error is entity.ErrSelectionRequired
// and the returned status lists the shops to choose from.
func (r *Registry) Open(ctx context.Context, ownerID, shopID string) (string, Status, error) {
	if ownerID == "" {
		return "", Status{}, fmt.Errorf("%w: operator id is required", entity.ErrValidation)
	}

	syncer := New(r.deps, r.cfg, ownerID)
	if err := syncer.Start(ctx, shopID); err != nil {
		status := syncer.Status()
		syncer.Close()
		return "", status, err
	}

	id := uuid.NewString()
	r.mu.Lock()
	r.sessions[id] = &session{syncer: syncer, lastSeen: r.cfg.Now()}
	r.mu.Unlock()
	return id, syncer.Status(), nil
}

// Get looks a session up and counts as activity on it.
func (r *Registry) Get(id string) (*Synchronizer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sess, ok := r.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session %s: %w", id, entity.ErrNotFound)
	}
	sess.lastSeen = r.cfg.Now()
	return sess.syncer, nil
}

// Remove closes and forgets a session.
func (r *Registry) Remove(id string) error {
	r.mu.Lock()
	sess, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("session %s: %w", id, entity.ErrNotFound)
	}
	return sess.syncer.Close()
}

// Len is the number of open sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

func (r *Registry) reaper() {
	defer close(r.done)
	ticker := time.NewTicker(r.cfg.SessionIdle / 4)
	defer ticker.Stop()
	for {
		select {
		case <-r.stop:
			return
		case <-ticker.C:
			r.reap()
		}
	}
}

// reap closes the sessions idle for longer than cfg.SessionIdle and
// reports how many it closed.
func (r *Registry) reap() int {
	cutoff := r.cfg.Now().Add(-r.cfg.SessionIdle)
	var idle []*Synchronizer
	r.mu.Lock()
	for id, sess := range r.sessions {
		if sess.lastSeen.Before(cutoff) {
			delete(r.sessions, id)
			idle = append(idle, sess.syncer)
			slog.Info("Closing idle operator session", "session_id", id, "owner_id", sess.syncer.ownerID, "last_seen", sess.lastSeen)
		}
	}
	r.mu.Unlock()

	for _, syncer := range idle {
		if err := syncer.Close(); err != nil {
			slog.Warn("Failed to close idle session", "owner_id", syncer.ownerID, "err", err)
		}
	}
	return len(idle)
}

// Close stops the reaper and closes every session.
func (r *Registry) Close() error {
	r.once.Do(func() { close(r.stop) })
	<-r.done

	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*session)
	r.mu.Unlock()

	for _, sess := range sessions {
		sess.syncer.Close()
	}
	return nil
}

package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dgnsrekt/signaldash/internal/relay"
	"github.com/dgnsrekt/signaldash/internal/view"
)

// ErrNotFound is returned for unknown session ids.
var ErrNotFound = errors.New("session: not found")

// ControllerFactory builds the controller that renders into doc.
type ControllerFactory func(doc *view.Document) (*view.Controller, error)

// Options configures a Registry.
type Options struct {
	NewController ControllerFactory
	// IdleTTL is how long a session without subscribers survives. Zero disables sweeping.
	IdleTTL time.Duration
	// OnCount, when set, receives the session count after every change.
	OnCount func(n int)
}

// Registry holds the open sessions.
type Registry struct {
	newController ControllerFactory
	idleTTL       time.Duration
	onCount       func(int)

	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewRegistry(opts Options) *Registry {
	return &Registry{
		newController: opts.NewController,
		idleTTL:       opts.IdleTTL,
		onCount:       opts.OnCount,
		sessions:      make(map[string]*Session),
	}
}

// Create opens a new session.
func (r *Registry) Create() (*Session, error) {
	if r.newController == nil {
		return nil, errors.New("session: no controller factory")
	}
	broker := relay.NewBroker()
	doc := view.NewDocument(func(p view.Patch) {
		broker.Publish(patchEvent(p))
	})
	ctrl, err := r.newController(doc)
	if err != nil {
		return nil, fmt.Errorf("session: build controller: %w", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		id:        uuid.NewString(),
		createdAt: time.Now().UTC(),
		doc:       doc,
		ctrl:      ctrl,
		broker:    broker,
		ctx:       ctx,
		cancel:    cancel,
	}
	s.Touch()

	r.mu.Lock()
	r.sessions[s.id] = s
	n := len(r.sessions)
	r.mu.Unlock()
	r.count(n)

	slog.Info("session created", "session", s.id)
	return s, nil
}

// Get returns the session with id.
func (r *Registry) Get(id string) (*Session, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	r.mu.RLock()
	s, ok := r.sessions[id]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return s, nil
}

// Resolve adapts Get to relay.Resolver.
func (r *Registry) Resolve(id string) (relay.Channel, bool) {
	s, err := r.Get(id)
	if err != nil {
		return nil, false
	}
	return s, true
}

// List returns every session ordered by creation time.
func (r *Registry) List() []Info {
	r.mu.RLock()
	out := make([]Info, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s.Info())
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Len returns the number of open sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Delete closes and removes a session.
func (r *Registry) Delete(id string) error {
	r.mu.Lock()
	s, ok := r.sessions[id]
	if ok {
		delete(r.sessions, id)
	}
	n := len(r.sessions)
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	s.close()
	r.count(n)
	slog.Info("session closed", "session", id)
	return nil
}

// RefreshTimestamps re-derives the time-ago text on every session and
// returns how many changed. It never calls the backend.
func (r *Registry) RefreshTimestamps(now time.Time) int {
	changed := 0
	for _, s := range r.snapshot() {
		if s.ctrl.RefreshTimestamp(now) {
			changed++
		}
	}
	return changed
}

// Sweep closes sessions that have no subscribers and were idle past the TTL.
func (r *Registry) Sweep(now time.Time) int {
	if r.idleTTL <= 0 {
		return 0
	}
	closed := 0
	for _, s := range r.snapshot() {
		if s.broker.ClientCount() > 0 || now.Sub(s.LastSeen()) < r.idleTTL {
			continue
		}
		if err := r.Delete(s.id); err == nil {
			closed++
		}
	}
	if closed > 0 {
		slog.Info("idle sessions swept", "closed", closed)
	}
	return closed
}

// Close closes every session.
func (r *Registry) Close() {
	for _, s := range r.snapshot() {
		_ = r.Delete(s.id)
	}
}

func (r *Registry) snapshot() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	return out
}

func (r *Registry) count(n int) {
	if r.onCount != nil {
		r.onCount(n)
	}
}

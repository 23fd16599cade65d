package handlers

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sr22fit/checkout-web/internal/checkout"
	"github.com/sr22fit/checkout-web/pkg/logging"
)

// SessionGauge receives the number of live sessions.
type SessionGauge interface {
	SetActiveSessions(n int)
}

// RegistryOptions configures a Registry.
type RegistryOptions struct {
	// Session is the template every new checkout.Session is built from.
	Session checkout.Options
	Store   checkout.SnapshotStore
	TTL     time.Duration
	Logger  *logging.Logger
	Gauge   SessionGauge
}

// Registry owns the live checkout sessions of this process, keyed by the
// session cookie. Idle sessions are unmounted by Sweep; their snapshots let
// any process rebuild them later.
type Registry struct {
	opts   checkout.Options
	store  checkout.SnapshotStore
	ttl    time.Duration
	logger *logging.Logger
	gauge  SessionGauge
	now    func() time.Time

	mu       sync.Mutex
	sessions map[string]*liveSession
}

type liveSession struct {
	session  *checkout.Session
	lastSeen time.Time
}

// NewRegistry creates an empty registry.
func NewRegistry(opts RegistryOptions) *Registry {
	if opts.Logger == nil {
		opts.Logger = logging.Default()
	}
	if opts.TTL <= 0 {
		opts.TTL = 30 * time.Minute
	}
	if opts.Store == nil {
		opts.Store = checkout.NewMemorySnapshotStore(opts.TTL)
	}
	if opts.Session.Logger == nil {
		opts.Session.Logger = opts.Logger
	}
	return &Registry{
		opts:     opts.Session,
		store:    opts.Store,
		ttl:      opts.TTL,
		logger:   opts.Logger,
		gauge:    opts.Gauge,
		now:      time.Now,
		sessions: make(map[string]*liveSession),
	}
}

// Create mounts a new session with the page query and registers it. The
// session is registered even when bootstrap fails so the blocking error
// can be rendered; the bootstrap error is returned alongside it.
func (r *Registry) Create(ctx context.Context, query url.Values) (string, *checkout.Session, error) {
	id := uuid.NewString()
	sess := checkout.NewSession(r.opts)
	err := sess.Bootstrap(ctx, query)
	r.put(id, sess)
	r.Persist(ctx, id, sess)
	return id, sess, err
}

// Get returns the live session for id. A session unknown to this process is
// rebuilt from its snapshot: bootstrapped again, then restored.
func (r *Registry) Get(ctx context.Context, id string) (*checkout.Session, bool) {
	if id == "" {
		return nil, false
	}
	r.mu.Lock()
	if live, ok := r.sessions[id]; ok {
		live.lastSeen = r.now()
		r.mu.Unlock()
		return live.session, true
	}
	r.mu.Unlock()

	snap, err := r.store.Load(ctx, id)
	if err != nil {
		if !errors.Is(err, checkout.ErrSnapshotNotFound) {
			r.logger.Warn("session snapshot unavailable", "error", err)
		}
		return nil, false
	}
	sess := checkout.NewSession(r.opts)
	if err := sess.Bootstrap(ctx, nil); err != nil {
		r.logger.Warn("rebuilt session failed to bootstrap", "error", err)
	}
	if err := sess.Restore(*snap); err != nil {
		sess.Close()
		return nil, false
	}

	r.mu.Lock()
	if live, ok := r.sessions[id]; ok {
		// Another request rebuilt it first.
		r.mu.Unlock()
		sess.Close()
		return live.session, true
	}
	r.sessions[id] = &liveSession{session: sess, lastSeen: r.now()}
	n := len(r.sessions)
	r.mu.Unlock()
	r.report(n)
	r.logger.Info("session rebuilt from snapshot")
	return sess, true
}

// Persist writes the session's snapshot. Failures are logged; the live
// session stays authoritative.
func (r *Registry) Persist(ctx context.Context, id string, sess *checkout.Session) {
	if err := r.store.Save(ctx, id, sess.Snapshot()); err != nil {
		r.logger.Warn("session snapshot not saved", "error", err)
	}
}

// Remove unmounts the session and forgets its snapshot.
func (r *Registry) Remove(ctx context.Context, id string) {
	r.mu.Lock()
	live, ok := r.sessions[id]
	delete(r.sessions, id)
	n := len(r.sessions)
	r.mu.Unlock()
	if ok {
		live.session.Close()
		r.report(n)
	}
	if err := r.store.Delete(ctx, id); err != nil {
		r.logger.Warn("session snapshot not deleted", "error", err)
	}
}

// Sweep closes sessions idle for longer than the TTL and returns how many
// were closed. Their snapshots expire on their own.
func (r *Registry) Sweep() int {
	cutoff := r.now().Add(-r.ttl)
	var idle []*checkout.Session

	r.mu.Lock()
	for id, live := range r.sessions {
		if live.lastSeen.Before(cutoff) {
			idle = append(idle, live.session)
			delete(r.sessions, id)
		}
	}
	n := len(r.sessions)
	r.mu.Unlock()

	for _, sess := range idle {
		sess.Close()
	}
	if len(idle) > 0 {
		r.report(n)
		r.logger.Debug("idle sessions closed", "count", len(idle))
	}
	return len(idle)
}

// Run sweeps periodically until ctx ends, then closes every session.
func (r *Registry) Run(ctx context.Context) {
	interval := r.ttl / 4
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			r.CloseAll()
			return
		case <-ticker.C:
			r.Sweep()
		}
	}
}

// CloseAll unmounts every session.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*liveSession)
	r.mu.Unlock()
	for _, live := range sessions {
		live.session.Close()
	}
	r.report(0)
}

// Len reports the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

func (r *Registry) put(id string, sess *checkout.Session) {
	r.mu.Lock()
	r.sessions[id] = &liveSession{session: sess, lastSeen: r.now()}
	n := len(r.sessions)
	r.mu.Unlock()
	r.report(n)
}

func (r *Registry) report(n int) {
	if r.gauge != nil {
		r.gauge.SetActiveSessions(n)
	}
}

package auth

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// DefaultSessionDuration is the lifetime of a session counted from sign-in
const DefaultSessionDuration = time.Hour

// Session is a signed-in user. It lives in memory only.
type Session struct {
	ID        string    `json:"id"`
	UID       string    `json:"uid"`
	Email     string    `json:"email"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Remaining returns the time left before the session expires
func (s Session) Remaining(now time.Time) time.Duration {
	if d := s.ExpiresAt.Sub(now); d > 0 {
		return d
	}
	return 0
}

// Timer is a stoppable single-shot timer
type Timer interface {
	Stop() bool
}

// AfterFunc schedules f after d
type AfterFunc func(d time.Duration, f func()) Timer

func stdAfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Notifier is told about every session that expired on its own
type Notifier func(Session)

type guardedSession struct {
	session Session
	timer   Timer
}

// Guard owns the session timers. A session expires exactly one duration
// after it started; activity does not extend it.
type Guard struct {
	sync.Mutex

	provider  Provider
	duration  time.Duration
	now       func() time.Time
	afterFunc AfterFunc
	notify    Notifier

	sessions map[string]*guardedSession
	// expired keeps ids of sessions that timed out until the user is told once
	expired map[string]Session
}

type GuardOption func(*Guard)

// WithClock replaces the wall clock and the timer source
func WithClock(now func() time.Time, afterFunc AfterFunc) GuardOption {
	return func(g *Guard) {
		g.now = now
		g.afterFunc = afterFunc
	}
}

func WithNotifier(n Notifier) GuardOption {
	return func(g *Guard) {
		g.notify = n
	}
}

func NewGuard(provider Provider, duration time.Duration, opts ...GuardOption) *Guard {
	if duration <= 0 {
		duration = DefaultSessionDuration
	}

	g := &Guard{
		provider:  provider,
		duration:  duration,
		now:       time.Now,
		afterFunc: stdAfterFunc,
		sessions:  map[string]*guardedSession{},
		expired:   map[string]Session{},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Duration is the lifetime of every session
func (g *Guard) Duration() time.Duration {
	return g.duration
}

// Start opens a session for the identity and arms its expiry timer
func (g *Guard) Start(identity Identity) Session {
	now := g.now()
	s := Session{
		ID:        uuid.New().String(),
		UID:       identity.UID,
		Email:     identity.Email,
		IssuedAt:  now,
		ExpiresAt: now.Add(g.duration),
	}

	g.Lock()
	defer g.Unlock()

	id := s.ID
	g.sessions[id] = &guardedSession{
		session: s,
		timer:   g.afterFunc(g.duration, func() { g.expire(id) }),
	}

	log.WithField("prefix", logPrefix).WithField("uid", s.UID).Infof("session started, expires at %s", s.ExpiresAt)
	return s
}

// Lookup returns the live session. A session past its deadline is reported
// expired even when its timer has not fired yet.
func (g *Guard) Lookup(id string) (Session, error) {
	g.Lock()
	gs, ok := g.sessions[id]
	if !ok {
		_, wasExpired := g.expired[id]
		delete(g.expired, id)
		g.Unlock()
		if wasExpired {
			return Session{}, ErrSessionExpired
		}
		return Session{}, ErrSessionNotFound
	}
	late := !g.now().Before(gs.session.ExpiresAt)
	g.Unlock()

	if late {
		g.expire(id)
		g.Lock()
		delete(g.expired, id)
		g.Unlock()
		return Session{}, ErrSessionExpired
	}
	return gs.session, nil
}

// Release stops the timer of a session and signs it out. It is used when the
// user signs out explicitly.
func (g *Guard) Release(ctx context.Context, id string) error {
	g.Lock()
	gs, ok := g.sessions[id]
	if ok {
		gs.timer.Stop()
		delete(g.sessions, id)
	}
	g.Unlock()

	if !ok {
		return ErrSessionNotFound
	}
	return g.provider.SignOut(ctx, gs.session.UID)
}

// Close stops every timer without signing anyone out
func (g *Guard) Close() {
	g.Lock()
	defer g.Unlock()
	for id, gs := range g.sessions {
		gs.timer.Stop()
		delete(g.sessions, id)
	}
}

func (g *Guard) expire(id string) {
	g.Lock()
	gs, ok := g.sessions[id]
	if ok {
		gs.timer.Stop()
		delete(g.sessions, id)
		g.expired[id] = gs.session

		horizon := g.now().Add(-g.duration)
		for old, es := range g.expired {
			if es.ExpiresAt.Before(horizon) {
				delete(g.expired, old)
			}
		}
	}
	g.Unlock()

	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()
	if err := g.provider.SignOut(ctx, gs.session.UID); err != nil {
		log.WithField("prefix", logPrefix).WithField("uid", gs.session.UID).Errorf("sign out expired session: %s", err)
	}

	log.WithField("prefix", logPrefix).WithField("uid", gs.session.UID).Info("session expired")
	if g.notify != nil {
		g.notify(gs.session)
	}
}

package auth

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/AlriyanKhan/Ai-attendance/core"
)

var (
	NowFunc = time.Now // mockable

	ErrWatchStopped = errors.New("session watch stopped")
)

// State of the gate.
type State int

const (
	StatePending State = iota // initial session check still running
	StateAbsent
	StatePresent
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateAbsent:
		return "absent"
	default:
		return "present"
	}
}

// Revoker ends a session with the identity provider.
type Revoker interface {
	Revoke(ctx context.Context, s Session) error
}

// Event is one observed change of the gate.
type Event struct {
	State   State
	Session Session
}

// Gate is the sole owner of the session. Other components only read it.
type Gate struct {
	revoker Revoker

	mu       sync.Mutex
	state    State
	session  Session
	watchers map[*Watch]struct{}
	closed   bool
}

func NewGate(revoker Revoker) *Gate {
	return &Gate{
		revoker:  revoker,
		state:    StatePending,
		watchers: make(map[*Watch]struct{}),
	}
}

// Resolve ends the pending state, or replaces the session. A nil session means signed out.
func (g *Gate) Resolve(s *Session) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if s == nil || !s.Valid(NowFunc()) {
		g.setLocked(StateAbsent, Session{})
		return
	}
	g.setLocked(StatePresent, *s)
}

func (g *Gate) setLocked(state State, s Session) {
	g.state = state
	g.session = s
	ev := Event{State: state, Session: s}
	for w := range g.watchers {
		w.push(ev)
	}
}

// expireLocked drops a session whose token ran out.
func (g *Gate) expireLocked() {
	if g.state == StatePresent && g.session.Expired(NowFunc()) {
		g.setLocked(StateAbsent, Session{})
	}
}

// Current returns the session, if any.
func (g *Gate) Current() (Session, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.expireLocked()
	return g.session, g.state == StatePresent
}

func (g *Gate) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.expireLocked()
	return g.state
}

// Observe returns a live stream of the gate state, starting with the current one.
// It only ends when stopped or when the gate is closed.
func (g *Gate) Observe() *Watch {
	w := &Watch{gate: g, ch: make(chan Event, 1), stop: make(chan struct{})}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		w.stopOnce.Do(func() { close(w.stop) })
		return w
	}
	g.expireLocked()
	g.watchers[w] = struct{}{}
	w.push(Event{State: g.state, Session: g.session})
	return w
}

// SignOut revokes the session. On failure the session is kept and an auth error returned.
func (g *Gate) SignOut(ctx context.Context) error {
	s, ok := g.Current()
	if !ok {
		return nil
	}
	if g.revoker != nil {
		if err := g.revoker.Revoke(ctx, s); err != nil {
			return core.NewKindError(core.KindAuth, "auth.SignOut", err)
		}
	}
	g.Resolve(nil)
	return nil
}

// Close ends every watch.
func (g *Gate) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.closed = true
	for w := range g.watchers {
		w.stopOnce.Do(func() { close(w.stop) })
		delete(g.watchers, w)
	}
}

func (g *Gate) remove(w *Watch) {
	g.mu.Lock()
	delete(g.watchers, w)
	g.mu.Unlock()
}

// Watch is a subscription to the gate. Only the latest unread event is kept.
type Watch struct {
	gate     *Gate
	ch       chan Event
	stop     chan struct{}
	stopOnce sync.Once
}

func (w *Watch) push(ev Event) {
	for {
		select {
		case w.ch <- ev:
			return
		default:
		}
		select {
		case <-w.ch:
		default:
		}
	}
}

// Next blocks until the next event.
func (w *Watch) Next(ctx context.Context) (Event, error) {
	select {
	case ev := <-w.ch:
		return ev, nil
	case <-w.stop:
		return Event{}, ErrWatchStopped
	case <-ctx.Done():
		return Event{}, ctx.Err()
	}
}

func (w *Watch) Stop() {
	w.gate.remove(w)
	w.stopOnce.Do(func() { close(w.stop) })
}

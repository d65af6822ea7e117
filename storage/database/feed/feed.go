// Package feed notifies live queries that the attendance collection changed.
// Publishers never block: a subscriber that did not consume the previous signal gets one coalesced signal.
package feed

import (
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
)

var ErrClosed = errors.New("feed closed")

type Stats struct {
	Published uint64
	Coalesced uint64
}

type Feed struct {
	mu        sync.RWMutex
	subs      map[*Signal]struct{}
	closed    bool
	published uint64
	coalesced uint64
}

func New() *Feed {
	return &Feed{subs: make(map[*Signal]struct{})}
}

// Signal is one subscriber. C receives at most one pending notification.
type Signal struct {
	C    <-chan struct{}
	c    chan struct{}
	feed *Feed
	once sync.Once
}

// Subscribe registers a new subscriber. C is closed once the subscriber stops or the feed closes.
func (f *Feed) Subscribe() (*Signal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil, ErrClosed
	}
	c := make(chan struct{}, 1)
	s := &Signal{C: c, c: c, feed: f}
	f.subs[s] = struct{}{}
	return s, nil
}

// Publish wakes every subscriber.
func (f *Feed) Publish() {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.closed {
		return
	}
	atomic.AddUint64(&f.published, 1)
	for s := range f.subs {
		select {
		case s.c <- struct{}{}:
		default:
			atomic.AddUint64(&f.coalesced, 1)
		}
	}
}

func (f *Feed) Stats() Stats {
	return Stats{
		Published: atomic.LoadUint64(&f.published),
		Coalesced: atomic.LoadUint64(&f.coalesced),
	}
}

// Close stops every subscriber.
func (f *Feed) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.closed = true
	for s := range f.subs {
		s.closeLocked()
	}
	f.subs = nil
}

func (s *Signal) closeLocked() {
	s.once.Do(func() { close(s.c) })
}

// Stop unsubscribes.
func (s *Signal) Stop() {
	s.feed.mu.Lock()
	defer s.feed.mu.Unlock()
	if s.feed.subs != nil {
		delete(s.feed.subs, s)
	}
	s.closeLocked()
}

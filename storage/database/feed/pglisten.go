package feed

import (
	"context"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/AlriyanKhan/Ai-attendance/core"
)

// ChannelAttendanceChanged is notified by a trigger on every attendance insert.
const ChannelAttendanceChanged = "attendance_changed"

var (
	minReconnectInterval = 10 * time.Second
	maxReconnectInterval = time.Minute
	pingInterval         = 90 * time.Second
)

// PGListener republishes postgres notifications on a Feed,
// so that writes from other API processes reach local subscribers.
type PGListener struct {
	listener *pq.Listener
	feed     *Feed
	logger   core.Logger
	cancel   context.CancelFunc
	done     chan struct{}
}

func NewPGListener(dsn string, f *Feed, logger core.Logger) *PGListener {
	l := &PGListener{feed: f, logger: logger, done: make(chan struct{})}
	l.listener = pq.NewListener(dsn, minReconnectInterval, maxReconnectInterval, l.event)
	return l
}

func (l *PGListener) event(ev pq.ListenerEventType, err error) {
	switch ev {
	case pq.ListenerEventConnectionAttemptFailed, pq.ListenerEventDisconnected:
		l.logger.Warn(fmt.Sprintf("postgres listener: %v", err), err)
	case pq.ListenerEventReconnected:
		// changes may have been missed while disconnected
		l.feed.Publish()
	}
}

// Start listens on ChannelAttendanceChanged until ctx is done or Stop is called.
func (l *PGListener) Start(ctx context.Context) error {
	if err := l.listener.Listen(ChannelAttendanceChanged); err != nil {
		return errors.Wrap(err, "listening to "+ChannelAttendanceChanged)
	}
	ctx, l.cancel = context.WithCancel(ctx)
	go l.loop(ctx)
	return nil
}

func (l *PGListener) loop(ctx context.Context) {
	defer close(l.done)
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case n := <-l.listener.Notify:
			if n != nil {
				l.feed.Publish()
			}
		case <-ticker.C:
			go func() {
				if err := l.listener.Ping(); err != nil {
					l.logger.Warn(fmt.Sprintf("postgres listener ping: %v", err), err)
				}
			}()
		}
	}
}

func (l *PGListener) Stop() error {
	if l.cancel != nil {
		l.cancel()
		<-l.done
	}
	return l.listener.Close()
}

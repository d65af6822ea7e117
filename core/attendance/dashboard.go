package attendance

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"github.com/AlriyanKhan/Ai-attendance/core"
)

var MsgConnectionFailed = "Failed to connect to database. Please check your connection."

// View is what the dashboard displays. It is replaced as a whole on every recompute.
type View struct {
	Stats     Stats     `json:"stats"`
	Rows      []Row     `json:"rows"`
	Err       string    `json:"error,omitempty"`
	Loading   bool      `json:"loading"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Dashboard keeps a live View over the most recent records.
// A subscription failure sets a persistent error banner, keeps the last good data and is not retried.
type Dashboard struct {
	repo   Repository
	logger core.Logger
	limit  int

	view    atomic.Value // View
	updates chan View

	mu      sync.Mutex
	sub     Subscription
	cancel  context.CancelFunc
	done    chan struct{}
	stopped bool
}

func NewDashboard(repo Repository, logger core.Logger) *Dashboard {
	d := &Dashboard{
		repo:    repo,
		logger:  logger,
		limit:   WindowSize,
		updates: make(chan View, 1),
	}
	d.view.Store(View{Loading: true, Rows: []Row{}})
	return d
}

// View returns the latest view.
func (d *Dashboard) View() View {
	return d.view.Load().(View)
}

// Updates yields every new view. A slow reader only misses intermediate views, never the latest.
// The channel is closed by Stop.
func (d *Dashboard) Updates() <-chan View {
	return d.updates
}

// Start subscribes to the record store and keeps the view current until Stop or ctx is done.
func (d *Dashboard) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.done != nil || d.stopped {
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	sub, err := d.repo.Subscribe(ctx, d.limit)
	if err != nil {
		cancel()
		d.fail(err)
		return errors.Wrap(err, "subscribing to records")
	}
	d.sub = sub
	d.cancel = cancel
	d.done = make(chan struct{})
	go d.listen(ctx, sub, d.done)
	return nil
}

func (d *Dashboard) listen(ctx context.Context, sub Subscription, done chan struct{}) {
	defer close(done)
	for {
		snap, err := sub.Next(ctx)
		if err != nil {
			if ctx.Err() == nil {
				d.fail(err)
			}
			return
		}
		d.recompute(snap)
	}
}

func (d *Dashboard) recompute(snap Snapshot) {
	now := NowFunc()
	v := View{
		Stats:     Aggregate(snap.Records, now),
		Rows:      Rows(snap.Records),
		UpdatedAt: now,
	}
	d.publish(v)
}

func (d *Dashboard) fail(err error) {
	d.logger.Error(fmt.Sprintf("dashboard subscription: %v", err), err)
	v := d.View()
	v.Err = MsgConnectionFailed
	v.Loading = false
	d.publish(v)
}

// publish replaces the view and hands it to the reader, dropping an unread older view.
func (d *Dashboard) publish(v View) {
	d.view.Store(v)
	for {
		select {
		case d.updates <- v:
			return
		default:
		}
		select {
		case <-d.updates:
		default:
		}
	}
}

// Stop tears the subscription down and closes Updates.
func (d *Dashboard) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	d.stopped = true
	if d.cancel != nil {
		d.cancel()
		d.sub.Stop()
		<-d.done
	}
	close(d.updates)
}

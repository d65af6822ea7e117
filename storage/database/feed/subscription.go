package feed

import (
	"context"

	"github.com/AlriyanKhan/Ai-attendance/core/attendance"
)

// QueryFunc reads the current window.
type QueryFunc func(ctx context.Context) ([]attendance.Record, error)

// subscription re-runs its query once on start and then after every signal.
type subscription struct {
	sig     *Signal
	query   QueryFunc
	started bool
}

var _ attendance.Subscription = (*subscription)(nil)

// Query returns a live query over `query`, driven by the feed.
func (f *Feed) Query(query QueryFunc) (attendance.Subscription, error) {
	sig, err := f.Subscribe()
	if err != nil {
		return nil, err
	}
	return &subscription{sig: sig, query: query}, nil
}

func (s *subscription) Next(ctx context.Context) (attendance.Snapshot, error) {
	if !s.started {
		s.started = true
		return s.snapshot(ctx)
	}
	select {
	case <-ctx.Done():
		return attendance.Snapshot{}, ctx.Err()
	case _, ok := <-s.sig.C:
		if !ok {
			return attendance.Snapshot{}, ErrClosed
		}
		return s.snapshot(ctx)
	}
}

func (s *subscription) snapshot(ctx context.Context) (attendance.Snapshot, error) {
	records, err := s.query(ctx)
	if err != nil {
		return attendance.Snapshot{}, err
	}
	return attendance.Snapshot{Records: records, ReadAt: attendance.NowFunc()}, nil
}

func (s *subscription) Stop() {
	s.sig.Stop()
}

package inmemdb

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/AlriyanKhan/Ai-attendance/core/attendance"
	"github.com/AlriyanKhan/Ai-attendance/storage/database/feed"
)

const sentinelID = "initial"

type attendanceRepository struct {
	db   *attendanceTable
	feed *feed.Feed
}

var _ attendance.Repository = (*attendanceRepository)(nil) // interface compliance check

func NewAttendanceRepository(db *DB) attendance.Repository {
	return &attendanceRepository{db: db.attendance, feed: db.feed}
}

func (repo *attendanceRepository) Add(_ context.Context, r attendance.Record) (attendance.Record, error) {
	repo.db.Lock()
	r.ID = uuid.NewString()
	if last, ok := repo.db.last(); ok && r.Timestamp.Before(last) {
		r.Timestamp = last
	}
	repo.db.rows = append(repo.db.rows, r)
	repo.db.Unlock()

	repo.feed.Publish()
	return r, nil
}

func (repo *attendanceRepository) Recent(_ context.Context, limit int) ([]attendance.Record, error) {
	if limit <= 0 {
		limit = attendance.WindowSize
	}

	repo.db.RLock()
	records := attendance.WithoutSentinels(repo.db.rows)
	repo.db.RUnlock()

	// timestamps never decrease, so newest first is reverse insertion order
	for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
		records[i], records[j] = records[j], records[i]
	}

	if len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

func (repo *attendanceRepository) Subscribe(_ context.Context, limit int) (attendance.Subscription, error) {
	return repo.feed.Query(func(ctx context.Context) ([]attendance.Record, error) {
		return repo.Recent(ctx, limit)
	})
}

func (repo *attendanceRepository) IsEmpty(_ context.Context) (bool, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	return len(repo.db.rows) == 0, nil
}

func (repo *attendanceRepository) AddSentinel(_ context.Context) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, r := range repo.db.rows {
		if r.ID == sentinelID {
			return nil
		}
	}
	repo.db.rows = append(repo.db.rows, attendance.Record{
		ID:              sentinelID,
		DisplayName:     "Initial record for collection creation",
		RecordedAt:      attendance.NowFunc().UTC(),
		IsInitialRecord: true,
	})
	return nil
}

// last returns the timestamp of the latest record. Callers hold the lock.
func (t *attendanceTable) last() (time.Time, bool) {
	for i := len(t.rows) - 1; i >= 0; i-- {
		if !t.rows[i].IsInitialRecord {
			return t.rows[i].Timestamp, true
		}
	}
	return time.Time{}, false
}

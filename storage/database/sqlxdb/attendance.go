package sqlxdb

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/AlriyanKhan/Ai-attendance/core/attendance"
	"github.com/AlriyanKhan/Ai-attendance/storage/database/feed"
)

const sentinelID = "initial"

type attendanceRow struct {
	Seq             int64       `db:"seq"`
	ID              string      `db:"id"`
	CreatedAt       null.Time   `db:"created_at"`
	ImageURL        string      `db:"image_url"`
	FaceDetected    bool        `db:"face_detected"`
	Confidence      float64     `db:"confidence"`
	UserID          string      `db:"user_id"`
	DisplayName     string      `db:"display_name"`
	UserEmail       null.String `db:"user_email"`
	RecordedAt      null.Time   `db:"recorded_at"`
	IsInitialRecord bool        `db:"is_initial_record"`
}

func (row attendanceRow) record() attendance.Record {
	return attendance.Record{
		ID:              row.ID,
		Timestamp:       row.CreatedAt.Time.UTC(),
		ImageURL:        row.ImageURL,
		FaceDetected:    row.FaceDetected,
		Confidence:      row.Confidence,
		UserID:          row.UserID,
		DisplayName:     row.DisplayName,
		UserEmail:       row.UserEmail.String,
		RecordedAt:      row.RecordedAt.Time.UTC(),
		IsInitialRecord: row.IsInitialRecord,
	}
}

func nullTime(t time.Time) null.Time {
	if t.IsZero() {
		return null.Time{}
	}
	return null.TimeFrom(t.UTC())
}

type attendanceRepository struct {
	db   *sqlx.DB
	feed *feed.Feed
}

var _ attendance.Repository = (*attendanceRepository)(nil)

// NewAttendanceRepository returns a Repository over postgres or sqlite.
// Live queries are re-run whenever `f` fires; local writes fire it.
func NewAttendanceRepository(db *sqlx.DB, f *feed.Feed) attendance.Repository {
	return &attendanceRepository{db: db, feed: f}
}

const insertAttendance = `
INSERT INTO attendance (id, created_at, image_url, face_detected, confidence, user_id, display_name, user_email, recorded_at, is_initial_record)
VALUES (:id, :created_at, :image_url, :face_detected, :confidence, :user_id, :display_name, :user_email, :recorded_at, :is_initial_record)`

func (repo *attendanceRepository) Add(ctx context.Context, r attendance.Record) (attendance.Record, error) {
	r.ID = uuid.NewString()
	row := attendanceRow{
		ID:              r.ID,
		CreatedAt:       nullTime(r.Timestamp),
		ImageURL:        r.ImageURL,
		FaceDetected:    r.FaceDetected,
		Confidence:      r.Confidence,
		UserID:          r.UserID,
		DisplayName:     r.DisplayName,
		UserEmail:       null.NewString(r.UserEmail, r.UserEmail != ""),
		RecordedAt:      nullTime(r.RecordedAt),
		IsInitialRecord: r.IsInitialRecord,
	}
	if _, err := repo.db.NamedExecContext(ctx, insertAttendance, row); err != nil {
		return attendance.Record{}, errors.Wrap(err, "inserting attendance")
	}
	repo.feed.Publish()
	return r, nil
}

func (repo *attendanceRepository) Recent(ctx context.Context, limit int) ([]attendance.Record, error) {
	if limit <= 0 {
		limit = attendance.WindowSize
	}
	var rows []attendanceRow
	q := repo.db.Rebind(`
SELECT seq, id, created_at, image_url, face_detected, confidence, user_id, display_name, user_email, recorded_at, is_initial_record
FROM attendance
WHERE NOT is_initial_record
ORDER BY created_at DESC, seq DESC
LIMIT ?`)
	if err := repo.db.SelectContext(ctx, &rows, q, limit); err != nil {
		return nil, errors.Wrap(err, "selecting attendance")
	}
	records := make([]attendance.Record, 0, len(rows))
	for _, row := range rows {
		records = append(records, row.record())
	}
	return records, nil
}

func (repo *attendanceRepository) Subscribe(_ context.Context, limit int) (attendance.Subscription, error) {
	return repo.feed.Query(func(ctx context.Context) ([]attendance.Record, error) {
		return repo.Recent(ctx, limit)
	})
}

func (repo *attendanceRepository) IsEmpty(ctx context.Context) (bool, error) {
	var found bool
	if err := repo.db.GetContext(ctx, &found, `SELECT EXISTS (SELECT 1 FROM attendance)`); err != nil {
		return false, errors.Wrap(err, "checking attendance")
	}
	return !found, nil
}

func (repo *attendanceRepository) AddSentinel(ctx context.Context) error {
	q := repo.db.Rebind(`
INSERT INTO attendance (id, image_url, display_name, recorded_at, is_initial_record)
VALUES (?, '', 'Initial record for collection creation', ?, ?)
ON CONFLICT (id) DO NOTHING`)
	if _, err := repo.db.ExecContext(ctx, q, sentinelID, time.Now().UTC(), true); err != nil {
		return errors.Wrap(err, "inserting sentinel")
	}
	return nil
}

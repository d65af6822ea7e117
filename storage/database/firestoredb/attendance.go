package firestoredb

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/pkg/errors"
	"google.golang.org/api/iterator"

	"github.com/AlriyanKhan/Ai-attendance/core/attendance"
)

const sentinelID = "initial"

// attendanceDoc is the shape written to the attendance collection.
// The display name goes to both userName and name since older clients read either.
type attendanceDoc struct {
	Timestamp       time.Time `firestore:"timestamp,serverTimestamp"`
	ImageURL        string    `firestore:"imageUrl"`
	FaceDetected    bool      `firestore:"faceDetected"`
	Confidence      float64   `firestore:"confidence"`
	UserID          string    `firestore:"userId"`
	UserName        string    `firestore:"userName"`
	Name            string    `firestore:"name"`
	UserEmail       string    `firestore:"userEmail,omitempty"`
	RecordedAt      time.Time `firestore:"recordedAt"`
	IsInitialRecord bool      `firestore:"isInitialRecord,omitempty"`
}

func newAttendanceDoc(r attendance.Record) attendanceDoc {
	return attendanceDoc{
		Timestamp:       r.Timestamp.UTC(),
		ImageURL:        r.ImageURL,
		FaceDetected:    r.FaceDetected,
		Confidence:      r.Confidence,
		UserID:          r.UserID,
		UserName:        r.DisplayName,
		Name:            r.DisplayName,
		UserEmail:       r.UserEmail,
		RecordedAt:      r.RecordedAt.UTC(),
		IsInitialRecord: r.IsInitialRecord,
	}
}

// decodeAttendance reads a document written by any client.
// Fields of an unexpected type read as their zero value so that one odd document does not fail the window.
func decodeAttendance(id string, data map[string]interface{}) attendance.Record {
	name := stringField(data, "userName")
	if name == "" {
		name = stringField(data, "name")
	}
	initial, _ := data["isInitialRecord"].(bool)
	detected, _ := data["faceDetected"].(bool)
	return attendance.Record{
		ID:              id,
		Timestamp:       timeField(data, "timestamp"),
		ImageURL:        stringField(data, "imageUrl"),
		FaceDetected:    detected,
		Confidence:      numberField(data, "confidence"),
		UserID:          stringField(data, "userId"),
		DisplayName:     name,
		UserEmail:       stringField(data, "userEmail"),
		RecordedAt:      timeField(data, "recordedAt"),
		IsInitialRecord: initial || id == sentinelID,
	}
}

func stringField(data map[string]interface{}, key string) string {
	s, _ := data[key].(string)
	return s
}

func numberField(data map[string]interface{}, key string) float64 {
	switch v := data[key].(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	}
	return 0
}

// timeField accepts a Firestore timestamp or an ISO 8601 string.
func timeField(data map[string]interface{}, key string) time.Time {
	switch v := data[key].(type) {
	case time.Time:
		return v.UTC()
	case string:
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

type attendanceRepository struct {
	client *firestore.Client
}

var _ attendance.Repository = (*attendanceRepository)(nil)

func NewAttendanceRepository(client *firestore.Client) attendance.Repository {
	return &attendanceRepository{client: client}
}

func (repo *attendanceRepository) coll() *firestore.CollectionRef {
	return repo.client.Collection(AttendanceCollection)
}

// window over-fetches by one so that a sentinel carrying a timestamp never shortens the result.
func (repo *attendanceRepository) window(limit int) firestore.Query {
	return repo.coll().OrderBy("timestamp", firestore.Desc).Limit(limit + 1)
}

func (repo *attendanceRepository) Add(ctx context.Context, r attendance.Record) (attendance.Record, error) {
	ref := repo.coll().NewDoc()
	if _, err := ref.Create(ctx, newAttendanceDoc(r)); err != nil {
		return attendance.Record{}, errors.Wrap(err, "adding attendance document")
	}
	r.ID = ref.ID
	return r, nil
}

func (repo *attendanceRepository) Recent(ctx context.Context, limit int) ([]attendance.Record, error) {
	if limit <= 0 {
		limit = attendance.WindowSize
	}
	return readWindow(repo.window(limit).Documents(ctx), limit)
}

func readWindow(it *firestore.DocumentIterator, limit int) ([]attendance.Record, error) {
	defer it.Stop()

	records := make([]attendance.Record, 0, limit)
	for {
		snap, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "reading attendance documents")
		}
		if rec := decodeAttendance(snap.Ref.ID, snap.Data()); !rec.IsInitialRecord && len(records) < limit {
			records = append(records, rec)
		}
	}
	return records, nil
}

func (repo *attendanceRepository) Subscribe(ctx context.Context, limit int) (attendance.Subscription, error) {
	if limit <= 0 {
		limit = attendance.WindowSize
	}
	ctx, cancel := context.WithCancel(ctx)
	sub := &subscription{
		it:      repo.window(limit).Snapshots(ctx),
		limit:   limit,
		cancel:  cancel,
		results: make(chan snapshotResult),
		done:    make(chan struct{}),
	}
	go sub.pump(ctx)
	return sub, nil
}

func (repo *attendanceRepository) IsEmpty(ctx context.Context) (bool, error) {
	it := repo.coll().Limit(1).Documents(ctx)
	defer it.Stop()

	_, err := it.Next()
	switch {
	case err == iterator.Done:
		return true, nil
	case err != nil:
		return false, errors.Wrap(err, "checking attendance collection")
	}
	return false, nil
}

func (repo *attendanceRepository) AddSentinel(ctx context.Context) error {
	_, err := repo.coll().Doc(sentinelID).Set(ctx, map[string]interface{}{
		"isInitialRecord": true,
		"userName":        "Initial record for collection creation",
		"recordedAt":      firestore.ServerTimestamp,
	})
	return errors.Wrap(err, "writing sentinel document")
}

type snapshotResult struct {
	snap attendance.Snapshot
	err  error
}

// subscription forwards the query snapshots read by pump; a failed read ends it.
type subscription struct {
	it      *firestore.QuerySnapshotIterator
	limit   int
	cancel  context.CancelFunc
	results chan snapshotResult
	done    chan struct{}
}

var _ attendance.Subscription = (*subscription)(nil)

func (s *subscription) pump(ctx context.Context) {
	defer close(s.done)
	for {
		qs, err := s.it.Next()
		var res snapshotResult
		if err != nil {
			res.err = errors.Wrap(err, "listening to attendance")
		} else {
			records, err := readWindow(qs.Documents, s.limit)
			res = snapshotResult{
				snap: attendance.Snapshot{Records: records, ReadAt: qs.ReadTime.UTC()},
				err:  err,
			}
		}

		select {
		case s.results <- res:
		case <-ctx.Done():
			return
		}
		if res.err != nil {
			return
		}
	}
}

func (s *subscription) Next(ctx context.Context) (attendance.Snapshot, error) {
	select {
	case <-ctx.Done():
		return attendance.Snapshot{}, ctx.Err()
	case res := <-s.results:
		return res.snap, res.err
	case <-s.done:
		return attendance.Snapshot{}, errors.New("attendance subscription stopped")
	}
}

func (s *subscription) Stop() {
	s.cancel()
	<-s.done
	s.it.Stop()
}

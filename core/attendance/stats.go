package attendance

import "time"

// Stats are recomputed from scratch over the window on every push.
type Stats struct {
	TotalAttendance   int     `json:"total_attendance"`
	TodayAttendance   int     `json:"today_attendance"`
	AverageConfidence float64 `json:"average_confidence"`
	ActiveUsers       int     `json:"active_users"`
}

// Row is a record as listed on the dashboard.
type Row struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	UserID     string    `json:"user_id"`
	Timestamp  time.Time `json:"timestamp"`
	Confidence float64   `json:"confidence"`
	Status     string    `json:"status"`
	ImageURL   string    `json:"image_url"`
}

// Aggregate computes the stats of `records` as seen at `now`.
// "Today" starts at local midnight of now's location.
func Aggregate(records []Record, now time.Time) Stats {
	records = WithoutSentinels(records)
	midnight := Midnight(now)

	var (
		stats = Stats{TotalAttendance: len(records)}
		sum   float64
		users = make(map[string]struct{}, len(records))
	)
	for _, r := range records {
		if !r.Timestamp.Before(midnight) {
			stats.TodayAttendance++
		}
		sum += r.Confidence
		users[r.UserID] = struct{}{}
	}
	if len(records) > 0 {
		stats.AverageConfidence = sum / float64(len(records))
	}
	stats.ActiveUsers = len(users)
	return stats
}

// Midnight returns the start of now's day in now's location.
func Midnight(now time.Time) time.Time {
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
}

// CountToday counts the rows stamped at or after the midnight of now.
// Viewers pass their own now so that "today" follows their zone rather than the server's.
func CountToday(rows []Row, now time.Time) int {
	midnight := Midnight(now)
	n := 0
	for _, r := range rows {
		if !r.Timestamp.Before(midnight) {
			n++
		}
	}
	return n
}

func Rows(records []Record) []Row {
	records = WithoutSentinels(records)
	rows := make([]Row, 0, len(records))
	for _, r := range records {
		rows = append(rows, Row{
			ID:         r.ID,
			Name:       r.Label(),
			UserID:     r.UserID,
			Timestamp:  r.Timestamp,
			Confidence: r.Confidence,
			Status:     r.Status(),
			ImageURL:   r.ImageURL,
		})
	}
	return rows
}

package attendance

import (
	"context"
	"time"

	"github.com/AlriyanKhan/Ai-attendance/core/capture"
)

const (
	// WindowSize is the number of most recent records the dashboard works on.
	WindowSize = 30

	// VerifiedThreshold is exclusive: a confidence of exactly 0.7 needs review.
	VerifiedThreshold = 0.7

	StatusVerified = "Verified"
	StatusReview   = "Review"

	AnonymousUserID = "anonymous"
	UnknownUser     = "Unknown"

	InsightFallback = "Attendance recorded successfully. AI insights could not be generated at this time."
)

// Record is one attendance submission. Records are never updated once written.
type Record struct {
	ID              string    `json:"id"`
	Timestamp       time.Time `json:"timestamp"`
	ImageURL        string    `json:"image_url"`
	FaceDetected    bool      `json:"face_detected"`
	Confidence      float64   `json:"confidence"`
	UserID          string    `json:"user_id"`
	DisplayName     string    `json:"display_name"`
	UserEmail       string    `json:"user_email,omitempty"`
	RecordedAt      time.Time `json:"recorded_at"`
	IsInitialRecord bool      `json:"-"`
}

// Label is the best-effort human label of the record.
func (r Record) Label() string {
	switch {
	case r.DisplayName != "":
		return r.DisplayName
	case r.UserID != "":
		return r.UserID
	default:
		return UnknownUser
	}
}

func (r Record) Status() string { return Status(r.Confidence) }

// Status labels a detection confidence.
func Status(confidence float64) string {
	if confidence > VerifiedThreshold {
		return StatusVerified
	}
	return StatusReview
}

// Snapshot is an immutable read of the window.
type Snapshot struct {
	Records []Record
	ReadAt  time.Time
}

// Bounds is the face rectangle, in pixels.
type Bounds struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Right  float64 `json:"right"`
	Bottom float64 `json:"bottom"`
}

// Face is one detection returned by the FaceDetector.
type Face struct {
	Confidence float64 `json:"confidence"`
	Bounds     Bounds  `json:"bounds"`
	Joy        string  `json:"joy,omitempty"`
	Sorrow     string  `json:"sorrow,omitempty"`
	Anger      string  `json:"anger,omitempty"`
	Surprise   string  `json:"surprise,omitempty"`
}

// InsightInput is one entry of the data handed to the InsightGenerator.
type InsightInput struct {
	Date       string  `json:"date"`
	Status     string  `json:"status"`
	Confidence float64 `json:"confidence"`
	UserID     string  `json:"userId"`
}

type (
	Repository interface {
		// Add stores a new record and returns it with its ID set.
		Add(ctx context.Context, r Record) (Record, error)
		// Recent returns the `limit` most recent non-sentinel records, newest first.
		Recent(ctx context.Context, limit int) ([]Record, error)
		// Subscribe starts a live query over Recent(limit).
		Subscribe(ctx context.Context, limit int) (Subscription, error)
		IsEmpty(ctx context.Context) (bool, error)
		AddSentinel(ctx context.Context) error
	}

	// Subscription yields a new Snapshot on start and after every change.
	Subscription interface {
		// Next blocks until the next snapshot, ctx is done, or the subscription fails.
		Next(ctx context.Context) (Snapshot, error)
		Stop()
	}

	// BlobSink stores captured images and returns a retrievable URL.
	BlobSink interface {
		Store(ctx context.Context, name string, p capture.Payload) (string, error)
	}

	FaceDetector interface {
		DetectFaces(ctx context.Context, p capture.Payload) ([]Face, error)
	}

	InsightGenerator interface {
		Analyze(ctx context.Context, data []InsightInput) (string, error)
	}
)

// WithoutSentinels drops bootstrap placeholders.
func WithoutSentinels(records []Record) []Record {
	out := make([]Record, 0, len(records))
	for _, r := range records {
		if !r.IsInitialRecord {
			out = append(out, r)
		}
	}
	return out
}

package capture

import (
	"context"
	"sync"

	"github.com/pkg/errors"
)

var ErrNotStarted = errors.New("camera not started")

// Surface is the live variant of the capture surface.
// It holds at most one snapshot; capturing again replaces it.
type Surface struct {
	camera Camera

	mu       sync.Mutex
	stream   Stream
	snapshot *Payload
}

func NewSurface(camera Camera) *Surface {
	return &Surface{camera: camera}
}

// Start requests camera access.
func (s *Surface) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stream != nil {
		return nil
	}
	stream, err := s.camera.Open(ctx)
	if err != nil {
		return err
	}
	s.stream = stream
	return nil
}

// Capture snapshots the current frame.
func (s *Surface) Capture(ctx context.Context) (Payload, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stream == nil {
		return Payload{}, ErrNotStarted
	}
	frame, err := s.stream.Frame(ctx)
	if err != nil {
		return Payload{}, err
	}
	p := NewPayload(frame, "")
	s.snapshot = &p
	return p, nil
}

// Retake discards the current snapshot.
func (s *Surface) Retake() {
	s.Clear()
}

// Payload returns the current snapshot, if any.
func (s *Surface) Payload() (Payload, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snapshot == nil {
		return Payload{}, false
	}
	return *s.snapshot, true
}

// Clear empties the surface, ready for a new submission.
func (s *Surface) Clear() {
	s.mu.Lock()
	s.snapshot = nil
	s.mu.Unlock()
}

// Stop releases the camera.
func (s *Surface) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stream == nil {
		return nil
	}
	err := s.stream.Close()
	s.stream = nil
	return err
}

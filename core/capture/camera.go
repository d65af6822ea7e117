package capture

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"github.com/AlriyanKhan/Ai-attendance/core"
)

var (
	ErrNoCommand     = errors.New("no camera command configured")
	ErrEmptyFrame    = errors.New("camera returned an empty frame")
	ErrStreamClosed  = errors.New("camera stream closed")
	execCommandFunc  = exec.CommandContext // mockable
	permissionMarker = "permission denied"
)

type (
	// Camera gives access to a video device.
	Camera interface {
		// Open requests access to the device. A denial is a CameraAccessError.
		Open(ctx context.Context) (Stream, error)
	}

	// Stream yields frames of an opened Camera.
	Stream interface {
		Frame(ctx context.Context) ([]byte, error)
		Close() error
	}
)

// CameraAccessError is returned when the device may not be used. It is never retried.
type CameraAccessError struct {
	Err error
}

func (e *CameraAccessError) Error() string {
	return fmt.Sprintf("camera access denied: %v", e.Err)
}

func (e *CameraAccessError) Unwrap() error { return e.Err }

func newAccessError(op string, err error) error {
	return core.NewKindError(core.KindPermission, op, &CameraAccessError{Err: err})
}

// IsCameraAccessError reports whether err was caused by a camera denial.
func IsCameraAccessError(err error) bool {
	var cErr *CameraAccessError
	return errors.As(err, &cErr)
}

// ExecCamera grabs frames by running an external command printing one encoded image on stdout,
// eg. `ffmpeg -f v4l2 -i /dev/video0 -frames:v 1 -f image2pipe -vcodec mjpeg -`.
type ExecCamera struct {
	Command []string
}

var _ Camera = (*ExecCamera)(nil)

func NewExecCamera(conf *core.Config) *ExecCamera {
	return &ExecCamera{Command: conf.Camera.Command}
}

// Open grabs a probe frame so that a denial surfaces before any capture.
func (c *ExecCamera) Open(ctx context.Context) (Stream, error) {
	if len(c.Command) == 0 {
		return nil, ErrNoCommand
	}
	s := &execStream{argv: c.Command}
	if _, err := s.Frame(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

type execStream struct {
	argv   []string
	mu     sync.Mutex
	closed bool
}

func (s *execStream) Frame(ctx context.Context) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrStreamClosed
	}

	var stdout, stderr bytes.Buffer
	cmd := execCommandFunc(ctx, s.argv[0], s.argv[1:]...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if errors.Is(err, os.ErrPermission) || strings.Contains(strings.ToLower(stderr.String()), permissionMarker) {
			return nil, newAccessError("capture.Frame", err)
		}
		return nil, errors.Wrapf(err, "running camera command: %s", strings.TrimSpace(stderr.String()))
	}
	if stdout.Len() == 0 {
		return nil, ErrEmptyFrame
	}
	return stdout.Bytes(), nil
}

func (s *execStream) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

// Package blobsvc stores captured images and returns their public URLs.
package blobsvc

import (
	"context"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/AlriyanKhan/Ai-attendance/core"
	"github.com/AlriyanKhan/Ai-attendance/core/attendance"
	"github.com/AlriyanKhan/Ai-attendance/core/capture"
)

// Backends
const (
	BackendLocal = "local"
	BackendGCS   = "gcs"
)

var ErrInvalidName = errors.New("invalid blob name")

// cleanName rejects names escaping the blob root.
func cleanName(name string) (string, error) {
	cleaned := path.Clean("/" + name)[1:]
	if cleaned == "" || cleaned != name || strings.HasPrefix(cleaned, "../") {
		return "", errors.Wrap(ErrInvalidName, name)
	}
	return cleaned, nil
}

type localSink struct {
	dir     string
	baseURL string
}

var _ attendance.BlobSink = (*localSink)(nil)

// NewLocalSink writes blobs under conf.Blob.Dir; the API serves them at conf.Blob.PublicBaseURL.
func NewLocalSink(conf *core.Config) attendance.BlobSink {
	return &localSink{dir: conf.Blob.Dir, baseURL: conf.Blob.PublicBaseURL}
}

func (s *localSink) Store(ctx context.Context, name string, p capture.Payload) (string, error) {
	name, err := cleanName(name)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	fp := filepath.Join(s.dir, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(fp), 0o755); err != nil {
		return "", errors.Wrap(err, "creating blob directory")
	}
	if err := os.WriteFile(fp, p.Data, 0o644); err != nil {
		return "", errors.Wrap(err, "writing blob")
	}
	return s.baseURL + "/" + name, nil
}

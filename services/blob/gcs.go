package blobsvc

import (
	"context"
	"io"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/pkg/errors"
	"google.golang.org/api/option"

	"github.com/AlriyanKhan/Ai-attendance/core"
	"github.com/AlriyanKhan/Ai-attendance/core/attendance"
	"github.com/AlriyanKhan/Ai-attendance/core/capture"
)

const gcsPublicHost = "https://storage.googleapis.com"

type writerFunc func(ctx context.Context, object, contentType string) io.WriteCloser

type GCSSink struct {
	client    *storage.Client
	bucket    string
	baseURL   string
	newWriter writerFunc
}

var _ attendance.BlobSink = (*GCSSink)(nil)

// NewGCSSink uploads to conf.Blob.Bucket. Close the sink when done.
func NewGCSSink(ctx context.Context, conf *core.Config) (*GCSSink, error) {
	if conf.Blob.Bucket == "" {
		return nil, errors.New("gcs: missing bucket")
	}
	var opts []option.ClientOption
	if conf.Database.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(conf.Database.CredentialsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "creating storage client")
	}

	s := &GCSSink{client: client, bucket: conf.Blob.Bucket, baseURL: conf.Blob.PublicBaseURL}
	s.newWriter = func(ctx context.Context, object, contentType string) io.WriteCloser {
		w := client.Bucket(s.bucket).Object(object).NewWriter(ctx)
		w.ContentType = contentType
		return w
	}
	return s, nil
}

// Store returns the object's public URL.
func (s *GCSSink) Store(ctx context.Context, name string, p capture.Payload) (string, error) {
	name, err := cleanName(name)
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel() // aborts the upload on write errors

	w := s.newWriter(ctx, name, p.ContentType)
	if _, err := w.Write(p.Data); err != nil {
		return "", errors.Wrap(err, "uploading blob")
	}
	if err := w.Close(); err != nil {
		return "", errors.Wrap(err, "uploading blob")
	}
	base := gcsPublicHost + "/" + s.bucket
	if s.baseURL != "" {
		base = strings.TrimRight(s.baseURL, "/")
	}
	return base + "/" + name, nil
}

func (s *GCSSink) Close() error {
	if s.client == nil {
		return nil
	}
	return s.client.Close()
}

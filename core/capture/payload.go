package capture

import (
	"bytes"
	"encoding/base64"
	"net/http"
	"strings"

	"github.com/pkg/errors"
)

var ErrInvalidDataURL = errors.New("invalid data URL")

// Payload is an encoded still image.
type Payload struct {
	Data        []byte
	ContentType string
}

// NewPayload sniffs the content type when it is not given.
func NewPayload(data []byte, contentType string) Payload {
	ct := strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0])
	if ct == "" || ct == "application/octet-stream" {
		ct = http.DetectContentType(data)
	}
	return Payload{Data: data, ContentType: strings.ToLower(ct)}
}

// ParseDataURL decodes a base64 "data:<type>;base64,<data>" URL, as produced by browser canvases.
func ParseDataURL(s string) (Payload, error) {
	if !strings.HasPrefix(s, "data:") {
		return Payload{}, ErrInvalidDataURL
	}
	i := strings.IndexByte(s, ',')
	if i < 0 {
		return Payload{}, ErrInvalidDataURL
	}
	meta, raw := s[len("data:"):i], s[i+1:]
	if !strings.HasSuffix(meta, ";base64") {
		return Payload{}, errors.Wrap(ErrInvalidDataURL, "only base64 data URLs are supported")
	}
	data, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return Payload{}, errors.Wrap(ErrInvalidDataURL, err.Error())
	}
	return NewPayload(data, strings.TrimSuffix(meta, ";base64")), nil
}

func (p Payload) IsEmpty() bool { return len(p.Data) == 0 }

func (p Payload) Base64() string {
	return base64.StdEncoding.EncodeToString(p.Data)
}

func (p Payload) DataURL() string {
	return "data:" + p.ContentType + ";base64," + p.Base64()
}

// Ext returns the file extension (without dot) matching the content type, "jpg" by default.
func (p Payload) Ext() string {
	switch p.ContentType {
	case "image/png":
		return "png"
	case "image/gif":
		return "gif"
	case "image/webp":
		return "webp"
	case "image/bmp":
		return "bmp"
	default:
		return "jpg"
	}
}

func (p Payload) IsImage() bool {
	return strings.HasPrefix(p.ContentType, "image/")
}

// Equal reports whether both payloads hold the same image.
func (p Payload) Equal(o Payload) bool {
	return p.ContentType == o.ContentType && bytes.Equal(p.Data, o.Data)
}

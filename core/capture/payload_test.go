package capture

import (
	"encoding/base64"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AlriyanKhan/Ai-attendance/core"
)

var (
	pngData  = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	jpegData = []byte("\xff\xd8\xff\xe0\x00\x10JFIF")
)

func TestParseDataURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		want    Payload
		wantErr bool
	}{
		{name: "png", url: "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngData), want: Payload{Data: pngData, ContentType: "image/png"}},
		{name: "sniffed", url: "data:;base64," + base64.StdEncoding.EncodeToString(jpegData), want: Payload{Data: jpegData, ContentType: "image/jpeg"}},
		{name: "not a data url", url: "https://example.com/a.png", wantErr: true},
		{name: "not base64", url: "data:image/png,rawdata", wantErr: true},
		{name: "bad base64", url: "data:image/png;base64,%%%", wantErr: true},
		{name: "no comma", url: "data:image/png;base64", wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseDataURL(tc.url)
			if tc.wantErr {
				assert.Equal(t, ErrInvalidDataURL, errors.Cause(err))
				return
			}
			require.NoError(t, err)
			assert.True(t, tc.want.Equal(got), "got %s", got.ContentType)
		})
	}

	p := NewPayload(pngData, "image/png")
	got, err := ParseDataURL(p.DataURL())
	require.NoError(t, err)
	assert.True(t, p.Equal(got))
}

func TestPayload_Ext(t *testing.T) {
	assert.Equal(t, "png", NewPayload(pngData, "").Ext())
	assert.Equal(t, "jpg", NewPayload(jpegData, "image/jpeg; q=1").Ext())
	assert.Equal(t, "webp", Payload{ContentType: "image/webp"}.Ext())
	assert.Equal(t, "jpg", Payload{ContentType: "text/plain"}.Ext())
	assert.False(t, NewPayload([]byte("hello"), "").IsImage())
	assert.True(t, Payload{}.IsEmpty())
}

func TestUpload_Validate(t *testing.T) {
	translator := core.NewTranslator()
	validate := core.NewValidator(translator)

	tests := []struct {
		name       string
		upload     Upload
		wantErr    error
		wantFields bool
	}{
		{name: "ok", upload: Upload{Name: " Jane Doe ", Data: jpegData, ContentType: "image/jpeg"}},
		{name: "sniffed", upload: Upload{Name: "Jane", Data: pngData, ContentType: "application/octet-stream"}},
		{name: "missing name", upload: Upload{Name: "   ", Data: jpegData}, wantErr: ErrIncompleteUpload},
		{name: "missing image", upload: Upload{Name: "Jane"}, wantErr: ErrIncompleteUpload},
		{name: "not an image", upload: Upload{Name: "Jane", Data: []byte("plain text"), ContentType: "text/plain"}, wantFields: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.upload.Validate(validate)
			switch {
			case tc.wantErr != nil:
				vErr, ok := errors.Cause(err).(*core.ValidationError)
				require.True(t, ok)
				assert.Equal(t, tc.wantErr, vErr.Err)
			case tc.wantFields:
				flds, ok := core.TranslateErrors(err, translator)
				require.True(t, ok)
				assert.Equal(t, []core.FieldError{{Field: "content_type", Error: "only image files are allowed"}}, flds)
			default:
				require.NoError(t, err)
				assert.True(t, tc.upload.Payload().IsImage())
			}
		})
	}
}

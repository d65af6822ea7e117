package capture

import (
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/AlriyanKhan/Ai-attendance/core"
)

var ErrIncompleteUpload = errors.New("Please provide both name and image")

// Upload is the file variant of the capture surface: a chosen image plus the name of who is attending.
type Upload struct {
	Name        string `json:"name" form:"name" validate:"required,notblank"`
	Filename    string `json:"filename" form:"-"`
	ContentType string `json:"content_type" form:"-" validate:"imagetype"`
	Data        []byte `json:"-" form:"-"`
}

// Validate runs before any network call. A missing name or image is reported as a whole.
func (u *Upload) Validate(validate *validator.Validate) error {
	u.Name = core.CleanString(u.Name)
	if u.Name == "" || len(u.Data) == 0 {
		return core.NewValidationError(ErrIncompleteUpload)
	}
	if u.ContentType == "" || u.ContentType == "application/octet-stream" {
		u.ContentType = NewPayload(u.Data, "").ContentType
	}
	return validate.Struct(u)
}

func (u Upload) Payload() Payload {
	return NewPayload(u.Data, u.ContentType)
}

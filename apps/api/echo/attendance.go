package echoapi

import (
	"io"
	"mime/multipart"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/AlriyanKhan/Ai-attendance/core"
	"github.com/AlriyanKhan/Ai-attendance/core/attendance"
	"github.com/AlriyanKhan/Ai-attendance/core/capture"
	"github.com/AlriyanKhan/Ai-attendance/core/user"
)

var (
	imageField = "image"
	nameField  = "name"

	errNotAnImage = "only image files are allowed"
)

type attendanceApi struct {
	usrSvc    user.Service
	repo      attendance.Repository
	pipelines *attendance.Pipelines
	validate  *validator.Validate
}

func registerAttendanceAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	optionalJWT echo.MiddlewareFunc,
	usrSvc user.Service,
	repo attendance.Repository,
	pipelines *attendance.Pipelines,
	validate *validator.Validate,
) {
	api := attendanceApi{
		usrSvc:    usrSvc,
		repo:      repo,
		pipelines: pipelines,
		validate:  validate,
	}

	ag := g.Group("/attendance")
	ag.POST("/upload", api.upload, optionalJWT)
	ag.POST("", api.submitLive, jwt)
	ag.GET("", api.query, jwt)
	ag.POST("/bootstrap", api.bootstrap, jwt, adminMiddleware(usrSvc))
}

// Handlers

// submitLive records a frame snapshotted from the camera of a signed in user.
func (api *attendanceApi) submitLive(ctx echo.Context) error {
	var data LiveRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LiveRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	payload, err := capture.ParseDataURL(data.Image)
	if err != nil {
		return core.NewValidationError(nil, core.FieldError{Field: imageField, Error: err.Error()})
	}
	if !payload.IsImage() {
		return core.NewValidationError(nil, core.FieldError{Field: imageField, Error: errNotAnImage})
	}

	p, err := getContextProfile(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context profile")
	}

	return api.submit(ctx, submitterKey(ctx, p), attendance.Submission{
		Path:     attendance.PathLive,
		Payload:  payload,
		Identity: identity(p),
	})
}

// upload records a chosen image file. The name typed by the user identifies anonymous submitters.
func (api *attendanceApi) upload(ctx echo.Context) error {
	up := capture.Upload{Name: ctx.FormValue(nameField)}
	fh, err := ctx.FormFile(imageField)
	switch {
	case err == nil:
		up.Filename = fh.Filename
		up.ContentType = fh.Header.Get(echo.HeaderContentType)
		if up.Data, err = readFormFile(fh); err != nil {
			return errors.Wrap(err, "reading uploaded file")
		}
	case err != http.ErrMissingFile && err != http.ErrNotMultipart:
		return errors.Wrap(err, "getting uploaded file")
	}
	if err := up.Validate(api.validate); err != nil {
		return err
	}

	var p user.Profile
	if _, ok := getContextToken(ctx); ok {
		if p, err = getContextProfile(ctx, api.usrSvc); err != nil {
			return errors.Wrap(err, "getting context profile")
		}
	}

	return api.submit(ctx, submitterKey(ctx, p), attendance.Submission{
		Path:     attendance.PathUpload,
		Payload:  up.Payload(),
		Identity: identity(p),
		Name:     up.Name,
	})
}

func (api *attendanceApi) submit(ctx echo.Context, key string, sub attendance.Submission) error {
	out, err := api.pipelines.Submit(ctx.Request().Context(), key, sub)
	if err != nil {
		if errors.Cause(err) == attendance.ErrSubmissionInProgress {
			return errInProgress
		}
		return errors.Wrap(err, "submitting attendance")
	}

	code := http.StatusOK
	if out.Record != nil {
		code = http.StatusCreated
	}
	return ctx.JSON(code, out)
}

func (api *attendanceApi) query(ctx echo.Context) error {
	limit := new(Limit)
	limit.Bind(ctx)

	records, err := api.repo.Recent(ctx.Request().Context(), limit.Value)
	if err != nil {
		return core.NewKindError(core.KindRecord, "echoapi.query", errors.Wrap(err, "querying records"))
	}
	if records == nil {
		records = []attendance.Record{}
	}
	return ctx.JSON(http.StatusOK, records)
}

func (api *attendanceApi) bootstrap(ctx echo.Context) error {
	created, err := attendance.EnsureInitialized(ctx.Request().Context(), api.repo)
	if err != nil {
		return core.NewKindError(core.KindRecord, "echoapi.bootstrap", errors.Wrap(err, "initializing records"))
	}
	return ctx.JSON(http.StatusOK, BootstrapResponse{Created: created})
}

func readFormFile(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// submitterKey identifies whose pipeline runs the submission: the signed in user, else the client address.
func submitterKey(ctx echo.Context, p user.Profile) string {
	if p.ID != "" {
		return "user:" + p.ID
	}
	return "ip:" + ctx.RealIP()
}

func identity(p user.Profile) attendance.Identity {
	return attendance.Identity{
		UserID:      p.ID,
		DisplayName: p.Name,
		Email:       p.Email,
	}
}

type (
	LiveRequest struct {
		Image string `json:"image" validate:"required"`
	}

	BootstrapResponse struct {
		Created bool `json:"created"`
	}
)

func (lr *LiveRequest) Validate(validate *validator.Validate) error {
	return validate.Struct(lr)
}

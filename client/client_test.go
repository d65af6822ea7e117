package client_test

import (
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/AlriyanKhan/Ai-attendance/apps/api/echo"
	"github.com/AlriyanKhan/Ai-attendance/client"
	"github.com/AlriyanKhan/Ai-attendance/core"
	"github.com/AlriyanKhan/Ai-attendance/core/attendance"
	"github.com/AlriyanKhan/Ai-attendance/core/auth"
	"github.com/AlriyanKhan/Ai-attendance/core/capture"
	"github.com/AlriyanKhan/Ai-attendance/core/user"
	emailsvc "github.com/AlriyanKhan/Ai-attendance/services/email"
	identitysvc "github.com/AlriyanKhan/Ai-attendance/services/identity"
	inmemdb "github.com/AlriyanKhan/Ai-attendance/storage/database/inmem"
)

var (
	pngData = []byte("\x89PNG\r\n\x1a\nfake-pixels")

	errStop = errors.New("stop")
)

type fakeBlobs struct{}

func (fakeBlobs) Store(_ context.Context, name string, _ capture.Payload) (string, error) {
	return "https://blobs.test/" + name, nil
}

type fakeDetector struct{}

func (fakeDetector) DetectFaces(context.Context, capture.Payload) ([]attendance.Face, error) {
	return []attendance.Face{{Confidence: 0.9}}, nil
}

type fakeInsights struct{}

func (fakeInsights) Analyze(context.Context, []attendance.InsightInput) (string, error) {
	return "Attendance looks regular.", nil
}

// newAPI serves the API over an in-memory store and returns a config pointing at it.
func newAPI(t *testing.T) *core.Config {
	conf := &core.Config{
		AppName:   "AI Attendance",
		TestMode:  true,
		SecretKey: "test-secret",
		Server: core.ServerConfig{
			JWTExpirationDelta:        time.Hour,
			JWTRefreshExpirationDelta: 4 * time.Hour,
			MaxUploadSize:             "2M",
		},
	}
	core.ParseEmailTemplates(conf, core.NewNopLogger())

	db, err := inmemdb.Open()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	usrRepo := inmemdb.NewUserRepository(db)
	records := inmemdb.NewAttendanceRepository(db)

	translator := core.NewTranslator()
	validate := core.NewValidator(translator)
	user.InitValidators(validate, translator)
	usrSvc := user.NewServiceMock(
		usrRepo,
		identitysvc.NewLocalProvider(inmemdb.NewCredentialRepository(db)),
		emailsvc.NewConsoleServiceMock(conf),
		validate,
	)

	srv := httptest.NewServer(echoapi.NewServer(&echoapi.Options{
		Conf:           conf,
		DisableReqLogs: true,
		Validate:       validate,
		Translator:     translator,
		UserSvc:        usrSvc,
		Records:        records,
		Pipelines: attendance.NewPipelines(
			fakeBlobs{}, fakeDetector{}, fakeInsights{}, records, core.NewNopLogger(), attendance.PipelineConfig{},
		),
	}))
	t.Cleanup(srv.Close)

	conf.Client = core.ClientConfig{
		APIURL:      srv.URL,
		SessionFile: filepath.Join(t.TempDir(), "session.json"),
	}
	return conf
}

func newClient(t *testing.T, conf *core.Config) *client.Client {
	c := client.New(conf)
	t.Cleanup(c.Close)
	return c
}

func TestClient_session(t *testing.T) {
	conf := newAPI(t)
	ctx := context.Background()

	c := newClient(t, conf)
	assert.Equal(t, auth.ShowLoading, auth.Guard(c.Gate()))
	require.NoError(t, c.Restore())
	assert.Equal(t, auth.RedirectSignIn, auth.Guard(c.Gate()))

	_, err := c.Whoami(ctx)
	assert.True(t, core.IsKind(err, core.KindAuth))

	s, err := c.Register(ctx, client.NewAccount{
		Name:            "Jane Doe",
		Email:           "jane@example.com",
		Password:        "secret",
		PasswordConfirm: "secret",
	})
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", s.DisplayName)
	assert.Equal(t, auth.Render, auth.Guard(c.Gate()))
	assert.FileExists(t, conf.Client.SessionFile)

	// a later run picks the session up
	again := newClient(t, conf)
	require.NoError(t, again.Restore())
	restored, ok := again.Gate().Current()
	require.True(t, ok)
	assert.Equal(t, s.UserID, restored.UserID)

	me, err := again.Whoami(ctx)
	require.NoError(t, err)
	assert.Equal(t, "jane@example.com", me.Email)

	refreshed, err := again.Refresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, s.UserID, refreshed.UserID)

	require.NoError(t, again.Logout(ctx))
	assert.Equal(t, auth.RedirectSignIn, auth.Guard(again.Gate()))
	_, err = os.Stat(conf.Client.SessionFile)
	assert.True(t, os.IsNotExist(err))

	// the first client still holds the old token, which the API now rejects
	_, err = c.Whoami(ctx)
	require.Error(t, err)
	assert.True(t, core.IsKind(err, core.KindAuth))
	assert.Equal(t, auth.RedirectSignIn, auth.Guard(c.Gate()))
}

func TestClient_errors(t *testing.T) {
	conf := newAPI(t)
	ctx := context.Background()
	c := newClient(t, conf)
	require.NoError(t, c.Restore())

	_, err := c.Register(ctx, client.NewAccount{
		Name:            "Jane",
		Email:           "jane@example.com",
		Password:        "secret",
		PasswordConfirm: "secreT",
	})
	apiErr, ok := client.AsAPIError(err)
	require.True(t, ok, "got %v", err)
	assert.Equal(t, 400, apiErr.StatusCode)
	assert.Equal(t, map[string]string{"password_confirm": "Passwords do not match"}, apiErr.Fields)
	assert.Equal(t, "password_confirm: Passwords do not match", apiErr.Error())

	_, err = c.Login(ctx, "jane@example.com", "secret")
	apiErr, ok = client.AsAPIError(err)
	require.True(t, ok, "got %v", err)
	assert.Equal(t, "Invalid email or password", apiErr.Message)
	assert.Equal(t, auth.RedirectSignIn, auth.Guard(c.Gate()))
}

func TestClient_attendance(t *testing.T) {
	conf := newAPI(t)
	ctx := context.Background()
	c := newClient(t, conf)
	require.NoError(t, c.Restore())

	_, err := c.SubmitLive(ctx, capture.NewPayload(pngData, ""))
	assert.True(t, core.IsKind(err, core.KindAuth))
	assert.True(t, errors.Is(err, client.ErrSignedOut))

	// incomplete uploads never reach the API
	_, err = c.Upload(ctx, capture.Upload{Name: " ", Data: pngData})
	var vErr *core.ValidationError
	require.True(t, errors.As(err, &vErr), "got %v", err)

	out, err := c.Upload(ctx, capture.Upload{Name: "John Smith", Filename: "john.png", Data: pngData})
	require.NoError(t, err)
	require.NotNil(t, out.Record)
	assert.Equal(t, "john_smith", out.Record.UserID)
	assert.Equal(t, attendance.StateDone, out.State)

	s, err := c.Register(ctx, client.NewAccount{
		Name:            "Jane Doe",
		Email:           "jane@example.com",
		Password:        "secret",
		PasswordConfirm: "secret",
	})
	require.NoError(t, err)

	out, err = c.SubmitLive(ctx, capture.NewPayload(pngData, ""))
	require.NoError(t, err)
	require.NotNil(t, out.Record)
	assert.Equal(t, s.UserID, out.Record.UserID)
	assert.Equal(t, "Attendance looks regular.", out.Insight)

	records, err := c.Records(ctx, 0)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, s.UserID, records[0].UserID)

	records, err = c.Records(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, records, 1)

	view, err := c.Dashboard(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, view.Stats.TotalAttendance)

	streamCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	var streamed attendance.View
	err = c.StreamDashboard(streamCtx, func(v attendance.View) error {
		streamed = v
		return errStop
	})
	assert.Equal(t, errStop, err)
	assert.Equal(t, 2, streamed.Stats.TotalAttendance)
	assert.Len(t, streamed.Rows, 2)
}

func TestClient_restoreExpiry(t *testing.T) {
	conf := &core.Config{Client: core.ClientConfig{SessionFile: filepath.Join(t.TempDir(), "session.json")}}

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.StandardClaims{ExpiresAt: time.Now().Add(-time.Minute).Unix()})
	token, err := expired.SignedString([]byte("whatever"))
	require.NoError(t, err)
	data := []byte(`{"user_id":"uid-1","email":"jane@example.com","token":"` + token + `"}`)
	require.NoError(t, os.WriteFile(conf.Client.SessionFile, data, 0600))

	c := newClient(t, conf)
	require.NoError(t, c.Restore())
	assert.Equal(t, auth.RedirectSignIn, auth.Guard(c.Gate()), "the token expiry is read from the token")
}

package main

import (
	"bufio"
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/AlriyanKhan/Ai-attendance/apps/api/echo"
	"github.com/AlriyanKhan/Ai-attendance/client"
	"github.com/AlriyanKhan/Ai-attendance/core"
	"github.com/AlriyanKhan/Ai-attendance/core/attendance"
	"github.com/AlriyanKhan/Ai-attendance/core/capture"
	"github.com/AlriyanKhan/Ai-attendance/core/user"
	emailsvc "github.com/AlriyanKhan/Ai-attendance/services/email"
	identitysvc "github.com/AlriyanKhan/Ai-attendance/services/identity"
	inmemdb "github.com/AlriyanKhan/Ai-attendance/storage/database/inmem"
)

var pngData = []byte("\x89PNG\r\n\x1a\nfake-pixels")

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

type fakeCamera struct {
	denied bool
	frames int
}

func (c *fakeCamera) Open(context.Context) (capture.Stream, error) {
	if c.denied {
		return nil, core.NewKindError(core.KindPermission, "fakeCamera.Open", &capture.CameraAccessError{Err: os.ErrPermission})
	}
	return c, nil
}

func (c *fakeCamera) Frame(context.Context) ([]byte, error) {
	c.frames++
	return pngData, nil
}

func (c *fakeCamera) Close() error { return nil }

// newConf starts an API server and returns a config pointing at it, along with the count of requests it served.
func newConf(t *testing.T) (*core.Config, *int64) {
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
	records := inmemdb.NewAttendanceRepository(db)

	translator := core.NewTranslator()
	validate := core.NewValidator(translator)
	user.InitValidators(validate, translator)
	usrSvc := user.NewServiceMock(
		inmemdb.NewUserRepository(db),
		identitysvc.NewLocalProvider(inmemdb.NewCredentialRepository(db)),
		emailsvc.NewConsoleServiceMock(conf),
		validate,
	)

	api := echoapi.NewServer(&echoapi.Options{
		Conf:           conf,
		DisableReqLogs: true,
		Validate:       validate,
		Translator:     translator,
		UserSvc:        usrSvc,
		Records:        records,
		Pipelines: attendance.NewPipelines(
			fakeBlobs{}, fakeDetector{}, fakeInsights{}, records, core.NewNopLogger(), attendance.PipelineConfig{},
		),
	})
	var requests int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&requests, 1)
		api.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)

	conf.Client = core.ClientConfig{
		APIURL:      srv.URL,
		SessionFile: filepath.Join(t.TempDir(), "session.json"),
	}
	return conf, &requests
}

// newCLI returns a command line over a restored client, reading `input` as the user's answers.
func newCLI(t *testing.T, conf *core.Config, camera capture.Camera, input string) (*commandLine, *bytes.Buffer) {
	c := client.New(conf)
	t.Cleanup(c.Close)
	require.NoError(t, c.Restore())

	var out bytes.Buffer
	return &commandLine{
		client: c,
		camera: camera,
		in:     bufio.NewReader(strings.NewReader(input)),
		out:    &out,
	}, &out
}

func mockPasswords(t *testing.T, pwds ...string) {
	orig := readPasswordFunc
	readPasswordFunc = func(fd int) ([]byte, error) {
		if len(pwds) == 0 {
			return nil, nil
		}
		pwd := pwds[0]
		pwds = pwds[1:]
		return []byte(pwd), nil
	}
	t.Cleanup(func() { readPasswordFunc = orig })
}

type cliTest struct {
	name    string
	args    []string // without program name
	wantErr error
	wantOut string
	extra   interface{}
}

func Test_commandLine_session(t *testing.T) {
	conf, _ := newConf(t)

	type extra struct {
		pwds []string
	}
	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "whoami signed out", args: []string{"whoami"}, wantErr: errSignInRequired},
		{name: "records signed out", args: []string{"records"}, wantErr: errSignInRequired},
		{name: "register without email", args: []string{"register", "-name", "Jane"}, wantErr: errHelp},
		{name: "login without password", args: []string{"login", "-email", "jane@example.com"}, wantErr: errHelp},
		{name: "logout signed out", args: []string{"logout"}, wantOut: "Not signed in"},
		{
			name:    "register",
			args:    []string{"register", "-name", "Jane Doe", "-email", "jane@example.com"},
			extra:   extra{pwds: []string{"secret", "secret"}},
			wantOut: "Signed in as Jane Doe <jane@example.com>",
		},
		{name: "whoami", args: []string{"whoami"}, wantOut: "Signed in as Jane Doe <jane@example.com>"},
		{name: "refresh", args: []string{"refresh"}, wantOut: "Signed in as Jane Doe"},
		{name: "logout", args: []string{"logout"}, wantOut: "Signed out"},
		{name: "whoami after logout", args: []string{"whoami"}, wantErr: errSignInRequired},
		{
			name:    "login",
			args:    []string{"login", "-email", "jane@example.com"},
			extra:   extra{pwds: []string{"secret"}},
			wantOut: "Signed in as Jane Doe",
		},
	}
	for _, tt := range tests {
		args := append([]string{"attendctl"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			var pwds []string
			if e, ok := tt.extra.(extra); ok {
				pwds = e.pwds
			}
			mockPasswords(t, pwds...)

			// every command is a new process picking the session file up
			cli, out := newCLI(t, conf, &fakeCamera{}, "")
			err := cli.run(args)
			if tt.wantErr != nil {
				assert.Equal(t, tt.wantErr, err)
				return
			}
			require.NoError(t, err)
			assert.Contains(t, out.String(), tt.wantOut)
		})
	}
}

func Test_commandLine_capture(t *testing.T) {
	conf, requests := newConf(t)
	mockPasswords(t, "secret", "secret")
	cli, _ := newCLI(t, conf, &fakeCamera{}, "")
	require.NoError(t, cli.run([]string{"attendctl", "register", "-name", "Jane Doe", "-email", "jane@example.com"}))

	t.Run("camera denied", func(t *testing.T) {
		cli, out := newCLI(t, conf, &fakeCamera{denied: true}, "")
		before := atomic.LoadInt64(requests)
		err := cli.run([]string{"attendctl", "capture"})
		require.Error(t, err)
		assert.Equal(t, before, atomic.LoadInt64(requests), "no request reaches the API")
		assert.True(t, capture.IsCameraAccessError(err))

		cli.printError(err)
		assert.Contains(t, out.String(), "Camera access denied")
	})

	t.Run("quit", func(t *testing.T) {
		cli, _ := newCLI(t, conf, &fakeCamera{}, "q\n")
		assert.Equal(t, errAborted, cli.run([]string{"attendctl", "capture"}))
	})

	t.Run("retake then submit", func(t *testing.T) {
		camera := &fakeCamera{}
		cli, out := newCLI(t, conf, camera, "retake\n\n")
		require.NoError(t, cli.run([]string{"attendctl", "capture"}))
		assert.Equal(t, 2, camera.frames)
		assert.Contains(t, out.String(), attendance.MsgRecorded)
		assert.Contains(t, out.String(), "Attendance looks regular.")
	})

	cli, out := newCLI(t, conf, &fakeCamera{}, "")
	require.NoError(t, cli.run([]string{"attendctl", "records"}))
	assert.Contains(t, out.String(), "Jane Doe")
	assert.Contains(t, out.String(), "Verified")
}

func Test_commandLine_upload(t *testing.T) {
	conf, _ := newConf(t)
	image := filepath.Join(t.TempDir(), "me.png")
	require.NoError(t, os.WriteFile(image, pngData, 0600))

	cli, out := newCLI(t, conf, &fakeCamera{}, "")

	err := cli.run([]string{"attendctl", "upload", "-file", image})
	var vErr *core.ValidationError
	require.True(t, errors.As(err, &vErr), "got %v", err)
	assert.Equal(t, capture.ErrIncompleteUpload, vErr.Err)

	// no session needed
	require.NoError(t, cli.run([]string{"attendctl", "upload", "-name", "John Smith", "-file", image}))
	assert.Contains(t, out.String(), attendance.MsgRecorded)
}

func Test_commandLine_dashboard(t *testing.T) {
	conf, _ := newConf(t)
	mockPasswords(t, "secret", "secret")
	cli, out := newCLI(t, conf, &fakeCamera{}, "s\n")
	require.NoError(t, cli.run([]string{"attendctl", "register", "-name", "Jane Doe", "-email", "jane@example.com"}))
	require.NoError(t, cli.run([]string{"attendctl", "capture"}))

	out.Reset()
	require.NoError(t, cli.run([]string{"attendctl", "dashboard", "-once"}))
	assert.Contains(t, out.String(), "Total: 1")
	assert.Contains(t, out.String(), "Active users: 1")
	assert.Contains(t, out.String(), "Jane Doe")
}

func Test_commandLine_printView_viewerToday(t *testing.T) {
	viewer := time.FixedZone("UTC+2", 2*60*60)
	orig := nowFunc
	nowFunc = func() time.Time { return time.Date(2024, 3, 1, 0, 30, 0, 0, viewer) }
	t.Cleanup(func() { nowFunc = orig })

	// computed by a server running in UTC at 22:50
	v := attendance.View{
		Stats: attendance.Stats{TotalAttendance: 2, TodayAttendance: 2, AverageConfidence: 0.8, ActiveUsers: 2},
		Rows: []attendance.Row{
			{ID: "1", Name: "Jane Doe", Timestamp: time.Date(2024, 2, 29, 22, 45, 0, 0, time.UTC), Confidence: 0.9, Status: attendance.StatusVerified},
			{ID: "2", Name: "John Smith", Timestamp: time.Date(2024, 2, 29, 21, 15, 0, 0, time.UTC), Confidence: 0.7, Status: attendance.StatusReview},
		},
		UpdatedAt: time.Date(2024, 2, 29, 22, 50, 0, 0, time.UTC),
	}

	var out bytes.Buffer
	cli := &commandLine{out: &out}
	require.NoError(t, cli.printView(v))
	assert.Contains(t, out.String(), "Total: 2  Today: 1  Avg confidence: 80.0%  Active users: 2")
}

func Test_commandLine_guardPending(t *testing.T) {
	conf, _ := newConf(t)
	c := client.New(conf)
	t.Cleanup(c.Close)

	var out bytes.Buffer
	cli := &commandLine{client: c, out: &out}

	go func() {
		time.Sleep(50 * time.Millisecond)
		_ = c.Restore()
	}()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.Equal(t, errSignInRequired, cli.guard(ctx))
	assert.Equal(t, "Loading…\n", out.String())
}

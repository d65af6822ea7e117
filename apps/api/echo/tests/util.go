package tests

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	. "github.com/AlriyanKhan/Ai-attendance/apps/api/echo"
	"github.com/AlriyanKhan/Ai-attendance/core"
	"github.com/AlriyanKhan/Ai-attendance/core/attendance"
	"github.com/AlriyanKhan/Ai-attendance/core/capture"
	"github.com/AlriyanKhan/Ai-attendance/core/user"
	"github.com/AlriyanKhan/Ai-attendance/services/email"
	"github.com/AlriyanKhan/Ai-attendance/services/identity"
	"github.com/AlriyanKhan/Ai-attendance/storage/database/inmem"
)

var (
	errMissingToken = httpErr{Error: "missing or malformed jwt"}

	// smallest payload sniffed as image/png
	pngData = []byte("\x89PNG\r\n\x1a\nfake-pixels")
)

type fakeBlobs struct{}

func (fakeBlobs) Store(_ context.Context, name string, _ capture.Payload) (string, error) {
	return "https://blobs.test/" + name, nil
}

type fakeDetector struct {
	faces   []attendance.Face
	release chan struct{} // blocks DetectFaces until closed when set
}

func (d *fakeDetector) DetectFaces(ctx context.Context, _ capture.Payload) ([]attendance.Face, error) {
	if d.release != nil {
		select {
		case <-d.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return d.faces, nil
}

type fakeInsights struct{}

func (fakeInsights) Analyze(context.Context, []attendance.InsightInput) (string, error) {
	return "Attendance looks regular.", nil
}

type testEnv struct {
	app       Server
	conf      *core.Config
	usrRepo   user.Repository
	credRepo  user.CredentialRepository
	records   attendance.Repository
	pipelines *attendance.Pipelines
	detector  *fakeDetector
}

func setup(t *testing.T) *testEnv {
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

	// set up DB & repos
	db, err := inmemdb.Open()
	if err != nil {
		t.Fatalf("inmemdb.Open() failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	env := &testEnv{
		conf:     conf,
		usrRepo:  inmemdb.NewUserRepository(db),
		credRepo: inmemdb.NewCredentialRepository(db),
		records:  inmemdb.NewAttendanceRepository(db),
		detector: &fakeDetector{faces: []attendance.Face{{Confidence: 0.92}}},
	}

	// set up services
	translator := core.NewTranslator()
	validate := core.NewValidator(translator)
	user.InitValidators(validate, translator)

	mailSvc := emailsvc.NewConsoleServiceMock(conf)
	usrSvc := user.NewServiceMock(env.usrRepo, identitysvc.NewLocalProvider(env.credRepo), mailSvc, validate)
	env.pipelines = attendance.NewPipelines(
		fakeBlobs{},
		env.detector,
		fakeInsights{},
		env.records,
		core.NewNopLogger(),
		attendance.PipelineConfig{},
	)

	// set up server
	env.app = NewServer(&Options{
		Conf:           conf,
		DisableReqLogs: true,
		Validate:       validate,
		Translator:     translator,
		UserSvc:        usrSvc,
		Records:        env.records,
		Pipelines:      env.pipelines,
	})
	return env
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
	extra    interface{}
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

// newUploadRequest builds the multipart form of the upload path. A nil image omits the file part.
func newUploadRequest(t *testing.T, token, name string, image []byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	if err := w.WriteField("name", name); err != nil {
		t.Fatalf("newUploadRequest() failed: %v", err)
	}
	if image != nil {
		part, err := w.CreateFormFile("image", "me.png")
		if err != nil {
			t.Fatalf("newUploadRequest() failed: %v", err)
		}
		_, _ = part.Write(image)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("newUploadRequest() failed: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/attendance/upload", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, httptest.NewRecorder()
}

func getToken(t *testing.T, conf *core.Config, p user.Profile, origIat ...int64) string {
	claims := GetProfileClaims(conf, p, origIat...)
	token, err := GenerateToken(conf, claims)
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

func unmarshallObj(t *testing.T, rec *httptest.ResponseRecorder, obj interface{}) {
	if err := json.Unmarshal(rec.Body.Bytes(), obj); err != nil {
		t.Fatalf("unmarshallObj() failed: %v; body %s", err, rec.Body.String())
	}
}

func jsonBytesEqual(t *testing.T, b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	if reflect.DeepEqual(j1, j2) {
		return true, nil
	}
	if j1 == nil || j2 == nil {
		return false, nil
	}
	return assert.ObjectsAreEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	ok, err := jsonBytesEqual(t, rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

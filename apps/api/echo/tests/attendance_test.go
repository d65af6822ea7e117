package tests

import (
	"context"
	"encoding/base64"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AlriyanKhan/Ai-attendance/core/attendance"
	"github.com/AlriyanKhan/Ai-attendance/core/user"
	"github.com/AlriyanKhan/Ai-attendance/tests"
)

func liveBody(t *testing.T, dataURL string) []byte {
	return marchallObj(t, map[string]string{"image": dataURL})
}

func Test_attendanceApi_submitLive(t *testing.T) {
	env := setup(t)
	path := "/api/attendance"

	p := testutil.CreateProfile(t, env.usrRepo, "uid-jane", "Jane Doe", "jane@example.com", user.RoleStudent)
	token := getToken(t, env.conf, p)
	pngURL := "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngData)

	tests := []httpTest{
		{
			name:     "missing token",
			body:     liveBody(t, pngURL),
			wantCode: http.StatusUnauthorized,
			wantData: marchallObj(t, errMissingToken),
		},
		{
			name:     "missing image",
			body:     []byte(`{}`),
			token:    token,
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"image":"this field is required"}`),
		},
		{
			name:     "not a data url",
			body:     liveBody(t, "https://example.com/me.png"),
			token:    token,
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"image":"invalid data URL"}`),
		},
		{
			name:     "not an image",
			body:     liveBody(t, "data:text/plain;base64,aGVsbG8="),
			token:    token,
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"image":"only image files are allowed"}`),
		},
		{
			name:     "no face",
			body:     liveBody(t, pngURL),
			token:    token,
			wantCode: http.StatusOK,
			extra:    []attendance.Face{},
		},
		{
			name:     "recorded",
			body:     liveBody(t, pngURL),
			token:    token,
			wantCode: http.StatusCreated,
			extra:    []attendance.Face{{Confidence: 0.92}, {Confidence: 0.4}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if faces, ok := tt.extra.([]attendance.Face); ok {
				env.detector.faces = faces
			}
			req, rec := newAuthRequest(http.MethodPost, path, tt.token, tt.body)
			env.app.ServeHTTP(rec, req)

			if tt.wantData != nil {
				checkCodeAndData(t, tt, rec)
				return
			}
			require.Equal(t, tt.wantCode, rec.Code, rec.Body.String())

			var out attendance.Outcome
			unmarshallObj(t, rec, &out)
			if tt.wantCode == http.StatusOK {
				assert.Equal(t, attendance.StateIdle, out.State)
				assert.False(t, out.FaceDetected)
				assert.Equal(t, attendance.MsgNoFace, out.Message)
				assert.Nil(t, out.Record)
				return
			}
			assert.Equal(t, attendance.StateDone, out.State)
			assert.True(t, out.FaceDetected)
			assert.Equal(t, attendance.MsgRecorded, out.Message)
			assert.Equal(t, "Attendance looks regular.", out.Insight)
			require.NotNil(t, out.Record)
			assert.Equal(t, p.ID, out.Record.UserID)
			assert.Equal(t, p.Name, out.Record.DisplayName)
			assert.Equal(t, p.Email, out.Record.UserEmail)
			assert.Equal(t, 0.92, out.Record.Confidence)
			assert.True(t, strings.HasPrefix(out.Record.ImageURL, "https://blobs.test/attendance/"), out.Record.ImageURL)
			assert.True(t, strings.HasSuffix(out.Record.ImageURL, ".png"), out.Record.ImageURL)
		})
	}
}

func Test_attendanceApi_upload(t *testing.T) {
	env := setup(t)

	p := testutil.CreateProfile(t, env.usrRepo, "uid-jane", "Jane Doe", "jane@example.com", user.RoleStudent)
	token := getToken(t, env.conf, p)

	tests := []struct {
		name       string
		token      string
		formName   string
		image      []byte
		wantCode   int
		wantData   string
		wantUserID string
		wantName   string
	}{
		{
			name:     "missing image",
			formName: "John Smith",
			wantCode: http.StatusBadRequest,
			wantData: `{"error":"Please provide both name and image"}`,
		},
		{
			name:     "missing name",
			formName: "   ",
			image:    pngData,
			wantCode: http.StatusBadRequest,
			wantData: `{"error":"Please provide both name and image"}`,
		},
		{
			name:     "not an image",
			formName: "John Smith",
			image:    []byte("just some text"),
			wantCode: http.StatusBadRequest,
			wantData: `{"content_type":"only image files are allowed"}`,
		},
		{
			name:       "anonymous",
			formName:   " John Smith ",
			image:      pngData,
			wantCode:   http.StatusCreated,
			wantUserID: "john_smith",
			wantName:   "John Smith",
		},
		{
			name:       "signed in",
			token:      token,
			formName:   "Someone Else",
			image:      pngData,
			wantCode:   http.StatusCreated,
			wantUserID: p.ID,
			wantName:   p.Name,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req, rec := newUploadRequest(t, tc.token, tc.formName, tc.image)
			env.app.ServeHTTP(rec, req)

			require.Equal(t, tc.wantCode, rec.Code, rec.Body.String())
			if tc.wantData != "" {
				assert.JSONEq(t, tc.wantData, rec.Body.String())
				return
			}
			var out attendance.Outcome
			unmarshallObj(t, rec, &out)
			require.NotNil(t, out.Record)
			assert.Equal(t, tc.wantUserID, out.Record.UserID)
			assert.Equal(t, tc.wantName, out.Record.DisplayName)
		})
	}

	// the typed name ends up in the blob name
	req, rec := newUploadRequest(t, "", "John Smith", pngData)
	env.app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var out attendance.Outcome
	unmarshallObj(t, rec, &out)
	assert.True(t, strings.HasPrefix(out.ImageURL, "https://blobs.test/attendance/John_Smith_"), out.ImageURL)
}

func Test_attendanceApi_inProgress(t *testing.T) {
	env := setup(t)
	path := "/api/attendance"

	p := testutil.CreateProfile(t, env.usrRepo, "uid-jane", "Jane Doe", "jane@example.com", user.RoleStudent)
	token := getToken(t, env.conf, p)
	body := liveBody(t, "data:image/png;base64,"+base64.StdEncoding.EncodeToString(pngData))

	release := make(chan struct{})
	env.detector.release = release

	firstCode := make(chan int, 1)
	go func() {
		req, rec := newAuthRequest(http.MethodPost, path, token, body)
		env.app.ServeHTTP(rec, req)
		firstCode <- rec.Code
	}()

	require.Eventually(t, func() bool {
		return env.pipelines.State("user:"+p.ID) == attendance.StateDetecting
	}, 2*time.Second, 5*time.Millisecond)

	req, rec := newAuthRequest(http.MethodPost, path, token, body)
	env.app.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{
		wantCode: http.StatusConflict,
		wantData: marchallObj(t, httpErr{Error: attendance.ErrSubmissionInProgress.Error()}),
	}, rec)

	close(release)
	assert.Equal(t, http.StatusCreated, <-firstCode)
	assert.Zero(t, env.pipelines.Running())
}

func Test_attendanceApi_query(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	p := testutil.CreateProfile(t, env.usrRepo, "uid-jane", "Jane Doe", "jane@example.com", user.RoleStudent)
	token := getToken(t, env.conf, p)

	_, err := attendance.EnsureInitialized(ctx, env.records)
	require.NoError(t, err)
	now := time.Now().UTC()
	first := testutil.CreateRecord(t, env.records, "jane", "Jane Doe", 0.9, now.Add(-2*time.Minute))
	second := testutil.CreateRecord(t, env.records, "john", "John", 0.5, now.Add(-time.Minute))
	third := testutil.CreateRecord(t, env.records, "ada", "Ada", 0.8, now)

	tests := []struct {
		name    string
		path    string
		wantIDs []string
	}{
		{name: "default window", path: "/api/attendance", wantIDs: []string{third.ID, second.ID, first.ID}},
		{name: "limit", path: "/api/attendance?limit=2", wantIDs: []string{third.ID, second.ID}},
		{name: "bad limit", path: "/api/attendance?limit=nope", wantIDs: []string{third.ID, second.ID, first.ID}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodGet, tc.path, token)
			env.app.ServeHTTP(rec, req)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

			var records []attendance.Record
			unmarshallObj(t, rec, &records)
			ids := make([]string, 0, len(records))
			for _, r := range records {
				ids = append(ids, r.ID)
			}
			assert.Equal(t, tc.wantIDs, ids)
		})
	}
}

func Test_attendanceApi_bootstrap(t *testing.T) {
	env := setup(t)
	path := "/api/attendance/bootstrap"

	student := testutil.CreateProfile(t, env.usrRepo, "uid-student", "Stu", "stu@example.com", user.RoleStudent)
	admin := testutil.CreateProfile(t, env.usrRepo, "uid-admin", "Ada", "ada@example.com", user.RoleAdmin)

	tests := []httpTest{
		{
			name:     "student",
			token:    getToken(t, env.conf, student),
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name:     "empty collection",
			token:    getToken(t, env.conf, admin),
			wantCode: http.StatusOK,
			wantData: []byte(`{"created":true}`),
		},
		{
			name:     "already initialized",
			token:    getToken(t, env.conf, admin),
			wantCode: http.StatusOK,
			wantData: []byte(`{"created":false}`),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodPost, path, tt.token)
			env.app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_dashboardApi(t *testing.T) {
	env := setup(t)

	p := testutil.CreateProfile(t, env.usrRepo, "uid-jane", "Jane Doe", "jane@example.com", user.RoleStudent)
	token := getToken(t, env.conf, p)

	now := time.Now().UTC()
	testutil.CreateRecord(t, env.records, "jane", "Jane Doe", 0.9, now.Add(-time.Minute))
	testutil.CreateRecord(t, env.records, "john", "", 0.5, now)

	t.Run("view", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/api/dashboard", token)
		env.app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var v attendance.View
		unmarshallObj(t, rec, &v)
		assert.Equal(t, 2, v.Stats.TotalAttendance)
		assert.Equal(t, 2, v.Stats.ActiveUsers)
		assert.InDelta(t, 0.7, v.Stats.AverageConfidence, 1e-9)
		require.Len(t, v.Rows, 2)
		assert.Equal(t, "john", v.Rows[0].Name)
		assert.Equal(t, attendance.StatusReview, v.Rows[0].Status)
		assert.Equal(t, attendance.StatusVerified, v.Rows[1].Status)
	})

	t.Run("stream", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
		defer cancel()

		req, rec := newAuthRequest(http.MethodGet, "/api/dashboard/stream", token)
		req = req.WithContext(ctx)
		env.app.ServeHTTP(rec, req) // returns once the client goes away

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
		body := rec.Body.String()
		assert.Contains(t, body, "event: view\n")
		assert.Contains(t, body, `"total_attendance":2`)
		assert.NotContains(t, body, "event: error")
	})

	t.Run("stream without token", func(t *testing.T) {
		req, rec := newRequest(http.MethodGet, "/api/dashboard/stream")
		env.app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)}, rec)
	})
}

package tests

import (
	"net/http"
	"testing"
	"time"

	"github.com/AlriyanKhan/Ai-attendance/apps/api/echo"
	"github.com/AlriyanKhan/Ai-attendance/core/user"
	"github.com/AlriyanKhan/Ai-attendance/tests"
)

func Test_userApi_register(t *testing.T) {
	env := setup(t)
	path := "/api/auth/register"

	tests := []httpTest{
		{
			name:     "ok",
			body:     []byte(`{"name":" Jane Doe ","email":"Jane@Example.com","password":"secret","password_confirm":"secret"}`),
			wantCode: http.StatusCreated,
		},
		{
			name:     "email in use",
			body:     []byte(`{"name":"Jane","email":"jane@example.com","password":"secret","password_confirm":"secret"}`),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "This email is already in use"}),
		},
		{
			name:     "passwords mismatch",
			body:     []byte(`{"name":"Jane","email":"j2@example.com","password":"secret","password_confirm":"secreT"}`),
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"password_confirm":"Passwords do not match"}`),
		},
		{
			name:     "short password",
			body:     []byte(`{"name":"Jane","email":"j3@example.com","password":"12345","password_confirm":"12345"}`),
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"password":"Password must be at least 6 characters long"}`),
		},
		{
			name:     "missing name",
			body:     []byte(`{"email":"j4@example.com","password":"secret","password_confirm":"secret"}`),
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"name":"this field is required"}`),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(http.MethodPost, path, tt.body)
			env.app.ServeHTTP(rec, req)

			if tt.wantData != nil {
				checkCodeAndData(t, tt, rec)
				return
			}
			if rec.Code != tt.wantCode {
				t.Fatalf("failed! code = %v; wantCode %v; body %s", rec.Code, tt.wantCode, rec.Body.String())
			}
			var res echoapi.SessionResponse
			unmarshallObj(t, rec, &res)
			if res.Token == "" || res.Token != res.Session.Token {
				t.Errorf("failed! token = %q; session token %q", res.Token, res.Session.Token)
			}
			if res.Session.Email != "jane@example.com" || res.Session.DisplayName != "Jane Doe" {
				t.Errorf("failed! session = %+v", res.Session)
			}
			if _, err := env.usrRepo.GetProfile(req.Context(), res.Session.UserID); err != nil {
				t.Errorf("profile not saved: %v", err)
			}
		})
	}
}

func Test_userApi_login(t *testing.T) {
	env := setup(t)
	path := "/api/auth/login"

	cred := testutil.CreateCredential(t, env.credRepo, "uid-jane", "Jane Doe", "jane@example.com", "secret")
	testutil.CreateProfile(t, env.usrRepo, cred.UID, "Jane Doe", cred.Email, user.RoleStudent)
	invalid := marchallObj(t, httpErr{Error: "Invalid email or password"})

	tests := []httpTest{
		{
			name:     "ok",
			body:     []byte(`{"email":"JANE@example.com","password":"secret"}`),
			wantCode: http.StatusOK,
		},
		{
			name:     "wrong password",
			body:     []byte(`{"email":"jane@example.com","password":"wrong1"}`),
			wantCode: http.StatusBadRequest,
			wantData: invalid,
		},
		{
			name:     "unknown email",
			body:     []byte(`{"email":"john@example.com","password":"secret"}`),
			wantCode: http.StatusBadRequest,
			wantData: invalid,
		},
		{
			name:     "missing password",
			body:     []byte(`{"email":"jane@example.com"}`),
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"password":"this field is required"}`),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(http.MethodPost, path, tt.body)
			env.app.ServeHTTP(rec, req)

			if tt.wantData != nil {
				checkCodeAndData(t, tt, rec)
				return
			}
			if rec.Code != tt.wantCode {
				t.Fatalf("failed! code = %v; wantCode %v; body %s", rec.Code, tt.wantCode, rec.Body.String())
			}
			var res echoapi.SessionResponse
			unmarshallObj(t, rec, &res)
			if res.Session.UserID != cred.UID {
				t.Errorf("failed! user_id = %q; want %q", res.Session.UserID, cred.UID)
			}
			if !res.Session.ExpiresAt.After(time.Now()) {
				t.Errorf("failed! expires_at = %v", res.Session.ExpiresAt)
			}
		})
	}
}

func Test_userApi_logout(t *testing.T) {
	env := setup(t)

	p := testutil.CreateProfile(t, env.usrRepo, "uid-jane", "Jane Doe", "jane@example.com", user.RoleStudent)
	token := getToken(t, env.conf, p)
	orphan := getToken(t, env.conf, user.Profile{ID: "uid-orphan", Name: "Orphan", Email: "orphan@example.com"})

	tests := []httpTest{
		{
			name:     "session",
			method:   http.MethodGet,
			path:     "/api/auth/session",
			token:    token,
			wantCode: http.StatusOK,
		},
		{
			name:     "session without profile",
			method:   http.MethodGet,
			path:     "/api/auth/session",
			token:    orphan,
			wantCode: http.StatusOK,
		},
		{
			name:     "missing token",
			method:   http.MethodPost,
			path:     "/api/auth/logout",
			wantCode: http.StatusUnauthorized,
			wantData: marchallObj(t, errMissingToken),
		},
		{
			name:     "logout",
			method:   http.MethodPost,
			path:     "/api/auth/logout",
			token:    token,
			wantCode: http.StatusNoContent,
		},
		{
			name:     "signed out token",
			method:   http.MethodGet,
			path:     "/api/auth/session",
			token:    token,
			wantCode: http.StatusUnauthorized,
			wantData: marchallObj(t, httpErr{Error: "session has been signed out"}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token)
			env.app.ServeHTTP(rec, req)

			if tt.wantData != nil {
				checkCodeAndData(t, tt, rec)
				return
			}
			if rec.Code != tt.wantCode {
				t.Errorf("failed! code = %v; wantCode %v; body %s", rec.Code, tt.wantCode, rec.Body.String())
			}
		})
	}

	// signing in again works
	req, rec := newAuthRequest(http.MethodGet, "/api/auth/session", getToken(t, env.conf, p))
	env.app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("failed! code = %v; wantCode %v; body %s", rec.Code, http.StatusOK, rec.Body.String())
	}
}

func Test_userApi_refreshToken(t *testing.T) {
	env := setup(t)
	path := "/api/auth/token-refresh"

	p := testutil.CreateProfile(t, env.usrRepo, "uid-jane", "Jane Doe", "jane@example.com", user.RoleStudent)

	tests := []httpTest{
		{
			name:     "ok",
			token:    getToken(t, env.conf, p),
			wantCode: http.StatusOK,
		},
		{
			name:     "refresh expired",
			token:    getToken(t, env.conf, p, time.Now().Add(-5*time.Hour).Unix()),
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "refresh has expired"}),
		},
		{
			name:     "missing token",
			wantCode: http.StatusUnauthorized,
			wantData: marchallObj(t, errMissingToken),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodPost, path, tt.token)
			env.app.ServeHTTP(rec, req)

			if tt.wantData != nil {
				checkCodeAndData(t, tt, rec)
				return
			}
			if rec.Code != tt.wantCode {
				t.Fatalf("failed! code = %v; wantCode %v; body %s", rec.Code, tt.wantCode, rec.Body.String())
			}
			var res echoapi.SessionResponse
			unmarshallObj(t, rec, &res)
			if res.Session.UserID != p.ID || res.Token == "" {
				t.Errorf("failed! session = %+v", res.Session)
			}
		})
	}
}

func Test_userApi_queryRoles(t *testing.T) {
	env := setup(t)
	path := "/api/auth/roles"

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
			name:     "admin",
			token:    getToken(t, env.conf, admin),
			wantCode: http.StatusOK,
			wantData: marchallObj(t, user.Roles),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodGet, path, tt.token)
			env.app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

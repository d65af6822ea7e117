package client

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/pkg/errors"
	"github.com/sendgrid/rest"

	"github.com/AlriyanKhan/Ai-attendance/core"
	"github.com/AlriyanKhan/Ai-attendance/core/auth"
)

type sessionResponse struct {
	Token   string       `json:"token"`
	Session auth.Session `json:"session"`
}

type NewAccount struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"password_confirm"`
}

func (c *Client) signIn(ctx context.Context, op, path string, payload interface{}, wantCode int) (auth.Session, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return auth.Session{}, errors.Wrap(err, "encoding request")
	}
	var res sessionResponse
	code, err := c.send(ctx, op, rest.Request{
		Method:  rest.Post,
		BaseURL: path,
		Headers: map[string]string{"Content-Type": "application/json", "Accept": "application/json"},
		Body:    body,
	}, &res)
	if err != nil {
		return auth.Session{}, err
	}
	if code != wantCode {
		return auth.Session{}, core.NewKindError(core.KindTransport, op, errors.Errorf("unexpected status %d", code))
	}
	if err := c.setSession(res.Session); err != nil {
		return res.Session, err
	}
	return res.Session, nil
}

// Register creates an account and signs it in.
func (c *Client) Register(ctx context.Context, acc NewAccount) (auth.Session, error) {
	return c.signIn(ctx, "client.Register", "/api/auth/register", acc, http.StatusCreated)
}

func (c *Client) Login(ctx context.Context, email, password string) (auth.Session, error) {
	creds := map[string]string{"email": email, "password": password}
	return c.signIn(ctx, "client.Login", "/api/auth/login", creds, http.StatusOK)
}

// Logout signs out through the gate. On failure the session is kept.
func (c *Client) Logout(ctx context.Context) error {
	if err := c.gate.SignOut(ctx); err != nil {
		return err
	}
	return removeSession(c.sessionFile)
}

// Revoke ends `s` on the API. A token the API already rejects counts as revoked.
func (c *Client) Revoke(ctx context.Context, s auth.Session) error {
	_, err := c.send(ctx, "client.Revoke", rest.Request{
		Method:  rest.Post,
		BaseURL: "/api/auth/logout",
		Headers: c.headers(s.Token),
	}, nil)
	if apiErr, ok := AsAPIError(err); ok && apiErr.StatusCode == http.StatusUnauthorized {
		return nil
	}
	return err
}

// Whoami asks the API for the current session, which also checks it was not revoked.
func (c *Client) Whoami(ctx context.Context) (auth.Session, error) {
	token, err := c.token("client.Whoami")
	if err != nil {
		return auth.Session{}, err
	}
	var s auth.Session
	if _, err := c.send(ctx, "client.Whoami", rest.Request{
		Method:  rest.Get,
		BaseURL: "/api/auth/session",
		Headers: c.headers(token),
	}, &s); err != nil {
		if core.IsKind(err, core.KindAuth) {
			c.gate.Resolve(nil)
			_ = removeSession(c.sessionFile)
		}
		return auth.Session{}, err
	}
	return s, nil
}

// Refresh trades the current token for a new one.
func (c *Client) Refresh(ctx context.Context) (auth.Session, error) {
	token, err := c.token("client.Refresh")
	if err != nil {
		return auth.Session{}, err
	}
	var res sessionResponse
	if _, err := c.send(ctx, "client.Refresh", rest.Request{
		Method:  rest.Post,
		BaseURL: "/api/auth/token-refresh",
		Headers: c.headers(token),
	}, &res); err != nil {
		return auth.Session{}, err
	}
	if err := c.setSession(res.Session); err != nil {
		return res.Session, err
	}
	return res.Session, nil
}

package client

import (
	"encoding/json"
	"io/ioutil"
	"os"
	"path/filepath"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/pkg/errors"

	"github.com/AlriyanKhan/Ai-attendance/core/auth"
)

// Restore ends the pending state of the gate with the session saved by a previous run, if any.
func (c *Client) Restore() error {
	s, err := loadSession(c.sessionFile)
	if err != nil {
		c.gate.Resolve(nil)
		return err
	}
	c.gate.Resolve(s)
	return nil
}

// setSession hands a new session to the gate and persists it.
func (c *Client) setSession(s auth.Session) error {
	c.gate.Resolve(&s)
	return saveSession(c.sessionFile, s)
}

func loadSession(path string) (*auth.Session, error) {
	if path == "" {
		return nil, nil
	}
	data, err := ioutil.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "reading session file")
	}
	var s auth.Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, errors.Wrap(err, "decoding session file")
	}
	if s.ExpiresAt.IsZero() {
		s.ExpiresAt = tokenExpiry(s.Token)
	}
	return &s, nil
}

func saveSession(path string, s auth.Session) error {
	if path == "" {
		return nil
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encoding session")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return errors.Wrap(err, "creating session directory")
	}
	return errors.Wrap(ioutil.WriteFile(path, data, 0600), "writing session file")
}

func removeSession(path string) error {
	if path == "" {
		return nil
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "removing session file")
	}
	return nil
}

// tokenExpiry reads the exp claim without verifying the signature, only the API can do that.
func tokenExpiry(token string) time.Time {
	var claims jwt.StandardClaims
	if _, _, err := new(jwt.Parser).ParseUnverified(token, &claims); err != nil || claims.ExpiresAt == 0 {
		return time.Time{}
	}
	return time.Unix(claims.ExpiresAt, 0).UTC()
}

// Package auth holds the client side of the identity gate: the session and who may read it.
package auth

import "time"

// Session is the signed in identity as held by a client.
type Session struct {
	UserID      string    `json:"user_id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	Token       string    `json:"token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Expired reports whether the token is no longer usable at `now`. A zero ExpiresAt never expires.
func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

func (s Session) Valid(now time.Time) bool {
	return s.UserID != "" && s.Token != "" && !s.Expired(now)
}

package user

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/AlriyanKhan/Ai-attendance/core"
)

// Roles
const (
	RoleStudent = "student"
	RoleAdmin   = "admin"
)

var (
	AllRoles = []string{RoleStudent, RoleAdmin}

	Roles = []Role{
		{Name: "Student", Value: RoleStudent},
		{Name: "Admin", Value: RoleAdmin},
	}
)

type Role struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Profile is the account record kept next to the identity provider's own account.
// Its ID is the provider's subject.
type Profile struct {
	ID               string    `json:"id" firestore:"-"`
	Name             string    `json:"name" firestore:"name"`
	Email            string    `json:"email" firestore:"email"`
	Role             string    `json:"role" firestore:"role"`
	CreatedAt        time.Time `json:"created_at" firestore:"createdAt"`         // UTC
	TokensValidAfter time.Time `json:"-" firestore:"tokensValidAfter,omitempty"` // UTC
}

func (p Profile) IsAdmin() bool { return p.Role == RoleAdmin }

// TokenRevoked reports whether a session issued at `issuedAt` was signed out since.
func (p Profile) TokenRevoked(issuedAt time.Time) bool {
	return !p.TokensValidAfter.IsZero() && issuedAt.Before(p.TokensValidAfter)
}

// Account is what the identity provider knows about a signed in user.
type Account struct {
	UID         string
	Email       string
	DisplayName string
	IDToken     string // provider session token, needed to update the account
}

// NewUser contains information needed to register a new account.
type NewUser struct {
	Name            string `json:"name" validate:"required,notblank"`
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required"`
}

func (nu *NewUser) Validate(validate *validator.Validate) error {
	nu.Name = core.CleanString(nu.Name)
	nu.Email = core.CleanString(nu.Email, true /* lower */)
	return validate.Struct(nu)
}

// Credentials are used to sign in.
type Credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (c *Credentials) Validate(validate *validator.Validate) error {
	c.Email = core.CleanString(c.Email, true /* lower */)
	return validate.Struct(c)
}

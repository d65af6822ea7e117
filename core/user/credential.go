package user

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"
)

var ErrEmailExists = errors.New("an account with this email already exists")

// Credential is an email/password account of the local identity provider.
type Credential struct {
	UID          string
	Email        string
	DisplayName  string
	PasswordHash []byte
	CreatedAt    time.Time // UTC
}

func (c *Credential) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	c.PasswordHash = hash
	return nil
}

func (c *Credential) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(c.PasswordHash, []byte(pwd))
}

// CredentialRepository stores local credentials.
type CredentialRepository interface {
	// CreateCredential fails with ErrEmailExists when the email is taken.
	CreateCredential(ctx context.Context, c Credential) error
	// GetCredentialByEmail fails with ErrNotFound.
	GetCredentialByEmail(ctx context.Context, email string) (Credential, error)
	UpdateCredential(ctx context.Context, c Credential) error
}

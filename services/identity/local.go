package identitysvc

import (
	"context"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/AlriyanKhan/Ai-attendance/core/user"
)

const minPasswordLen = 6

type localProvider struct {
	repo user.CredentialRepository
}

var _ user.IdentityProvider = (*localProvider)(nil)

// NewLocalProvider keeps bcrypt hashed credentials in `repo`. Used in development and tests.
func NewLocalProvider(repo user.CredentialRepository) user.IdentityProvider {
	return &localProvider{repo: repo}
}

func account(c user.Credential) user.Account {
	return user.Account{UID: c.UID, Email: c.Email, DisplayName: c.DisplayName}
}

func (p *localProvider) SignUp(ctx context.Context, email, password string) (user.Account, error) {
	if utf8.RuneCountInString(password) < minPasswordLen {
		return user.Account{}, user.NewProviderError(user.CodeWeakPassword, nil)
	}

	c := user.Credential{UID: uuid.NewString(), Email: email, CreatedAt: user.NowFunc().UTC()}
	if err := c.SetPassword(password); err != nil {
		return user.Account{}, user.NewProviderError(user.CodeUnknown, err)
	}
	if err := p.repo.CreateCredential(ctx, c); err != nil {
		if errors.Cause(err) == user.ErrEmailExists {
			return user.Account{}, user.NewProviderError(user.CodeEmailInUse, err)
		}
		return user.Account{}, user.NewProviderError(user.CodeUnknown, err)
	}
	return account(c), nil
}

func (p *localProvider) SignIn(ctx context.Context, email, password string) (user.Account, error) {
	c, err := p.repo.GetCredentialByEmail(ctx, email)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return user.Account{}, user.NewProviderError(user.CodeInvalidCredentials, err)
		}
		return user.Account{}, user.NewProviderError(user.CodeUnknown, err)
	}
	if err := c.CheckPassword(password); err != nil {
		return user.Account{}, user.NewProviderError(user.CodeInvalidCredentials, err)
	}
	return account(c), nil
}

func (p *localProvider) UpdateDisplayName(ctx context.Context, acc user.Account, name string) error {
	c, err := p.repo.GetCredentialByEmail(ctx, acc.Email)
	if err != nil {
		return user.NewProviderError(user.CodeUnknown, err)
	}
	c.DisplayName = name
	if err := p.repo.UpdateCredential(ctx, c); err != nil {
		return user.NewProviderError(user.CodeUnknown, err)
	}
	return nil
}

// ResetPassword replaces the password of the local account with `email`.
func ResetPassword(ctx context.Context, repo user.CredentialRepository, email, password string) error {
	if utf8.RuneCountInString(password) < minPasswordLen {
		return user.NewProviderError(user.CodeWeakPassword, nil)
	}
	c, err := repo.GetCredentialByEmail(ctx, email)
	if err != nil {
		return err
	}
	if err := c.SetPassword(password); err != nil {
		return err
	}
	return repo.UpdateCredential(ctx, c)
}

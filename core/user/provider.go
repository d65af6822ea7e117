package user

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
)

// Identity provider error codes
const (
	CodeEmailInUse         = "email-in-use"
	CodeInvalidEmail       = "invalid-email"
	CodeWeakPassword       = "weak-password"
	CodeNetworkFailure     = "network-failure"
	CodeInvalidCredentials = "invalid-credentials"
	CodeUserDisabled       = "user-disabled"
	CodeUnknown            = "unknown"
)

var (
	signUpFallback = "Failed to create account"
	signInFallback = "Authentication failed"

	providerMessages = map[string]string{
		CodeEmailInUse:         "This email is already in use",
		CodeInvalidEmail:       "Invalid email address",
		CodeWeakPassword:       "Password is too weak",
		CodeNetworkFailure:     "Network error. Please check your connection",
		CodeInvalidCredentials: "Invalid email or password",
		CodeUserDisabled:       "This account has been disabled",
	}
)

// IdentityProvider is the rented authentication backend.
type IdentityProvider interface {
	SignUp(ctx context.Context, email, password string) (Account, error)
	SignIn(ctx context.Context, email, password string) (Account, error)
	UpdateDisplayName(ctx context.Context, acc Account, name string) error
}

// ProviderError is returned by IdentityProvider implementations.
type ProviderError struct {
	Code string
	Err  error
}

func NewProviderError(code string, err error) error {
	return &ProviderError{Code: code, Err: err}
}

func (e *ProviderError) Error() string {
	if e.Err == nil {
		return "identity provider: " + e.Code
	}
	return fmt.Sprintf("identity provider: %s: %v", e.Code, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// ProviderErrorCode returns the code of the ProviderError found in err's chain, or CodeUnknown.
func ProviderErrorCode(err error) string {
	var pErr *ProviderError
	if errors.As(err, &pErr) {
		return pErr.Code
	}
	return CodeUnknown
}

// SignUpMessage maps a registration failure to the message shown to the user.
func SignUpMessage(err error) string {
	return userMessage(err, signUpFallback)
}

// SignInMessage maps a sign in failure to the message shown to the user.
func SignInMessage(err error) string {
	return userMessage(err, signInFallback)
}

func userMessage(err error, fallback string) string {
	if msg, ok := providerMessages[ProviderErrorCode(err)]; ok {
		return msg
	}
	return fallback
}

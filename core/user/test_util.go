package user

import (
	"github.com/go-playground/validator/v10"

	"github.com/AlriyanKhan/Ai-attendance/core"
)

// NewServiceMock returns a Service that logs nowhere. Pair it with a synchronous EmailService in tests.
func NewServiceMock(
	repo Repository,
	idp IdentityProvider,
	mailSvc core.EmailService,
	validate *validator.Validate,
) Service {
	return NewService(repo, idp, mailSvc, validate, core.NewNopLogger())
}

package user

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/AlriyanKhan/Ai-attendance/core"
)

var (
	NowFunc = time.Now // mockable

	// errors
	ErrNotFound = errors.New("user not found")
)

type (
	Repository interface {
		// SaveProfile creates or replaces the profile with the same ID.
		SaveProfile(ctx context.Context, p Profile) error
		GetProfile(ctx context.Context, id string) (Profile, error)
		GetProfileByEmail(ctx context.Context, email string) (Profile, error)
		// RevokeTokens sets TokensValidAfter; ErrNotFound when the profile does not exist.
		RevokeTokens(ctx context.Context, id string, at time.Time) error
	}

	Service interface {
		Register(ctx context.Context, nu NewUser) (Profile, error)
		SignIn(ctx context.Context, creds Credentials) (Profile, error)
		SignOut(ctx context.Context, p Profile) error
		Profile(ctx context.Context, id string) (Profile, error)
		ProfileByEmail(ctx context.Context, email string) (Profile, error)
	}

	service struct {
		repo     Repository
		idp      IdentityProvider
		mailSvc  core.EmailService
		validate *validator.Validate
		logger   core.Logger
	}
)

var _ Service = (*service)(nil)

func NewService(
	repo Repository,
	idp IdentityProvider,
	mailSvc core.EmailService,
	validate *validator.Validate,
	logger core.Logger,
) Service {
	return &service{
		repo:     repo,
		idp:      idp,
		mailSvc:  mailSvc,
		validate: validate,
		logger:   logger,
	}
}

// Register validates the new account locally, then creates it with the identity provider.
// Failing to set the display name or to write the profile does not fail the registration.
func (svc *service) Register(ctx context.Context, nu NewUser) (Profile, error) {
	if err := nu.Validate(svc.validate); err != nil {
		return Profile{}, err
	}

	acc, err := svc.idp.SignUp(ctx, nu.Email, nu.Password)
	if err != nil {
		return Profile{}, core.NewKindError(core.KindAuth, "user.Register", err)
	}

	if err := svc.idp.UpdateDisplayName(ctx, acc, nu.Name); err != nil {
		svc.logger.Warn(fmt.Sprintf("setting display name of %s: %v", acc.UID, err), err)
	}

	p := Profile{
		ID:        acc.UID,
		Name:      nu.Name,
		Email:     nu.Email,
		Role:      RoleStudent,
		CreatedAt: NowFunc().UTC(),
	}
	if err := svc.repo.SaveProfile(ctx, p); err != nil {
		svc.logger.Error(fmt.Sprintf("saving profile of %s: %v", acc.UID, err), err, p)
	}

	svc.sendWelcomeMail(p)
	return p, nil
}

// SignIn authenticates with the identity provider and loads the profile, creating it when missing.
func (svc *service) SignIn(ctx context.Context, creds Credentials) (Profile, error) {
	if err := creds.Validate(svc.validate); err != nil {
		return Profile{}, err
	}

	acc, err := svc.idp.SignIn(ctx, creds.Email, creds.Password)
	if err != nil {
		return Profile{}, core.NewKindError(core.KindAuth, "user.SignIn", err)
	}

	p, err := svc.repo.GetProfile(ctx, acc.UID)
	switch {
	case err == nil:
		return p, nil
	case errors.Cause(err) != ErrNotFound:
		return Profile{}, core.NewKindError(core.KindRecord, "user.SignIn", errors.Wrap(err, "getting profile"))
	}

	p = Profile{
		ID:        acc.UID,
		Name:      acc.DisplayName,
		Email:     core.CleanString(acc.Email, true /* lower */),
		Role:      RoleStudent,
		CreatedAt: NowFunc().UTC(),
	}
	if err := svc.repo.SaveProfile(ctx, p); err != nil {
		svc.logger.Error(fmt.Sprintf("saving profile of %s: %v", acc.UID, err), err, p)
	}
	return p, nil
}

// SignOut invalidates every session issued to the profile so far.
func (svc *service) SignOut(ctx context.Context, p Profile) error {
	now := NowFunc().UTC()
	err := svc.repo.RevokeTokens(ctx, p.ID, now)
	if errors.Cause(err) == ErrNotFound {
		if p.Role == "" {
			p.Role = RoleStudent
		}
		if p.CreatedAt.IsZero() {
			p.CreatedAt = now
		}
		p.TokensValidAfter = now
		err = svc.repo.SaveProfile(ctx, p)
	}
	if err != nil {
		return core.NewKindError(core.KindAuth, "user.SignOut", errors.Wrap(err, "revoking tokens"))
	}
	return nil
}

func (svc *service) Profile(ctx context.Context, id string) (Profile, error) {
	return svc.repo.GetProfile(ctx, id)
}

func (svc *service) ProfileByEmail(ctx context.Context, email string) (Profile, error) {
	return svc.repo.GetProfileByEmail(ctx, core.CleanString(email, true /* lower */))
}

func (svc *service) welcomeMail(p Profile) *core.EmailMessage {
	return &core.EmailMessage{
		To:           []mail.Address{{Name: p.Name, Address: p.Email}},
		Subject:      "Welcome!",
		TemplateName: "welcome",
		TemplateData: map[string]interface{}{
			"Name":  p.Name,
			"Email": p.Email,
		},
	}
}

func (svc *service) sendWelcomeMail(p Profile) {
	if svc.mailSvc == nil || p.Email == "" {
		return
	}
	svc.mailSvc.SendMessages(svc.welcomeMail(p))
}

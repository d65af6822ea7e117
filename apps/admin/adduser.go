package main

import (
	"context"

	"github.com/pkg/errors"

	"github.com/AlriyanKhan/Ai-attendance/core"
	"github.com/AlriyanKhan/Ai-attendance/core/user"
	identitysvc "github.com/AlriyanKhan/Ai-attendance/services/identity"
)

// addUser updates or creates a local account and its profile.
func (cli *commandLine) addUser(name, email, pwd string, isAdmin bool) error {
	ctx := context.Background()
	name = core.CleanString(name)
	email = core.CleanString(email, true /* lower */)

	idp := identitysvc.NewLocalProvider(cli.credRepo)
	acc, err := idp.SignUp(ctx, email, pwd)
	if err != nil {
		if user.ProviderErrorCode(err) != user.CodeEmailInUse {
			return err
		}
		if err = identitysvc.ResetPassword(ctx, cli.credRepo, email, pwd); err != nil {
			return err
		}
		cred, err := cli.credRepo.GetCredentialByEmail(ctx, email)
		if err != nil {
			return err
		}
		acc = user.Account{UID: cred.UID, Email: cred.Email, DisplayName: cred.DisplayName}
	}
	if err = idp.UpdateDisplayName(ctx, acc, name); err != nil {
		return err
	}

	p, err := cli.usrRepo.GetProfile(ctx, acc.UID)
	if err != nil {
		if errors.Cause(err) != user.ErrNotFound {
			return err
		}
		p = user.Profile{ID: acc.UID, Role: user.RoleStudent, CreatedAt: user.NowFunc().UTC()}
	}
	p.Name = name
	p.Email = email
	if isAdmin {
		p.Role = user.RoleAdmin
	}
	return cli.usrRepo.SaveProfile(ctx, p)
}

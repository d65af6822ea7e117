package main

import (
	"context"

	"github.com/AlriyanKhan/Ai-attendance/core"
	identitysvc "github.com/AlriyanKhan/Ai-attendance/services/identity"
)

func (cli *commandLine) resetPassword(email, pwd string) error {
	email = core.CleanString(email, true /* lower */)
	return identitysvc.ResetPassword(context.Background(), cli.credRepo, email, pwd)
}

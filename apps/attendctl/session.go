package main

import (
	"context"
	"fmt"

	"github.com/AlriyanKhan/Ai-attendance/client"
	"github.com/AlriyanKhan/Ai-attendance/core/auth"
)

func (cli *commandLine) printSession(s auth.Session) {
	fmt.Fprintf(cli.out, "Signed in as %s <%s>\n", s.DisplayName, s.Email)
	if !s.ExpiresAt.IsZero() {
		fmt.Fprintf(cli.out, "Session expires at %s\n", s.ExpiresAt.Local().Format("2006-01-02 15:04"))
	}
}

func (cli *commandLine) register(ctx context.Context, acc client.NewAccount) error {
	s, err := cli.client.Register(ctx, acc)
	if err != nil {
		return err
	}
	cli.printSession(s)
	return nil
}

func (cli *commandLine) login(ctx context.Context, email, pwd string) error {
	s, err := cli.client.Login(ctx, email, pwd)
	if err != nil {
		return err
	}
	cli.printSession(s)
	return nil
}

func (cli *commandLine) logout(ctx context.Context) error {
	if _, ok := cli.client.Gate().Current(); !ok {
		fmt.Fprintln(cli.out, "Not signed in")
		return nil
	}
	if err := cli.client.Logout(ctx); err != nil {
		return err
	}
	fmt.Fprintln(cli.out, "Signed out")
	return nil
}

func (cli *commandLine) whoami(ctx context.Context) error {
	s, err := cli.client.Whoami(ctx)
	if err != nil {
		return err
	}
	cli.printSession(s)
	return nil
}

func (cli *commandLine) refresh(ctx context.Context) error {
	s, err := cli.client.Refresh(ctx)
	if err != nil {
		return err
	}
	cli.printSession(s)
	return nil
}

package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"syscall"

	"golang.org/x/term"

	"github.com/AlriyanKhan/Ai-attendance/client"
	"github.com/AlriyanKhan/Ai-attendance/core"
	"github.com/AlriyanKhan/Ai-attendance/core/auth"
	"github.com/AlriyanKhan/Ai-attendance/core/capture"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp           = errors.New("help provided")
	errSignInRequired = errors.New("please sign in first: attendctl login -email EMAIL")
	errAborted        = errors.New("aborted")
)

type commandLine struct {
	client *client.Client
	camera capture.Camera
	in     *bufio.Reader
	out    io.Writer
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  register -name NAME -email EMAIL - create an account and sign in")
	fmt.Fprintln(cli.out, "  login -email EMAIL - sign in")
	fmt.Fprintln(cli.out, "  logout - sign out")
	fmt.Fprintln(cli.out, "  whoami - show the current session")
	fmt.Fprintln(cli.out, "  refresh - renew the session token")
	fmt.Fprintln(cli.out, "  capture - take a camera snapshot and mark attendance")
	fmt.Fprintln(cli.out, "  upload -name NAME -file PATH - mark attendance with an image file")
	fmt.Fprintln(cli.out, "  records [-limit N] - list the most recent records")
	fmt.Fprintln(cli.out, "  dashboard [-once] - show the live dashboard")
	fmt.Fprintln(cli.out, "  bootstrap - initialize the attendance collection (admin)")
}

func (cli *commandLine) printError(err error) {
	switch {
	case capture.IsCameraAccessError(err):
		fmt.Fprintln(cli.out, "Camera access denied. Allow the camera and try again.")
	case core.IsKind(err, core.KindTransport):
		fmt.Fprintf(cli.out, "error: network failure, try again (%v)\n", err)
	default:
		if apiErr, ok := client.AsAPIError(err); ok {
			fmt.Fprintf(cli.out, "error: %s\n", apiErr.Error())
			return
		}
		fmt.Fprintf(cli.out, "error: %v\n", err)
	}
}

func (cli *commandLine) readPassword(prompt string) (string, error) {
	fmt.Fprint(cli.out, prompt)
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	fmt.Fprintln(cli.out)
	if err != nil {
		return "", err
	}
	return string(pwd), nil
}

// guard waits for the initial session check and requires a session.
func (cli *commandLine) guard(ctx context.Context) error {
	gate := cli.client.Gate()
	w := gate.Observe()
	defer w.Stop()

	loading := false
	for {
		switch auth.Guard(gate) {
		case auth.Render:
			return nil
		case auth.RedirectSignIn:
			return errSignInRequired
		}
		if !loading {
			fmt.Fprintln(cli.out, "Loading…")
			loading = true
		}
		if _, err := w.Next(ctx); err != nil {
			return err
		}
	}
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}
	ctx := context.Background()

	registerCmd := flag.NewFlagSet("register", flag.ContinueOnError)
	registerName := registerCmd.String("name", "", "Your display name.")
	registerEmail := registerCmd.String("email", "", "Your email. The password will be prompted next.")

	loginCmd := flag.NewFlagSet("login", flag.ContinueOnError)
	loginEmail := loginCmd.String("email", "", "Your email. The password will be prompted next.")

	uploadCmd := flag.NewFlagSet("upload", flag.ContinueOnError)
	uploadName := uploadCmd.String("name", "", "Who is attending.")
	uploadFile := uploadCmd.String("file", "", "Path of the image.")

	recordsCmd := flag.NewFlagSet("records", flag.ContinueOnError)
	recordsLimit := recordsCmd.Int("limit", 0, "Number of records, 30 by default.")

	dashboardCmd := flag.NewFlagSet("dashboard", flag.ContinueOnError)
	dashboardOnce := dashboardCmd.Bool("once", false, "Print the current view and exit.")

	for _, fs := range []*flag.FlagSet{registerCmd, loginCmd, uploadCmd, recordsCmd, dashboardCmd} {
		fs.SetOutput(cli.out)
	}

	switch args[1] {
	case "register":
		if err := registerCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *registerName == "" || *registerEmail == "" {
			registerCmd.Usage()
			return errHelp
		}
		pwd, err := cli.readPassword("Enter password:")
		if err != nil {
			return err
		}
		confirm, err := cli.readPassword("Confirm password:")
		if err != nil {
			return err
		}
		return cli.register(ctx, client.NewAccount{
			Name:            *registerName,
			Email:           *registerEmail,
			Password:        pwd,
			PasswordConfirm: confirm,
		})

	case "login":
		if err := loginCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *loginEmail == "" {
			loginCmd.Usage()
			return errHelp
		}
		pwd, err := cli.readPassword("Enter password:")
		if err != nil {
			return err
		}
		if pwd == "" {
			loginCmd.Usage()
			return errHelp
		}
		return cli.login(ctx, *loginEmail, pwd)

	case "logout":
		return cli.logout(ctx)

	case "whoami":
		if err := cli.guard(ctx); err != nil {
			return err
		}
		return cli.whoami(ctx)

	case "refresh":
		if err := cli.guard(ctx); err != nil {
			return err
		}
		return cli.refresh(ctx)

	case "capture":
		if err := cli.guard(ctx); err != nil {
			return err
		}
		return cli.capture(ctx)

	case "upload":
		if err := uploadCmd.Parse(args[2:]); err != nil {
			return err
		}
		var data []byte
		if *uploadFile != "" {
			var err error
			if data, err = os.ReadFile(*uploadFile); err != nil {
				return err
			}
		}
		return cli.upload(ctx, capture.Upload{Name: *uploadName, Filename: *uploadFile, Data: data})

	case "records":
		if err := recordsCmd.Parse(args[2:]); err != nil {
			return err
		}
		if err := cli.guard(ctx); err != nil {
			return err
		}
		return cli.records(ctx, *recordsLimit)

	case "dashboard":
		if err := dashboardCmd.Parse(args[2:]); err != nil {
			return err
		}
		if err := cli.guard(ctx); err != nil {
			return err
		}
		return cli.dashboard(ctx, *dashboardOnce)

	case "bootstrap":
		if err := cli.guard(ctx); err != nil {
			return err
		}
		return cli.bootstrap(ctx)

	default:
		cli.printUsage()
		return errHelp
	}
}

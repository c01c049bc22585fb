package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"syscall"
	"time"

	"golang.org/x/term"

	"github.com/iub-eis/eis/frontend/go-dashboard/internal/api"
	"github.com/iub-eis/eis/frontend/go-dashboard/internal/routes"
	"github.com/iub-eis/eis/frontend/go-dashboard/internal/session"
	"github.com/iub-eis/eis/frontend/go-dashboard/internal/tokens"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

// sessionManager is the part of *session.Manager the CLI drives.
type sessionManager interface {
	Current() session.Session
	Bootstrap(ctx context.Context) error
	Login(ctx context.Context, username, password string) (session.Identity, error)
	Logout(ctx context.Context) error
	Register(ctx context.Context, req api.RegisterRequest) error
}

type commandLine struct {
	sess sessionManager
	out  io.Writer
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  login -username USERNAME                     - sign in; the password is prompted next")
	fmt.Fprintln(cli.out, "  logout                                       - sign out and forget the stored tokens")
	fmt.Fprintln(cli.out, "  status                                       - show the session status")
	fmt.Fprintln(cli.out, "  whoami                                       - show the signed-in identity")
	fmt.Fprintln(cli.out, "  register -username U -role R [-email E] [-department D]")
	fmt.Fprintln(cli.out, "                                               - create an account; the password is prompted next")
}

func (cli *commandLine) run(ctx context.Context, args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	loginCmd := flag.NewFlagSet("login", flag.ContinueOnError)
	loginCmd.SetOutput(cli.out)
	loginUname := loginCmd.String("username", "", "The username. The password will be prompted next.")

	registerCmd := flag.NewFlagSet("register", flag.ContinueOnError)
	registerCmd.SetOutput(cli.out)
	regUname := registerCmd.String("username", "", "The new account's username.")
	regEmail := registerCmd.String("email", "", "The new account's email.")
	regRole := registerCmd.String("role", "", "One of student, teacher, counselor, admin.")
	regDept := registerCmd.String("department", "", "The department, if any.")

	switch args[1] {
	case "login":
		if err := loginCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *loginUname == "" {
			loginCmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword()
		if err != nil {
			return err
		}
		if pwd == "" {
			loginCmd.Usage()
			return errHelp
		}
		return cli.login(ctx, *loginUname, pwd)

	case "logout":
		if err := cli.sess.Logout(ctx); err != nil {
			return err
		}
		fmt.Fprintln(cli.out, "Signed out.")
		return nil

	case "status":
		return cli.status(ctx)

	case "whoami":
		return cli.whoami(ctx)

	case "register":
		if err := registerCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *regUname == "" || *regRole == "" {
			registerCmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword()
		if err != nil {
			return err
		}
		if pwd == "" {
			registerCmd.Usage()
			return errHelp
		}
		req := api.RegisterRequest{Username: *regUname, Email: *regEmail, Password: pwd, Role: *regRole, Department: *regDept}
		if err := cli.sess.Register(ctx, req); err != nil {
			return fmt.Errorf("register %s: %w", *regUname, err)
		}
		fmt.Fprintf(cli.out, "Account %s created. Sign in with: eisctl login -username %s\n", *regUname, *regUname)
		return nil

	default:
		cli.printUsage()
		return errHelp
	}
}

func (cli *commandLine) promptPassword() (string, error) {
	fmt.Fprint(cli.out, "Enter password:")
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	fmt.Fprintln(cli.out)
	if err != nil {
		return "", err
	}
	return string(pwd), nil
}

func (cli *commandLine) login(ctx context.Context, username, password string) error {
	// a stored session is restored first so a second login is refused
	_ = cli.sess.Bootstrap(ctx)
	id, err := cli.sess.Login(ctx, username, password)
	switch {
	case errors.Is(err, session.ErrInvalidCredentials):
		return errors.New("invalid username or password")
	case errors.Is(err, session.ErrAlreadyAuthenticated):
		return fmt.Errorf("already signed in as %s; run eisctl logout first", cli.username())
	case err != nil:
		return err
	}
	fmt.Fprintf(cli.out, "Signed in as %s (%s). Dashboard: %s\n", id.Username, id.Role, routes.HomePath(id.Role))
	return nil
}

func (cli *commandLine) status(ctx context.Context) error {
	_ = cli.sess.Bootstrap(ctx)
	s := cli.sess.Current()
	line := s.Status.String()
	if s.Identity != nil {
		line += " as " + s.Identity.Username + " (" + s.Identity.Role.String() + ")"
	}
	switch {
	case s.Authenticated() && tokens.Expired(s.AccessToken, time.Now()):
		line += ", token expired " + s.ExpiresAt.Local().Format("2006-01-02 15:04")
	case !s.ExpiresAt.IsZero():
		line += ", token expires " + s.ExpiresAt.Local().Format("2006-01-02 15:04")
	}
	fmt.Fprintln(cli.out, line)
	return nil
}

func (cli *commandLine) whoami(ctx context.Context) error {
	_ = cli.sess.Bootstrap(ctx)
	s := cli.sess.Current()
	if !s.Authenticated() {
		return errors.New("not signed in")
	}
	id := s.Identity
	fmt.Fprintf(cli.out, "id:         %d\n", id.ID)
	fmt.Fprintf(cli.out, "username:   %s\n", id.Username)
	fmt.Fprintf(cli.out, "role:       %s\n", id.Role)
	if id.Email != "" {
		fmt.Fprintf(cli.out, "email:      %s\n", id.Email)
	}
	if id.Department != "" {
		fmt.Fprintf(cli.out, "department: %s\n", id.Department)
	}
	return nil
}

func (cli *commandLine) username() string {
	if id := cli.sess.Current().Identity; id != nil {
		return id.Username
	}
	return "another user"
}

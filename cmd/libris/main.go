// Command libris drives the auth module and navigation guard against a
// running Libris server.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/libris-backend/internal/auth"
	"github.com/stemsi/libris-backend/internal/client"
	"github.com/stemsi/libris-backend/internal/config"
	"github.com/stemsi/libris-backend/internal/guard"
	"github.com/stemsi/libris-backend/internal/logger"
	"github.com/stemsi/libris-backend/internal/model"
	"golang.org/x/term"
)

const usage = `Usage: libris [flags] <command> [args]

Commands:
  register <email>                  create an account and sign in
  login <email>                     sign in
  logout                            sign out
  whoami                            show the signed-in account
  nav <path>                        evaluate the navigation guard for a path
  admins                            list admin-tier accounts (super admin)
  admins role <id> <role>           change an account's role (super admin)
  admins email <id> <email>         change an account's email (super admin)
  admins delete <id>                delete an account (super admin)
  admins reset <email>              send a reset link to an account (super admin)
  reset <email>                     request a reset link for your own account
  reset-confirm <token>             set a new password with a reset token

Flags:
`

// app is one CLI invocation.
type app struct {
	client *client.Client
	module *auth.Module
	nav    *guard.Navigator
	in     *bufio.Reader
	stdin  *os.File
	out    io.Writer
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		fmt.Fprintln(os.Stderr, "libris:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdin *os.File, stdout io.Writer) error {
	cfg := config.Load()

	fs := flag.NewFlagSet("libris", flag.ContinueOnError)
	fs.SetOutput(stdout)
	server := fs.String("server", envOr("LIBRIS_SERVER", cfg.PublicBaseURL), "Libris server base URL")
	tokenFile := fs.String("token-file", defaultTokenFile(), "Where the session token is kept")
	timeout := fs.Duration("timeout", cfg.GuardCallTimeout, "Per-call timeout for guard lookups")
	verbose := fs.Bool("v", false, "Log backend fallbacks")
	fs.Usage = func() {
		fmt.Fprint(stdout, usage)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return flag.ErrHelp
	}

	level := "warn"
	if *verbose {
		level = "debug"
	}
	log := logger.SetupWithWriter(os.Stderr, level, "pretty")

	c, err := client.New(*server, client.WithTokenStore(client.FileTokenStore{Path: *tokenFile}))
	if err != nil {
		return err
	}

	module := auth.New(c, model.RolePolicyFor(cfg.RoleScheme, cfg.AdminSlots), log)
	a := &app{
		client: c,
		module: module,
		nav:    guard.NewNavigator(guard.New(module, *timeout, log), nil),
		in:     bufio.NewReader(stdin),
		stdin:  stdin,
		out:    stdout,
	}
	return a.dispatch(ctx, fs.Arg(0), fs.Args()[1:], log)
}

func (a *app) dispatch(ctx context.Context, cmd string, args []string, log zerolog.Logger) error {
	switch cmd {
	case "register":
		return a.register(ctx, args)
	case "login":
		return a.login(ctx, args)
	case "logout":
		a.module.SignOut(ctx)
		fmt.Fprintln(a.out, "Signed out.")
		return nil
	case "whoami":
		return a.whoami(ctx)
	case "nav":
		return a.navigate(ctx, args)
	case "admins":
		return a.admins(ctx, args)
	case "reset":
		if len(args) != 1 {
			return errors.New("reset requires an email")
		}
		if err := a.client.ForgotPassword(ctx, args[0]); err != nil {
			return err
		}
		fmt.Fprintln(a.out, "If the account exists, a reset link is on its way.")
		return nil
	case "reset-confirm":
		return a.resetConfirm(ctx, args)
	default:
		log.Debug().Str("command", cmd).Msg("Unknown command")
		return fmt.Errorf("unknown command %q (see libris -h)", cmd)
	}
}

func (a *app) register(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("register requires an email")
	}
	password, err := a.readPassword("Password: ")
	if err != nil {
		return err
	}
	handle, err := a.module.RegisterAccount(ctx, args[0], password)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Registered %s as %s.\n", handle.Account.Email, handle.Account.Role)
	return nil
}

func (a *app) login(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("login requires an email")
	}
	password, err := a.readPassword("Password: ")
	if err != nil {
		return err
	}
	session, err := a.module.SignIn(ctx, args[0], password)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Signed in as %s until %s.\n", session.Role, session.ExpiresAt.Local().Format(time.RFC1123))
	return nil
}

func (a *app) whoami(ctx context.Context) error {
	account, err := a.module.CurrentAccount(ctx)
	if err != nil {
		return err
	}
	if account == nil {
		fmt.Fprintln(a.out, "Not signed in.")
		return nil
	}
	fmt.Fprintf(a.out, "%s (id %d, %s)\n", account.Email, account.ID, account.Role)
	return nil
}

func (a *app) navigate(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("nav requires a path")
	}
	decision, err := a.nav.Navigate(ctx, args[0])
	if err != nil {
		return err
	}
	if decision.Proceed {
		fmt.Fprintf(a.out, "proceed %s\n", args[0])
		return nil
	}
	fmt.Fprintf(a.out, "redirect %s\n", decision.Location())
	return nil
}

func (a *app) admins(ctx context.Context, args []string) error {
	if len(args) == 0 {
		accounts, err := a.module.ListAdminTierAccounts(ctx)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tEMAIL\tROLE\tSINCE")
		for _, acc := range accounts {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", acc.ID, acc.Email, acc.Role, acc.CreatedAt.Local().Format("2006-01-02"))
		}
		return w.Flush()
	}

	sub, rest := args[0], args[1:]
	if sub == "reset" {
		if len(rest) != 1 {
			return errors.New("admins reset requires an email")
		}
		if err := a.module.RequestCredentialReset(ctx, rest[0]); err != nil {
			return err
		}
		fmt.Fprintln(a.out, "Reset link queued.")
		return nil
	}

	if len(rest) == 0 {
		return fmt.Errorf("admins %s requires an account id", sub)
	}
	id, err := strconv.Atoi(rest[0])
	if err != nil {
		return fmt.Errorf("invalid account id %q", rest[0])
	}

	switch sub {
	case "role":
		if len(rest) != 2 {
			return errors.New("admins role requires an id and a role")
		}
		role := model.RoleTier(strings.ToLower(rest[1]))
		if !role.Valid() {
			return fmt.Errorf("invalid role %q", rest[1])
		}
		account, err := a.module.UpdateAccountRole(ctx, id, role)
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "%s is now %s.\n", account.Email, account.Role)
	case "email":
		if len(rest) != 2 {
			return errors.New("admins email requires an id and an email")
		}
		account, err := a.module.UpdateAccountEmail(ctx, id, rest[1])
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "Account %d email is now %s.\n", account.ID, account.Email)
	case "delete":
		if err := a.module.DeleteAccount(ctx, id); err != nil {
			return err
		}
		fmt.Fprintf(a.out, "Account %d deleted.\n", id)
	default:
		return fmt.Errorf("unknown admins command %q", sub)
	}
	return nil
}

func (a *app) resetConfirm(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("reset-confirm requires a token")
	}
	password, err := a.readPassword("New password: ")
	if err != nil {
		return err
	}
	if len(password) < auth.MinCredentialLength {
		return &auth.ValidationError{Field: "password", Message: fmt.Sprintf("must be at least %d characters", auth.MinCredentialLength)}
	}
	if err := a.client.ConfirmPasswordReset(ctx, args[0], password); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Password updated. Sign in again.")
	return nil
}

// readPassword prompts without echo on a terminal, and reads a plain line
// otherwise so passwords can be piped in.
func (a *app) readPassword(prompt string) (string, error) {
	if a.stdin != nil && term.IsTerminal(int(a.stdin.Fd())) {
		fmt.Fprint(a.out, prompt)
		b, err := term.ReadPassword(int(a.stdin.Fd()))
		fmt.Fprintln(a.out)
		return string(b), err
	}
	line, err := a.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func defaultTokenFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".libris-token"
	}
	return filepath.Join(dir, "libris", "token")
}

package app

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/aussiebroadwan/tickerwatch/internal/tickerctl/tickers"
	"github.com/aussiebroadwan/tickerwatch/pkg/authsdk"
	"github.com/common-nighthawk/go-figure"
)

// ErrUsage reports a malformed command line. The usage text has already been
// printed when it is returned.
var ErrUsage = errors.New("usage error")

type command struct {
	name    string
	args    string
	summary string
	run     func(app *Application, ctx context.Context, args []string) error
}

// commandTable lists the commands in usage order.
func commandTable() []command {
	return []command{
		{"signup", "-email E -name N [-remember]", "create an account and sign in", (*Application).runSignup},
		{"login", "-email E [-remember]", "sign in with email and password", (*Application).runLogin},
		{"oauth", "[-remember] google|github", "sign in with an identity provider", (*Application).runOAuth},
		{"logout", "", "sign out and erase the stored credential", (*Application).runLogout},
		{"whoami", "[-refresh]", "show the signed-in account", (*Application).runWhoami},
		{"reset-password", "-email E", "email a password reset link", (*Application).runResetPassword},
		{"confirm-reset", "-token T", "set a new password from a reset token", (*Application).runConfirmReset},
		{"list", "watch|reserve", "show a ticker list", (*Application).runList},
		{"add", "watch|reserve SYMBOL", "add a symbol to a list", (*Application).runAdd},
		{"remove", "watch|reserve SYMBOL", "remove a symbol from a list", (*Application).runRemove},
		{"notify", "watch|reserve", "email yourself a list", (*Application).runNotify},
		{"shell", "", "interactive session with inactivity logout", (*Application).runShell},
		{"version", "", "print the version", (*Application).runVersion},
	}
}

func lookupCommand(name string) (command, bool) {
	for _, c := range commandTable() {
		if c.name == name {
			return c, true
		}
	}
	return command{}, false
}

// Run executes one command line.
func (app *Application) Run(ctx context.Context, args []string) error {
	if len(args) == 0 || args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		PrintUsage(app.io.Out)
		return nil
	}

	cmd, ok := lookupCommand(args[0])
	if !ok {
		PrintUsage(app.io.Err)
		return fmt.Errorf("%w: unknown command %q", ErrUsage, args[0])
	}

	app.logger.Debug("running command", "command", cmd.name)
	return cmd.run(app, ctx, args[1:])
}

// PrintUsage writes the command summary to w.
func PrintUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: tickerctl <command> [flags]")
	fmt.Fprintln(w)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, c := range commandTable() {
		fmt.Fprintf(tw, "  %s %s\t%s\n", c.name, c.args, c.summary)
	}
	_ = tw.Flush()
}

func (app *Application) flagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(app.io.Err)
	return fs
}

func (app *Application) parse(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", ErrUsage, err)
	}
	return nil
}

// ============================================================================
// Input
// ============================================================================

// readLine prompts on stdout and reads one line from stdin.
func (app *Application) readLine(prompt string) (string, error) {
	fmt.Fprint(app.io.Out, prompt)

	line, err := app.input().ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("failed to read %s: %w", strings.TrimSuffix(strings.TrimSpace(prompt), ":"), err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (app *Application) input() *bufio.Reader {
	if app.reader == nil {
		app.reader = bufio.NewReader(app.io.In)
	}
	return app.reader
}

// ============================================================================
// Authentication
// ============================================================================

func (app *Application) runSignup(ctx context.Context, args []string) error {
	fs := app.flagSet("signup")
	email := fs.String("email", "", "account email")
	name := fs.String("name", "", "display name")
	remember := fs.Bool("remember", false, "keep the session across restarts")
	if err := app.parse(fs, args); err != nil {
		return err
	}

	password, err := app.readLine("Password: ")
	if err != nil {
		return err
	}

	user, err := app.manager.Signup(ctx, authsdk.SignupRequest{
		Email:    *email,
		Password: password,
		Name:     *name,
	}, *remember)
	if err != nil {
		return err
	}

	fmt.Fprintf(app.io.Out, "Welcome, %s.\n", user.Name)
	return nil
}

func (app *Application) runLogin(ctx context.Context, args []string) error {
	fs := app.flagSet("login")
	email := fs.String("email", "", "account email")
	remember := fs.Bool("remember", false, "keep the session across restarts")
	if err := app.parse(fs, args); err != nil {
		return err
	}

	if *email == "" {
		line, err := app.readLine("Email: ")
		if err != nil {
			return err
		}
		*email = strings.TrimSpace(line)
	}

	password, err := app.readLine("Password: ")
	if err != nil {
		return err
	}

	user, err := app.manager.Login(ctx, *email, password, *remember)
	if err != nil {
		return err
	}

	fmt.Fprintf(app.io.Out, "Signed in as %s <%s>.\n", user.Name, user.Email)
	return nil
}

func (app *Application) runOAuth(ctx context.Context, args []string) error {
	fs := app.flagSet("oauth")
	remember := fs.Bool("remember", false, "keep the session across restarts")
	if err := app.parse(fs, args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("%w: oauth takes one provider (google or github)", ErrUsage)
	}

	provider, err := authsdk.ParseProvider(fs.Arg(0))
	if err != nil {
		return err
	}

	handler := authsdk.NewCallbackHandler(app.manager, authsdk.CallbackOptions{
		Remember: *remember,
		OnStatus: func(s authsdk.CallbackStatus) {
			app.logger.Debug("oauth callback status", "status", s.String())
		},
	})

	srv, err := newCallbackServer(app.cfg.CallbackAddr, handler, app.logger)
	if err != nil {
		return err
	}
	srv.Start()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			app.logger.Error("failed to stop callback listener", "error", err)
		}
	}()

	fmt.Fprintf(app.io.Out, "Waiting for the identity provider to redirect to %s\n", srv.URL())

	if err := app.manager.InitiateExternalAuth(provider); err != nil {
		return err
	}

	waitCtx := ctx
	if app.cfg.CallbackTimeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, app.cfg.CallbackTimeout)
		defer cancel()
	}

	select {
	case <-handler.Done():
	case <-waitCtx.Done():
		return fmt.Errorf("no oauth callback received: %w", waitCtx.Err())
	}

	res, _ := handler.Result()
	app.follow(ctx, res.Transition)

	return res.Err
}

// follow executes a delayed transition and waits for it.
func (app *Application) follow(ctx context.Context, t authsdk.DelayedTransition) {
	navigated := make(chan struct{})
	nav := authsdk.NavigatorFunc(func(target string) {
		app.nav.Navigate(target)
		close(navigated)
	})

	timer := authsdk.RunTransition(ctx, app.scheduler, nav, t)
	select {
	case <-navigated:
	case <-ctx.Done():
		timer.Stop()
	}
}

func (app *Application) runLogout(ctx context.Context, _ []string) error {
	if err := app.manager.Logout(ctx); err != nil {
		return err
	}
	fmt.Fprintln(app.io.Out, "Signed out.")
	return nil
}

func (app *Application) runWhoami(ctx context.Context, args []string) error {
	fs := app.flagSet("whoami")
	refresh := fs.Bool("refresh", false, "re-fetch the profile from the backend")
	if err := app.parse(fs, args); err != nil {
		return err
	}

	fetch := app.manager.CurrentUser
	if *refresh {
		fetch = app.manager.RefreshUser
	}

	user, err := fetch(ctx)
	if errors.Is(err, authsdk.ErrNoCredential) {
		fmt.Fprintln(app.io.Out, "Not signed in.")
		return err
	}
	if err != nil {
		return err
	}

	lifetime := "this run only"
	if cred, ok := app.manager.Credential(); ok && cred.Remember {
		lifetime = "remembered"
	}

	fmt.Fprintf(app.io.Out, "%s <%s> (id %s, %s)\n", user.Name, user.Email, user.ID, lifetime)
	return nil
}

func (app *Application) runResetPassword(ctx context.Context, args []string) error {
	fs := app.flagSet("reset-password")
	email := fs.String("email", "", "account email")
	if err := app.parse(fs, args); err != nil {
		return err
	}

	resp, err := app.manager.RequestPasswordReset(ctx, *email)
	if err != nil {
		return err
	}
	fmt.Fprintln(app.io.Out, resp.Message)
	return nil
}

func (app *Application) runConfirmReset(ctx context.Context, args []string) error {
	fs := app.flagSet("confirm-reset")
	token := fs.String("token", "", "token from the reset email")
	if err := app.parse(fs, args); err != nil {
		return err
	}

	password, err := app.readLine("New password: ")
	if err != nil {
		return err
	}

	resp, err := app.manager.ConfirmPasswordReset(ctx, *token, password)
	if err != nil {
		return err
	}
	fmt.Fprintln(app.io.Out, resp.Message)
	return nil
}

// ============================================================================
// Ticker lists
// ============================================================================

func kindArg(args []string, want int) (tickers.Kind, error) {
	if len(args) != want {
		return "", fmt.Errorf("%w: expected %d argument(s), got %d", ErrUsage, want, len(args))
	}
	return tickers.ParseKind(args[0])
}

func (app *Application) runList(ctx context.Context, args []string) error {
	kind, err := kindArg(args, 1)
	if err != nil {
		return err
	}

	list, err := app.tickers.List(ctx, kind)
	if err != nil {
		return err
	}

	app.printList(list)
	return nil
}

func (app *Application) runAdd(ctx context.Context, args []string) error {
	kind, err := kindArg(args, 2)
	if err != nil {
		return err
	}

	list, err := app.tickers.Add(ctx, kind, args[1])
	if err != nil {
		return err
	}

	app.printList(list)
	return nil
}

func (app *Application) runRemove(ctx context.Context, args []string) error {
	kind, err := kindArg(args, 2)
	if err != nil {
		return err
	}

	if err := app.tickers.Remove(ctx, kind, args[1]); err != nil {
		return err
	}

	fmt.Fprintf(app.io.Out, "Removed %s from the %s list.\n", strings.ToUpper(args[1]), kind)
	return nil
}

func (app *Application) runNotify(ctx context.Context, args []string) error {
	kind, err := kindArg(args, 1)
	if err != nil {
		return err
	}

	resp, err := app.tickers.Notify(ctx, kind)
	if err != nil {
		return err
	}
	fmt.Fprintln(app.io.Out, resp.Message)
	return nil
}

func (app *Application) printList(list tickers.List) {
	if len(list.Symbols) == 0 {
		fmt.Fprintf(app.io.Out, "The %s list is empty.\n", list.Kind)
		return
	}

	fmt.Fprintf(app.io.Out, "%s list:\n", list.Kind)
	for _, sym := range list.Symbols {
		fmt.Fprintf(app.io.Out, "  %s\n", sym)
	}
}

// ============================================================================
// Misc
// ============================================================================

func (app *Application) runVersion(_ context.Context, _ []string) error {
	figure.Write(app.io.Out, figure.NewFigure("tickerwatch", "cybermedium", true))
	fmt.Fprintln(app.io.Out)
	fmt.Fprintf(app.io.Out, "tickerctl %s\n", BuildVersion)
	return nil
}

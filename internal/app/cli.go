package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/hitoshi/jobportal/internal/auth"
	"github.com/hitoshi/jobportal/internal/backend"
	"github.com/hitoshi/jobportal/internal/config"
	"github.com/hitoshi/jobportal/internal/guard"
	"github.com/hitoshi/jobportal/internal/model"
	"github.com/hitoshi/jobportal/internal/persist"
	"github.com/hitoshi/jobportal/internal/profile"
	"github.com/hitoshi/jobportal/internal/state"
	"github.com/hitoshi/jobportal/internal/token"
)

// loginArgs は login サブコマンドの引数。
type loginArgs struct {
	role     model.Role
	email    string
	password string
	remember bool
}

// parseLoginArgs は `login <jobseeker|employer> <email> <password> [--remember]` を解析する。
func parseLoginArgs(args []string) (loginArgs, error) {
	var la loginArgs
	var positional []string
	for _, a := range args {
		switch a {
		case "--remember", "-r":
			la.remember = true
		default:
			positional = append(positional, a)
		}
	}
	if len(positional) != 3 {
		return la, errors.New("usage: login <jobseeker|employer> <email> <password> [--remember]")
	}

	switch model.Role(positional[0]) {
	case model.RoleJobSeeker, model.RoleEmployer:
		la.role = model.Role(positional[0])
	default:
		return la, fmt.Errorf("unknown role %q: want jobseeker or employer", positional[0])
	}
	la.email = positional[1]
	la.password = positional[2]
	return la, nil
}

// localClient はSTATE_DIRに保存されるひとつのクライアント。
type localClient struct {
	app     *state.App
	outcome guard.Outcome
	detach  func()
}

// loadLocalClient はアプリケーションの読み込み1回分を行う。
// スナップショットを復元し、永続化を購読してからセッションを検証する。
func loadLocalClient(ctx context.Context, cfg *config.Config, log *slog.Logger) (*localClient, error) {
	storage, err := persist.NewFileStorage(cfg.StateDir)
	if err != nil {
		return nil, err
	}
	apis, err := newBackends(cfg, log, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create backend clients: %w", err)
	}

	app := state.New(
		auth.NewJobSeekerStore(apis.jobSeekers, storage, log, nil),
		auth.NewEmployerStore(apis.employers, storage, log, nil),
		profile.NewStore(),
	)

	p := persist.NewPersistor(storage, persist.DefaultConfig(), log, nil)
	p.Restore(ctx, app.Slices()...)
	detach := p.Attach(app.Slices()...)

	return &localClient{
		app:     app,
		outcome: guard.NewBootstrapper(log, nil).Run(ctx, app),
		detach:  detach,
	}, nil
}

// runCLI はローカルクライアントに対して login / logout / status を実行する。
func runCLI(ctx context.Context, cfg *config.Config, cmd Command, args []string, out io.Writer) error {
	var la loginArgs
	if cmd == CommandLogin {
		var err error
		if la, err = parseLoginArgs(args); err != nil {
			return err
		}
	}

	client, err := loadLocalClient(ctx, cfg, slog.Default())
	if err != nil {
		return err
	}
	defer client.detach()

	switch cmd {
	case CommandLogin:
		return cliLogin(ctx, client.app, la, out)
	case CommandLogout:
		return cliLogout(ctx, client.app, out)
	default:
		printStatus(out, client.app.Session(), time.Now())
		return nil
	}
}

func cliLogin(ctx context.Context, app *state.App, la loginArgs, out io.Writer) error {
	var err error
	if la.role == model.RoleEmployer {
		err = app.LoginEmployer(ctx, la.email, la.password, la.remember)
	} else {
		err = app.LoginJobSeeker(ctx, la.email, la.password, la.remember)
	}
	if err != nil {
		fmt.Fprintln(out, backend.MessageOf(err, "Login failed"))
		return fmt.Errorf("login failed: %w", err)
	}
	fmt.Fprintln(out, "Login successful")
	printStatus(out, app.Session(), time.Now())
	return nil
}

func cliLogout(ctx context.Context, app *state.App, out io.Writer) error {
	if app.Session().Role == model.RoleNone {
		fmt.Fprintln(out, model.NewNotLoggedInError().Message)
		return nil
	}
	if err := app.Logout(ctx); err != nil {
		slog.Warn("backend logout failed", slog.String("error", err.Error()))
	}
	fmt.Fprintln(out, "Logout success")
	return nil
}

// printStatus はセッションの役割・利用者・有効期限を表示する。
func printStatus(out io.Writer, sess model.Session, now time.Time) {
	if !guard.IsAuthenticated(sess, now) {
		fmt.Fprintln(out, "status: not logged in")
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "status: logged in as %s", sess.Role)
	switch {
	case sess.JobSeeker != nil:
		fmt.Fprintf(&b, " (%s <%s>)", sess.JobSeeker.FullName, sess.JobSeeker.Email)
	case sess.Employer != nil:
		fmt.Fprintf(&b, " (%s <%s>)", sess.Employer.FirstName, sess.Employer.Email)
	}
	if exp, err := token.ExpiresAt(sess.Token); err == nil {
		fmt.Fprintf(&b, ", expires %s", exp.UTC().Format(time.RFC3339))
	}
	fmt.Fprintln(out, b.String())
}

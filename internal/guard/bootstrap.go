package guard

import (
	"context"
	"log/slog"
	"time"

	"github.com/hitoshi/jobportal/internal/metrics"
	"github.com/hitoshi/jobportal/internal/state"
	"github.com/hitoshi/jobportal/internal/token"
)

// Outcome は起動時のセッション検証の結果。
type Outcome struct {
	Authenticated bool
	Redirect      string
}

// Bootstrapper はアプリケーションの読み込みごとに1回、保存されたセッションを検証する。
type Bootstrapper struct {
	logger  *slog.Logger
	metrics metrics.MetricsCollector
	now     func() time.Time
}

// NewBootstrapper はBootstrapperを生成する。
func NewBootstrapper(logger *slog.Logger, m metrics.MetricsCollector) *Bootstrapper {
	if m == nil {
		m = metrics.Nop{}
	}
	return &Bootstrapper{logger: logger, metrics: m, now: time.Now}
}

// Run はセッションのトークンを検証する。
// 復元したセッションにトークンがなければremember-me用キーから読み込む。
// トークンがないか期限切れの場合はログアウトしてremember-me用キーを削除し、ログイン画面へ誘導する。
func (b *Bootstrapper) Run(ctx context.Context, app *state.App) Outcome {
	sess := app.Session()
	if sess.Token == "" {
		if app.Auth.AdoptRemembered(ctx) || app.Employer.AdoptRemembered(ctx) {
			sess = app.Session()
		}
	}

	if sess.Token != "" && !token.IsExpired(sess.Token, b.now()) {
		return Outcome{Authenticated: true}
	}

	if sess.Token != "" {
		b.metrics.RecordSessionEvent(string(sess.Role), "expired")
		b.logger.Info("session token expired",
			slog.String("role", string(sess.Role)),
		)
	}

	if err := app.Logout(ctx); err != nil {
		b.logger.Warn("logout during bootstrap failed", slog.String("error", err.Error()))
	}
	app.Auth.ForgetRemembered(ctx)
	app.Employer.ForgetRemembered(ctx)
	return Outcome{Redirect: LoginPath}
}

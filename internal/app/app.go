package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/jobportal/internal/auth"
	"github.com/hitoshi/jobportal/internal/backend"
	"github.com/hitoshi/jobportal/internal/clientstate"
	"github.com/hitoshi/jobportal/internal/config"
	"github.com/hitoshi/jobportal/internal/database"
	"github.com/hitoshi/jobportal/internal/handler"
	"github.com/hitoshi/jobportal/internal/logger"
	"github.com/hitoshi/jobportal/internal/metrics"
	"github.com/hitoshi/jobportal/internal/middleware"
	"github.com/hitoshi/jobportal/internal/persist"
	"github.com/hitoshi/jobportal/internal/profile"
	"github.com/hitoshi/jobportal/internal/repository"
	"github.com/hitoshi/jobportal/internal/security"
	"github.com/hitoshi/jobportal/internal/telemetry"
	"github.com/hitoshi/jobportal/internal/worker/cleanup"
)

const (
	// clientIdleTimeout はアクセスのないクライアント状態をメモリから追い出すまでの時間。
	clientIdleTimeout = 30 * time.Minute
	janitorInterval   = 5 * time.Minute
	clientCookieAge   = 365 * 24 * 60 * 60
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	logger.SetLevel(cfg.LogLevel)

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。ログはw、CLIコマンドの結果はoutへ出力する。
func Run(w, out io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	if cmd.IsCLI() {
		return runCLI(context.Background(), cfg, cmd, args[1:], out)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
	)

	switch cmd {
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// backends は2つのバックエンドAPIクライアント。
type backends struct {
	jobSeekers *backend.JobSeekerClient
	employers  *backend.EmployerClient
}

// newBackends は設定からバックエンドAPIクライアントを生成する。
func newBackends(cfg *config.Config, log *slog.Logger, m metrics.MetricsCollector) (*backends, error) {
	httpClient, err := backend.NewHTTPClient(cfg.HTTPTimeout)
	if err != nil {
		return nil, err
	}
	return &backends{
		jobSeekers: backend.NewJobSeekerClient(cfg.JobSeekerAPIURL, httpClient, log, m),
		employers:  backend.NewEmployerClient(cfg.EmployerAPIURL, httpClient, log, m),
	}, nil
}

// newLinkChecker は履歴書リンクの確認が有効な場合にLinkCheckerを返す。
func newLinkChecker(cfg *config.Config) security.LinkChecker {
	if !cfg.ResumeLinkCheck {
		return nil
	}
	return security.NewLinkChecker(cfg.HTTPTimeout)
}

// runServe はBFFサーバーモードで起動する。
// 全依存関係をワイヤリングし、HTTPサーバーを起動する。
// DATABASE_URLが設定されていればクライアント状態をPostgreSQLに保存し、未設定ならメモリに保持する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log := slog.Default()

	// 1. トレース
	shutdownTracing, err := telemetry.Setup(ctx, telemetry.Config{
		Endpoint:    cfg.OTLPEndpoint,
		Insecure:    cfg.OTLPInsecure,
		ServiceName: cfg.ServiceName,
	}, log)
	if err != nil {
		return fmt.Errorf("failed to set up tracing: %w", err)
	}
	defer shutdownTracing(context.Background())

	// 2. メトリクスとバックエンドクライアント
	collector := metrics.NewCollector(prometheus.DefaultRegisterer)
	apis, err := newBackends(cfg, log, collector)
	if err != nil {
		return fmt.Errorf("failed to create backend clients: %w", err)
	}

	// 3. クライアント状態の保存先
	var (
		storage clientstate.StorageFactory
		health  handler.HealthChecker
	)
	if cfg.DatabaseURL != "" {
		db, err := database.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer db.Close()
		slog.Info("database connection established")

		storage = repository.NewPostgresClientStateRepo(db).ForClient
		health = db
	} else {
		mem := persist.NewMemoryStorage()
		storage = func(clientID string) persist.Storage {
			return persist.NewNamespaced(mem, clientID)
		}
		slog.Warn("DATABASE_URL is not set, client state is kept in memory")
	}

	// 4. クライアント状態マネージャー
	manager := clientstate.NewManager(clientstate.Deps{
		JobSeekers: apis.jobSeekers,
		Employers:  apis.employers,
		Storage:    storage,
		Links:      newLinkChecker(cfg),
		Sanitizer:  security.NewContentSanitizer(),
		Logger:     log,
		Metrics:    collector,
		Persist:    persist.DefaultConfig(),
		Profile:    profile.ServiceConfig{CheckResumeLink: cfg.ResumeLinkCheck},
	})
	go manager.RunJanitor(ctx, janitorInterval, clientIdleTimeout)

	// 5. ルーターの構築
	rateLimiter := middleware.NewRateLimiter(middleware.PerMinuteConfig(cfg.RateLimitGeneral, cfg.RateLimitLogin))
	defer rateLimiter.Stop()

	router := handler.NewRouter(&handler.RouterDeps{
		Logger:  log,
		Clients: manager,
		ClientCookie: middleware.ClientCookieConfig{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
			MaxAge:       clientCookieAge,
		},
		CSRF: middleware.CSRFConfig{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
		},
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		HealthChecker:     health,
		Gatherer:          prometheus.DefaultGatherer,
		Registrar:         auth.NewRegistrationService(apis.jobSeekers, apis.employers, log),
	})

	// 6. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	listenErr := make(chan error, 1)
	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			listenErr <- err
		}
	}()

	select {
	case <-stop:
	case err := <-listenErr:
		return fmt.Errorf("server listen error: %w", err)
	}
	slog.Info("shutting down API server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	cancel()
	manager.Close(shutdownCtx)

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// DB接続を開き、クライアント状態のクリーンアップジョブを日次で実行する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("worker requires DATABASE_URL")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	slog.Info("database connection established (worker)")

	cleanupJob := cleanup.NewCleanupJob(repository.NewPostgresClientStateRepo(db), slog.Default())
	cleanupJob.RetentionDays = cfg.ClientStateRetentionDays

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-stop
		slog.Info("shutting down worker...")
		cancel()
	}()

	slog.Info("worker starting",
		slog.Int("retention_days", cfg.ClientStateRetentionDays),
	)

	cleanupJob.RunDaily(ctx, 24*time.Hour)

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("migrate requires DATABASE_URL")
	}

	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	v, err := database.CurrentVersion(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	slog.Info("database migrations completed successfully",
		slog.Uint64("version", uint64(v.Version)),
		slog.Bool("dirty", v.Dirty),
	)
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}

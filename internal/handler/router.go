package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/hitoshi/jobportal/internal/metrics"
	"github.com/hitoshi/jobportal/internal/middleware"
	"github.com/hitoshi/jobportal/internal/model"
	"github.com/prometheus/client_golang/prometheus"
)

// HealthChecker は/healthで依存先の疎通を確認する。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	Logger *slog.Logger

	// ミドルウェア依存
	Clients           middleware.ClientLoader
	ClientCookie      middleware.ClientCookieConfig
	CSRF              middleware.CSRFConfig
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter

	// 運用
	HealthChecker HealthChecker       // nilの場合は常に200
	Gatherer      prometheus.Gatherer // nilの場合は/metricsを公開しない

	// アカウント登録
	Registrar RegistrationServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RequestID → Logging → Recovery → SecurityHeaders → CORS → Client → RateLimit(General)
//	→ ClientState → CSRF → [Login RateLimit] → [RequireRole]
func NewRouter(deps *RouterDeps) http.Handler {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	r.Use(middleware.NewRecoveryMiddleware(deps.Logger))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	sessionHandler := NewSessionHandler(deps.Registrar, deps.Logger)
	profileHandler := NewProfileHandler(deps.Logger)
	jobHandler := NewJobHandler()

	// --- 運用エンドポイント ---
	r.Get("/health", healthHandler(deps.HealthChecker))
	if deps.Gatherer != nil {
		r.Handle("/metrics", metrics.Handler(deps.Gatherer))
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.NewClientMiddleware(deps.ClientCookie))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Get("/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRF).ServeHTTP)

		r.Group(func(r chi.Router) {
			r.Use(middleware.NewClientStateMiddleware(deps.Clients))
			r.Use(middleware.NewCSRFMiddleware(deps.CSRF))

			// --- 認証不要のルート ---
			r.Get("/session", sessionHandler.Session)
			r.Post("/logout", sessionHandler.Logout)

			r.Group(func(r chi.Router) {
				// ログイン・登録は専用のレート制限を追加
				r.Use(deps.RateLimiter.LoginMiddleware())
				r.Post("/jobseeker/login", sessionHandler.Login(model.RoleJobSeeker))
				r.Post("/employer/login", sessionHandler.Login(model.RoleEmployer))
				r.Post("/jobseeker/register", sessionHandler.RegisterJobSeeker)
				r.Post("/employer/register", sessionHandler.RegisterEmployer)
			})
			r.Post("/jobseeker/logout", sessionHandler.Logout)
			r.Post("/employer/logout", sessionHandler.Logout)

			r.Get("/jobs", jobHandler.Browse)
			r.Get("/jobs/{id}", jobHandler.Get)

			// --- 求職者のみ ---
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(model.RoleJobSeeker))

				r.Get("/jobs/recommended", jobHandler.Recommended)
				r.Post("/jobs/{id}/apply", jobHandler.Apply)
				r.Get("/applications", jobHandler.Applications)

				r.Route("/profile", func(r chi.Router) {
					r.Get("/", profileHandler.Get)
					r.Post("/", profileHandler.Create)
					r.Put("/", profileHandler.Update)
					r.Delete("/", profileHandler.Delete)

					r.Get("/completion", profileHandler.Completion)
					r.Get("/resume", profileHandler.Resume)

					r.Get("/education", profileHandler.ListEducation)
					r.Post("/education", profileHandler.AddEducation)
					r.Delete("/education/{id}", profileHandler.DeleteEducation)

					r.Get("/experience", profileHandler.ListExperience)
					r.Post("/experience", profileHandler.AddExperience)
					r.Delete("/experience/{id}", profileHandler.DeleteExperience)

					r.Get("/skills", profileHandler.ListSkills)
					r.Post("/skills", profileHandler.AddSkill)
					r.Delete("/skills/{id}", profileHandler.DeleteSkill)
				})
			})

			// --- 採用企業のみ ---
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(model.RoleEmployer))

				r.Get("/employer/jobs", jobHandler.Dashboard)
				r.Post("/employer/jobs", jobHandler.Post)
				r.Get("/employer/analytics", jobHandler.Analytics)
			})
		})
	})

	return r
}

// healthHandler は/healthのハンドラーを返す。
func healthHandler(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if checker != nil {
			if err := checker.PingContext(r.Context()); err != nil {
				slog.Error("health check failed", slog.String("error", err.Error()))
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

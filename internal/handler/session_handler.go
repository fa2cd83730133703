package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/jobportal/internal/clientstate"
	"github.com/hitoshi/jobportal/internal/guard"
	"github.com/hitoshi/jobportal/internal/model"
	"github.com/hitoshi/jobportal/internal/token"
)

// RegistrationServiceInterface はセッションハンドラーが必要とする登録サービスインターフェース。
type RegistrationServiceInterface interface {
	RegisterJobSeeker(ctx context.Context, reg model.JobSeekerRegistration) (model.Notice, error)
	RegisterEmployer(ctx context.Context, reg model.EmployerRegistration) (model.Notice, error)
}

// ログイン後の遷移先
const (
	jobSeekerHome = "/candidate/dashboard"
	employerHome  = "/employer/dashboard"
)

// SessionHandler はログイン・ログアウト・登録・セッション照会のHTTPハンドラー。
type SessionHandler struct {
	registrar RegistrationServiceInterface
	logger    *slog.Logger
	now       func() time.Time
}

// NewSessionHandler はSessionHandlerを生成する。
func NewSessionHandler(registrar RegistrationServiceInterface, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{
		registrar: registrar,
		logger:    logger,
		now:       time.Now,
	}
}

// loginRequest はログインリクエストのボディ。
type loginRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	RememberMe bool   `json:"remember_me"`
}

// sessionResponse はセッション情報のAPIレスポンス。トークン自体は返さない。
type sessionResponse struct {
	Authenticated bool             `json:"authenticated"`
	Role          model.Role       `json:"role"`
	User          *model.JobSeeker `json:"user,omitempty"`
	Employer      *model.Employer  `json:"employer,omitempty"`
	ExpiresAt     *time.Time       `json:"expires_at,omitempty"`
	NeedsProfile  bool             `json:"needs_profile,omitempty"`
}

// Login は指定した役割でログインする。
// POST /api/jobseeker/login, POST /api/employer/login
func (h *SessionHandler) Login(role model.Role) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		client, ok := clientFrom(w, r)
		if !ok {
			return
		}

		var req loginRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		var err error
		redirect := jobSeekerHome
		if role == model.RoleEmployer {
			err = client.App.LoginEmployer(r.Context(), req.Email, req.Password, req.RememberMe)
			redirect = employerHome
		} else {
			err = client.App.LoginJobSeeker(r.Context(), req.Email, req.Password, req.RememberMe)
		}
		if err != nil {
			handleServiceError(w, err, "Login failed")
			return
		}

		h.logger.Info("client logged in",
			slog.String("client_id", client.ID),
			slog.String("role", string(role)),
		)
		writeJSON(w, http.StatusOK, noticeResponse{
			Notice:   model.Success("Login successful"),
			Redirect: redirect,
			Data:     h.sessionOf(client),
		})
	}
}

// Logout はログイン中の役割をログアウトする。
// バックエンドのログアウトに失敗してもローカルのセッションは破棄される。
// POST /api/logout
func (h *SessionHandler) Logout(w http.ResponseWriter, r *http.Request) {
	client, ok := clientFrom(w, r)
	if !ok {
		return
	}

	if client.App.Session().Role == model.RoleNone {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewNotLoggedInError())
		return
	}

	if err := client.App.Logout(r.Context()); err != nil {
		h.logger.Warn("backend logout failed, local session cleared",
			slog.String("client_id", client.ID),
			slog.String("error", err.Error()),
		)
	}

	writeJSON(w, http.StatusOK, noticeResponse{
		Notice:   model.Success("Logout success"),
		Redirect: guard.LoginPath,
	})
}

// RegisterJobSeeker は求職者アカウントを登録する。
// POST /api/jobseeker/register
func (h *SessionHandler) RegisterJobSeeker(w http.ResponseWriter, r *http.Request) {
	var req model.JobSeekerRegistration
	if !decodeJSON(w, r, &req) {
		return
	}
	notice, err := h.registrar.RegisterJobSeeker(r.Context(), req)
	h.writeRegistration(w, notice, err)
}

// RegisterEmployer は採用企業アカウントを登録する。
// POST /api/employer/register
func (h *SessionHandler) RegisterEmployer(w http.ResponseWriter, r *http.Request) {
	var req model.EmployerRegistration
	if !decodeJSON(w, r, &req) {
		return
	}
	notice, err := h.registrar.RegisterEmployer(r.Context(), req)
	h.writeRegistration(w, notice, err)
}

func (h *SessionHandler) writeRegistration(w http.ResponseWriter, notice model.Notice, err error) {
	if err != nil {
		handleServiceError(w, err, notice.Message)
		return
	}
	writeJSON(w, http.StatusCreated, noticeResponse{
		Notice:   notice,
		Redirect: guard.LoginPath,
	})
}

// Session は現在のセッションを返す。
// GET /api/session
func (h *SessionHandler) Session(w http.ResponseWriter, r *http.Request) {
	client, ok := clientFrom(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.sessionOf(client))
}

func (h *SessionHandler) sessionOf(client *clientstate.Client) sessionResponse {
	sess := client.App.Session()
	resp := sessionResponse{
		Authenticated: guard.IsAuthenticated(sess, h.now()),
		Role:          sess.Role,
		User:          sess.JobSeeker,
		Employer:      sess.Employer,
	}
	if exp, err := token.ExpiresAt(sess.Token); err == nil {
		resp.ExpiresAt = &exp
	}
	if sess.Role == model.RoleJobSeeker {
		resp.NeedsProfile = client.App.Profile.NeedsCreation()
	}
	return resp
}

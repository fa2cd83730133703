package middleware

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/jobportal/internal/model"
)

const (
	// csrfCookieName はフロントエンドが読み取ってヘッダーに載せるためHttpOnlyにしない。
	csrfCookieName = "csrf_token"
	csrfHeaderName = "X-CSRF-Token"

	csrfTokenBytes     = 32
	defaultCSRFMaxAge  = 24 * 60 * 60
	csrfFailureCode    = "CSRF_FAILED"
	csrfFailureMessage = "CSRF token validation failed"
)

var (
	errCSRFMissingCookie = errors.New("missing cookie token")
	errCSRFMissingHeader = errors.New("missing header token")
	errCSRFMismatch      = errors.New("token mismatch")
)

// CSRFConfig はダブルサブミットCookieの設定。
type CSRFConfig struct {
	CookieSecure bool
	CookieDomain string
	// MaxAge はCookieの有効秒数。0なら1日。
	MaxAge int
}

func (c CSRFConfig) maxAge() int {
	if c.MaxAge > 0 {
		return c.MaxAge
	}
	return defaultCSRFMaxAge
}

// NewCSRFMiddleware はダブルサブミット方式でCSRFを防ぐ。
// GET/HEAD/OPTIONSは検証せず、Cookieが無ければ発行する。
// それ以外はCookieとX-CSRF-Tokenヘッダーの一致を要求し、不一致なら403を返す。
func NewCSRFMiddleware(config CSRFConfig) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				if _, ok := csrfCookieToken(r); !ok {
					if _, err := issueCSRFToken(w, config); err != nil {
						slog.Error("failed to generate CSRF token", slog.String("error", err.Error()))
					}
				}
				next.ServeHTTP(w, r)
				return
			}

			if err := checkCSRFToken(r); err != nil {
				attrs := []any{
					slog.String("reason", err.Error()),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
				}
				if clientID, cerr := ClientIDFromContext(r.Context()); cerr == nil {
					attrs = append(attrs, slog.String("client_id", clientID))
				}
				slog.Warn("CSRF validation failed", attrs...)
				WriteErrorResponse(w, http.StatusForbidden, &model.APIError{
					Code:     csrfFailureCode,
					Message:  csrfFailureMessage,
					Category: "auth",
					Action:   "Reload the page and try again.",
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// NewCSRFTokenHandler は GET /api/csrf-token のハンドラー。
// 既存のCookieがあればその値を、無ければ新しいトークンを発行して返す。
func NewCSRFTokenHandler(config CSRFConfig) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := csrfCookieToken(r)
		if !ok {
			var err error
			if token, err = issueCSRFToken(w, config); err != nil {
				slog.Error("failed to generate CSRF token", slog.String("error", err.Error()))
				WriteInternalServerError(w)
				return
			}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(struct {
			Token string `json:"token"`
		}{token})
	})
}

func csrfCookieToken(r *http.Request) (string, bool) {
	c, err := r.Cookie(csrfCookieName)
	if err != nil || c.Value == "" {
		return "", false
	}
	return c.Value, true
}

func checkCSRFToken(r *http.Request) error {
	cookie, ok := csrfCookieToken(r)
	if !ok {
		return errCSRFMissingCookie
	}
	header := r.Header.Get(csrfHeaderName)
	if header == "" {
		return errCSRFMissingHeader
	}
	if subtle.ConstantTimeCompare([]byte(cookie), []byte(header)) != 1 {
		return errCSRFMismatch
	}
	return nil
}

// issueCSRFToken は新しいトークンを生成してCookieに書き込む。
func issueCSRFToken(w http.ResponseWriter, config CSRFConfig) (string, error) {
	b := make([]byte, csrfTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	token := hex.EncodeToString(b)

	http.SetCookie(w, &http.Cookie{
		Name:     csrfCookieName,
		Value:    token,
		Path:     "/",
		Domain:   config.CookieDomain,
		MaxAge:   config.maxAge(),
		HttpOnly: false,
		Secure:   config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	return token, nil
}

package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/jobportal/internal/clientstate"
	"github.com/hitoshi/jobportal/internal/guard"
	"github.com/hitoshi/jobportal/internal/model"
)

var clientStateContextKey = contextKey("client_state")

// ClientLoader はクライアントIDからアプリケーション状態を取得する。
type ClientLoader interface {
	Get(ctx context.Context, clientID string) (*clientstate.Client, error)
}

// NewClientStateMiddleware はクライアントのアプリケーション状態をコンテキストに注入するミドルウェアを返す。
// NewClientMiddlewareの後に配置する。
func NewClientStateMiddleware(loader ClientLoader) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientID, err := ClientIDFromContext(r.Context())
			if err != nil {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}

			client, err := loader.Get(r.Context(), clientID)
			if err != nil {
				slog.Error("failed to load client state",
					slog.String("client_id", clientID),
					slog.String("error", err.Error()),
				)
				WriteInternalServerError(w)
				return
			}

			ctx := context.WithValue(r.Context(), clientStateContextKey, client)
			next.ServeHTTP(w, r.WithContext(ctx))

			// ログイン・ログアウト後の役割をアクセスログに残す
			if rl := requestLogFrom(ctx); rl != nil {
				rl.role = string(client.App.Session().Role)
			}
		})
	}
}

// ClientFromContext はリクエストコンテキストからクライアント状態を取得する。
func ClientFromContext(ctx context.Context) (*clientstate.Client, bool) {
	c, ok := ctx.Value(clientStateContextKey).(*clientstate.Client)
	return c, ok && c != nil
}

// ContextWithClient はコンテキストにクライアント状態を注入する。
func ContextWithClient(ctx context.Context, c *clientstate.Client) context.Context {
	return context.WithValue(ctx, clientStateContextKey, c)
}

// RequireRole は保護された画面用のAPIの前に置くゲート。
// 未ログインまたはトークン期限切れは401と"/login"、他の役割でログイン中は403と"/"を返す。
func RequireRole(role model.Role) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			client, ok := ClientFromContext(r.Context())
			if !ok {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}

			sess := client.App.Session()
			v := guard.Check(sess, role, time.Now())
			switch v.Decision {
			case guard.RedirectLogin:
				apiErr := model.NewUnauthorizedError()
				if sess.Token != "" {
					apiErr = model.NewSessionExpiredError()
				}
				WriteRedirectResponse(w, http.StatusUnauthorized, apiErr, v.Location)
				return
			case guard.RedirectHome:
				WriteRedirectResponse(w, http.StatusForbidden, model.NewWrongRoleError(role), v.Location)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

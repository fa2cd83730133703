// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"
)

const clientCookieName = "jp_client"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// clientIDContextKey はリクエストコンテキストにクライアントIDを格納するためのキー。
var clientIDContextKey = contextKey("client_id")

// ClientCookieConfig はクライアントID Cookieの設定。
type ClientCookieConfig struct {
	CookieSecure bool
	CookieDomain string
	MaxAge       int // 秒
}

// NewClientMiddleware はHTTP Only CookieからクライアントIDを読み取るミドルウェアを返す。
// Cookieがないか形式が不正な場合は新しいUUIDを発行してCookieに設定する。
// クライアントIDをリクエストコンテキストに注入する。
func NewClientMiddleware(config ClientCookieConfig) func(next http.Handler) http.Handler {
	maxAge := config.MaxAge
	if maxAge <= 0 {
		maxAge = 365 * 24 * 60 * 60
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var clientID string
			if cookie, err := r.Cookie(clientCookieName); err == nil {
				if id, err := uuid.Parse(cookie.Value); err == nil {
					clientID = id.String()
				}
			}

			if clientID == "" {
				clientID = uuid.NewString()
				http.SetCookie(w, &http.Cookie{
					Name:     clientCookieName,
					Value:    clientID,
					Path:     "/",
					Domain:   config.CookieDomain,
					MaxAge:   maxAge,
					HttpOnly: true,
					Secure:   config.CookieSecure,
					SameSite: http.SameSiteLaxMode,
				})
			}

			next.ServeHTTP(w, r.WithContext(ContextWithClientID(r.Context(), clientID)))
		})
	}
}

// ClientIDFromContext はリクエストコンテキストからクライアントIDを取得する。
// クライアントミドルウェアを通過したリクエストでのみ有効。
func ClientIDFromContext(ctx context.Context) (string, error) {
	clientID, ok := ctx.Value(clientIDContextKey).(string)
	if !ok || clientID == "" {
		return "", fmt.Errorf("client ID not found in context")
	}
	return clientID, nil
}

// ContextWithClientID はコンテキストにクライアントIDを注入する。
// 外側にLoggingミドルウェアがあればアクセスログにも記録される。
func ContextWithClientID(ctx context.Context, clientID string) context.Context {
	if rl := requestLogFrom(ctx); rl != nil {
		rl.clientID = clientID
	}
	return context.WithValue(ctx, clientIDContextKey, clientID)
}

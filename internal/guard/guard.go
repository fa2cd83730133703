// Package guard は保護された画面へのアクセス判定と、起動時のセッション検証を提供する。
package guard

import (
	"time"

	"github.com/hitoshi/jobportal/internal/model"
	"github.com/hitoshi/jobportal/internal/token"
)

// Decision はアクセス判定の結果。
type Decision int

const (
	// Allow はアクセスを許可する。
	Allow Decision = iota
	// RedirectLogin は未ログインのためログイン画面へ誘導する。
	RedirectLogin
	// RedirectHome は他の役割でログイン中のためトップへ誘導する。
	RedirectHome
)

const (
	// LoginPath はログイン画面のパス。
	LoginPath = "/login"
	// HomePath はトップ画面のパス。
	HomePath = "/"
)

// Verdict はアクセス判定の結果と誘導先。
type Verdict struct {
	Decision Decision
	Location string
	Message  string
}

// IsAuthenticated はトークンと役割があり、トークンが期限切れでないかを返す。
func IsAuthenticated(sess model.Session, now time.Time) bool {
	return sess.Token != "" && sess.IdentityRole() != "" && !token.IsExpired(sess.Token, now)
}

// Check は役割wantの画面へのアクセスを判定する。
// 他の役割のセッションがある場合はトップへ、未ログインまたは期限切れの場合はログイン画面へ誘導する。
func Check(sess model.Session, want model.Role, now time.Time) Verdict {
	if sess.Role != model.RoleNone && sess.Role != want {
		return Verdict{
			Decision: RedirectHome,
			Location: HomePath,
			Message:  model.NewWrongRoleError(want).Message,
		}
	}
	if sess.Role != want || !IsAuthenticated(sess, now) {
		return Verdict{Decision: RedirectLogin, Location: LoginPath}
	}
	return Verdict{Decision: Allow}
}

// Package state はひとつのクライアントのアプリケーション状態（セッションストアとプロフィールストア）をまとめる。
package state

import (
	"context"
	"errors"

	"github.com/hitoshi/jobportal/internal/auth"
	"github.com/hitoshi/jobportal/internal/model"
	"github.com/hitoshi/jobportal/internal/persist"
	"github.com/hitoshi/jobportal/internal/profile"
)

// App はクライアントのアプリケーション状態。
// 画面や操作にはこのオブジェクトを明示的に渡す。
type App struct {
	Auth     *auth.JobSeekerStore
	Employer *auth.EmployerStore
	Profile  *profile.Store
}

// New はAppを生成する。
func New(jobSeekers *auth.JobSeekerStore, employers *auth.EmployerStore, prof *profile.Store) *App {
	return &App{Auth: jobSeekers, Employer: employers, Profile: prof}
}

// Session はストアの状態からタグ付き共用体のセッションを組み立てる。
// 両方の役割が埋まっている場合（古いスナップショット）は求職者を優先する。
func (a *App) Session() model.Session {
	if st := a.Auth.Snapshot(); st.Authenticated() {
		return model.Session{Role: model.RoleJobSeeker, Token: st.Token, JobSeeker: st.Identity}
	}
	if st := a.Employer.Snapshot(); st.Authenticated() {
		return model.Session{Role: model.RoleEmployer, Token: st.Token, Employer: st.Identity}
	}
	return model.Anonymous()
}

// Slices は永続化対象のストアを返す。
func (a *App) Slices() []persist.Slice {
	return []persist.Slice{a.Auth, a.Profile, a.Employer}
}

// LoginJobSeeker は求職者としてログインする。
// 成功した場合は採用企業側のローカルセッションを破棄する。
func (a *App) LoginJobSeeker(ctx context.Context, email, password string, rememberMe bool) error {
	if err := a.Auth.Login(ctx, email, password, rememberMe); err != nil {
		return err
	}
	if a.Employer.Snapshot().Authenticated() {
		a.Employer.ClearLocal()
		a.Employer.ForgetRemembered(ctx)
	}
	return nil
}

// LoginEmployer は採用企業としてログインする。
// 成功した場合は求職者側のローカルセッションとプロフィールを破棄する。
func (a *App) LoginEmployer(ctx context.Context, email, password string, rememberMe bool) error {
	if err := a.Employer.Login(ctx, email, password, rememberMe); err != nil {
		return err
	}
	if a.Auth.Snapshot().Authenticated() {
		a.Auth.ClearLocal()
		a.Auth.ForgetRemembered(ctx)
	}
	a.Profile.Clear()
	return nil
}

// Logout はセッションを持つ役割をすべてログアウトし、プロフィールを既定値に戻す。
// バックエンドの失敗は返すが、ローカル状態は必ずリセットされる。
func (a *App) Logout(ctx context.Context) error {
	var errs []error
	if a.Auth.Snapshot().Authenticated() {
		errs = append(errs, a.Auth.Logout(ctx))
	}
	if a.Employer.Snapshot().Authenticated() {
		errs = append(errs, a.Employer.Logout(ctx))
	}
	a.Profile.Clear()
	return errors.Join(errs...)
}

package guard

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/hitoshi/jobportal/internal/auth"
	"github.com/hitoshi/jobportal/internal/model"
	"github.com/hitoshi/jobportal/internal/persist"
	"github.com/hitoshi/jobportal/internal/profile"
	"github.com/hitoshi/jobportal/internal/state"
)

var now = time.Unix(1_700_000_000, 0)

func tokenExpiringAt(exp int64) string {
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"HS256"}`))
	body := base64.RawURLEncoding.EncodeToString([]byte(fmt.Sprintf(`{"exp":%d}`, exp)))
	return header + "." + body + ".sig"
}

var (
	validToken   = tokenExpiringAt(now.Unix() + 3600)
	expiredToken = tokenExpiringAt(now.Unix() - 1)
)

func jobSeekerSession(tok string) model.Session {
	return model.Session{
		Role:      model.RoleJobSeeker,
		Token:     tok,
		JobSeeker: &model.JobSeeker{ID: "7", Role: "jobseeker"},
	}
}

func employerSession(tok string) model.Session {
	return model.Session{
		Role:     model.RoleEmployer,
		Token:    tok,
		Employer: &model.Employer{ID: "e1", Role: "employer"},
	}
}

func TestCheck(t *testing.T) {
	tests := []struct {
		name     string
		sess     model.Session
		want     model.Role
		decision Decision
		location string
		message  string
	}{
		{"求職者が求職者画面", jobSeekerSession(validToken), model.RoleJobSeeker, Allow, "", ""},
		{"採用企業が採用企業画面", employerSession(validToken), model.RoleEmployer, Allow, "", ""},
		{"匿名", model.Anonymous(), model.RoleJobSeeker, RedirectLogin, LoginPath, ""},
		{"期限切れ", jobSeekerSession(expiredToken), model.RoleJobSeeker, RedirectLogin, LoginPath, ""},
		{"不正なトークン", jobSeekerSession("garbage"), model.RoleJobSeeker, RedirectLogin, LoginPath, ""},
		{"求職者が採用企業画面", jobSeekerSession(validToken), model.RoleEmployer, RedirectHome, HomePath, "this page is for employer only"},
		{"採用企業が求職者画面", employerSession(validToken), model.RoleJobSeeker, RedirectHome, HomePath, "this page is for candidate only"},
		{
			"roleが空の主体",
			model.Session{Role: model.RoleJobSeeker, Token: validToken, JobSeeker: &model.JobSeeker{ID: "7"}},
			model.RoleJobSeeker, RedirectLogin, LoginPath, "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Check(tt.sess, tt.want, now)
			if got.Decision != tt.decision || got.Location != tt.location || got.Message != tt.message {
				t.Errorf("Check() = %+v, want {%v %q %q}", got, tt.decision, tt.location, tt.message)
			}
		})
	}
}

// --- Bootstrapper ---

type stubAuthenticator[I auth.Identity] struct {
	identity I
	token    string
	logouts  int
}

func (s *stubAuthenticator[I]) Login(_ context.Context, _, _ string) (string, I, error) {
	return s.token, s.identity, nil
}

func (s *stubAuthenticator[I]) Logout(_ context.Context, _ string) error {
	s.logouts++
	return nil
}

type bootFixture struct {
	app        *state.App
	jobSeekers *stubAuthenticator[model.JobSeeker]
	remember   *persist.MemoryStorage
	boot       *Bootstrapper
}

func newBootFixture(tok string) *bootFixture {
	logger := slog.New(slog.NewJSONHandler(&bytes.Buffer{}, nil))
	f := &bootFixture{
		jobSeekers: &stubAuthenticator[model.JobSeeker]{
			identity: model.JobSeeker{ID: "7", Role: "jobseeker"},
			token:    tok,
		},
		remember: persist.NewMemoryStorage(),
	}
	employers := &stubAuthenticator[model.Employer]{}
	f.app = state.New(
		auth.NewJobSeekerStore(f.jobSeekers, f.remember, logger, nil),
		auth.NewEmployerStore(employers, f.remember, logger, nil),
		profile.NewStore(),
	)
	f.boot = NewBootstrapper(logger, nil)
	f.boot.now = func() time.Time { return now }
	return f
}

func TestBootstrapper_ValidSession(t *testing.T) {
	f := newBootFixture(validToken)
	ctx := context.Background()
	f.app.LoginJobSeeker(ctx, "a@example.com", "pw", false)

	out := f.boot.Run(ctx, f.app)

	if !out.Authenticated || out.Redirect != "" {
		t.Errorf("Outcome = %+v, want 認証済み", out)
	}
	if f.app.Session().Role != model.RoleJobSeeker {
		t.Error("有効なセッションが破棄された")
	}
}

func TestBootstrapper_ExpiredSessionLogsOut(t *testing.T) {
	f := newBootFixture(expiredToken)
	ctx := context.Background()
	f.app.LoginJobSeeker(ctx, "a@example.com", "pw", true)
	f.app.Profile.Set(model.Profile{ID: "p1"})

	out := f.boot.Run(ctx, f.app)

	if out.Authenticated || out.Redirect != LoginPath {
		t.Errorf("Outcome = %+v, want /login へのリダイレクト", out)
	}
	if f.app.Session().Role != model.RoleNone {
		t.Error("期限切れのセッションが残っている")
	}
	if !f.app.Profile.NeedsCreation() {
		t.Error("プロフィールがリセットされていない")
	}
	if _, err := f.remember.Get(ctx, "authToken"); err == nil {
		t.Error("remember-me キーが残っている")
	}
	if f.jobSeekers.logouts != 1 {
		t.Errorf("ログアウトAPI呼び出し回数 = %d, want 1", f.jobSeekers.logouts)
	}
}

func TestBootstrapper_NoTokenRedirects(t *testing.T) {
	f := newBootFixture(validToken)

	out := f.boot.Run(context.Background(), f.app)

	if out.Authenticated || out.Redirect != LoginPath {
		t.Errorf("Outcome = %+v, want /login へのリダイレクト", out)
	}
	if f.jobSeekers.logouts != 0 {
		t.Error("トークンがない場合はログアウトAPIを呼んではならない")
	}
}

func TestBootstrapper_AdoptsRememberedSession(t *testing.T) {
	f := newBootFixture(validToken)
	ctx := context.Background()
	f.remember.Set(ctx, "authToken", []byte(validToken))
	f.remember.Set(ctx, "user", []byte(`{"id":7,"role":"jobseeker"}`))

	out := f.boot.Run(ctx, f.app)

	if !out.Authenticated {
		t.Fatalf("Outcome = %+v, want 認証済み", out)
	}
	if got := f.app.Session().SubjectID(); got != "7" {
		t.Errorf("SubjectID = %q, want 7", got)
	}
}

func TestBootstrapper_ExpiredRememberedSession(t *testing.T) {
	f := newBootFixture(validToken)
	ctx := context.Background()
	f.remember.Set(ctx, "authToken", []byte(expiredToken))
	f.remember.Set(ctx, "user", []byte(`{"id":7,"role":"jobseeker"}`))

	out := f.boot.Run(ctx, f.app)

	if out.Redirect != LoginPath {
		t.Errorf("Outcome = %+v, want /login へのリダイレクト", out)
	}
	if _, err := f.remember.Get(ctx, "authToken"); err == nil {
		t.Error("期限切れの remember-me キーが残っている")
	}
}

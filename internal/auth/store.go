// Package auth は求職者・採用企業それぞれのログインセッションを保持するストアを提供する。
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/hitoshi/jobportal/internal/backend"
	"github.com/hitoshi/jobportal/internal/metrics"
	"github.com/hitoshi/jobportal/internal/model"
)

// loginFailedMessage はバックエンドがメッセージを返さなかった場合のエラー文言。
const loginFailedMessage = "Login failed"

// Identity はログイン応答に含まれる主体（求職者または採用企業担当者）。
type Identity interface {
	model.JobSeeker | model.Employer
	RoleName() string
	Subject() model.ID
}

// Authenticator はバックエンドのログイン・ログアウトAPI。
type Authenticator[I Identity] interface {
	Login(ctx context.Context, email, password string) (string, I, error)
	Logout(ctx context.Context, token string) error
}

// RememberStore は「ログイン状態を保持する」用の永続ストレージ。
type RememberStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Remove(ctx context.Context, key string) error
}

// StoreConfig はストアごとの名前と永続化キー。
type StoreConfig struct {
	Role        model.Role
	Slice       string // スナップショット内のスライス名
	IdentityKey string // スナップショット内の主体の項目名
	TokenKey    string // remember-me用のトークンキー
	UserKey     string // remember-me用の主体キー
}

// JobSeekerConfig は求職者セッションストアの設定。
var JobSeekerConfig = StoreConfig{
	Role:        model.RoleJobSeeker,
	Slice:       "auth",
	IdentityKey: "user",
	TokenKey:    "authToken",
	UserKey:     "user",
}

// EmployerConfig は採用企業セッションストアの設定。
var EmployerConfig = StoreConfig{
	Role:        model.RoleEmployer,
	Slice:       "authemployer",
	IdentityKey: "employer",
	TokenKey:    "employerToken",
	UserKey:     "employer",
}

// State はセッションストアの状態。
// IdentityとTokenは常に同時に設定・クリアされる。
type State[I Identity] struct {
	Identity *I
	Token    string
	Loading  bool
	Error    string
}

// Authenticated は主体とトークンの両方を保持しているかを返す。
func (s State[I]) Authenticated() bool {
	return s.Identity != nil && s.Token != ""
}

// Store はひとつの役割のログインセッションを保持する。
// すべての変更はミューテックスの下で行い、変更後に購読者へ通知する。
type Store[I Identity] struct {
	mu        sync.Mutex
	state     State[I]
	inflight  int
	listeners map[int]func()
	nextID    int

	api      Authenticator[I]
	remember RememberStore
	config   StoreConfig
	logger   *slog.Logger
	metrics  metrics.MetricsCollector
}

// JobSeekerStore は求職者のセッションストア。
type JobSeekerStore = Store[model.JobSeeker]

// EmployerStore は採用企業のセッションストア。
type EmployerStore = Store[model.Employer]

// NewStore はStoreを生成する。rememberがnilの場合remember-meは無効。
func NewStore[I Identity](api Authenticator[I], remember RememberStore, config StoreConfig, logger *slog.Logger, m metrics.MetricsCollector) *Store[I] {
	if m == nil {
		m = metrics.Nop{}
	}
	return &Store[I]{
		listeners: make(map[int]func()),
		api:       api,
		remember:  remember,
		config:    config,
		logger:    logger,
		metrics:   m,
	}
}

// NewJobSeekerStore は求職者のセッションストアを生成する。
func NewJobSeekerStore(api Authenticator[model.JobSeeker], remember RememberStore, logger *slog.Logger, m metrics.MetricsCollector) *JobSeekerStore {
	return NewStore(api, remember, JobSeekerConfig, logger, m)
}

// NewEmployerStore は採用企業のセッションストアを生成する。
func NewEmployerStore(api Authenticator[model.Employer], remember RememberStore, logger *slog.Logger, m metrics.MetricsCollector) *EmployerStore {
	return NewStore(api, remember, EmployerConfig, logger, m)
}

// rejected はバックエンドが資格情報を4xxで拒否したかを返す。
// 接続失敗や5xxはログイン失敗として扱わない。
func rejected(err error) bool {
	var httpErr *backend.HTTPError
	return errors.As(err, &httpErr) && httpErr.Status >= 400 && httpErr.Status < 500
}

// Config はストアの設定を返す。
func (s *Store[I]) Config() StoreConfig {
	return s.config
}

// Login はバックエンドにログインし、成功時にトークンと主体を保存する。
// rememberMeがtrueの場合はremember-me用キーにも書き込む。
// 失敗時はバックエンドのメッセージ（なければ"Login failed"）をErrorに保存し、
// 既存のIdentity/Tokenは変更せずにエラーを返す。
// 並行して呼ばれた場合は最後に完了した呼び出しの結果が残る。
func (s *Store[I]) Login(ctx context.Context, email, password string, rememberMe bool) error {
	s.update(func(st *State[I]) {
		s.inflight++
		st.Loading = true
		st.Error = ""
	})

	token, identity, err := s.api.Login(ctx, email, password)
	if err != nil {
		msg := backend.MessageOf(err, loginFailedMessage)
		s.update(func(st *State[I]) {
			s.inflight--
			st.Loading = s.inflight > 0
			st.Error = msg
		})
		s.metrics.RecordSessionEvent(string(s.config.Role), "login_failed")
		s.logger.Warn("login failed",
			slog.String("role", string(s.config.Role)),
			slog.String("error", err.Error()),
		)
		if !rejected(err) {
			return err
		}
		return fmt.Errorf("%w: %w", model.NewLoginFailedError(msg), err)
	}

	s.update(func(st *State[I]) {
		s.inflight--
		st.Loading = s.inflight > 0
		st.Identity = &identity
		st.Token = token
	})
	s.metrics.RecordSessionEvent(string(s.config.Role), "login")

	if rememberMe {
		s.writeRemembered(ctx, token, identity)
	}
	return nil
}

// Logout はバックエンドのログアウトを試み、結果にかかわらずローカル状態をリセットする。
// バックエンドの失敗はログに記録し、情報としてのみ返す。
func (s *Store[I]) Logout(ctx context.Context) error {
	token := s.Snapshot().Token

	var apiErr error
	if token != "" {
		apiErr = s.api.Logout(ctx, token)
		if apiErr != nil {
			s.logger.Warn("backend logout failed",
				slog.String("role", string(s.config.Role)),
				slog.String("error", apiErr.Error()),
			)
		}
	}

	s.ClearLocal()
	s.ForgetRemembered(ctx)
	s.metrics.RecordSessionEvent(string(s.config.Role), "logout")
	return apiErr
}

// ClearLocal はネットワーク呼び出しなしでセッションをリセットする。
func (s *Store[I]) ClearLocal() {
	s.update(func(st *State[I]) {
		st.Identity = nil
		st.Token = ""
	})
}

// ResetError はErrorをクリアする。
func (s *Store[I]) ResetError() {
	s.update(func(st *State[I]) {
		st.Error = ""
	})
}

// Snapshot は現在の状態のコピーを返す。
func (s *Store[I]) Snapshot() State[I] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.copyState()
}

// Restore は永続化された状態でストアを初期化する。
// 一時的なLoading/Errorは復元しない。
func (s *Store[I]) Restore(st State[I]) {
	s.update(func(cur *State[I]) {
		if st.Identity == nil || st.Token == "" {
			cur.Identity = nil
			cur.Token = ""
			return
		}
		id := *st.Identity
		cur.Identity = &id
		cur.Token = st.Token
	})
}

// Subscribe は状態変更の購読者を登録し、解除用の関数を返す。
func (s *Store[I]) Subscribe(fn func()) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

// SliceName はスナップショット内のスライス名を返す。
func (s *Store[I]) SliceName() string {
	return s.config.Slice
}

// MarshalSnapshot は永続化対象（主体とトークン）をJSONにする。
func (s *Store[I]) MarshalSnapshot() (json.RawMessage, error) {
	st := s.Snapshot()
	return json.Marshal(map[string]any{
		s.config.IdentityKey: st.Identity,
		"token":              nullable(st.Token),
	})
}

// RestoreSnapshot はMarshalSnapshotの出力からストアを初期化する。
func (s *Store[I]) RestoreSnapshot(data json.RawMessage) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("invalid %s snapshot: %w", s.config.Slice, err)
	}
	var st State[I]
	if v, ok := raw[s.config.IdentityKey]; ok {
		if err := json.Unmarshal(v, &st.Identity); err != nil {
			return fmt.Errorf("invalid %s identity: %w", s.config.Slice, err)
		}
	}
	if v, ok := raw["token"]; ok {
		var token *string
		if err := json.Unmarshal(v, &token); err != nil {
			return fmt.Errorf("invalid %s token: %w", s.config.Slice, err)
		}
		if token != nil {
			st.Token = *token
		}
	}
	s.Restore(st)
	return nil
}

// RememberedToken はremember-me用キーに保存されたトークンを返す。
func (s *Store[I]) RememberedToken(ctx context.Context) (string, bool) {
	if s.remember == nil {
		return "", false
	}
	data, err := s.remember.Get(ctx, s.config.TokenKey)
	if err != nil || len(data) == 0 {
		return "", false
	}
	return string(data), true
}

// AdoptRemembered はremember-me用キーの主体とトークンでセッションを復元する。
// 主体が読めない場合はfalseを返す。
func (s *Store[I]) AdoptRemembered(ctx context.Context) bool {
	token, ok := s.RememberedToken(ctx)
	if !ok {
		return false
	}
	data, err := s.remember.Get(ctx, s.config.UserKey)
	if err != nil {
		return false
	}
	var identity I
	if err := json.Unmarshal(data, &identity); err != nil {
		s.logger.Warn("remembered identity is unreadable",
			slog.String("role", string(s.config.Role)),
			slog.String("error", err.Error()),
		)
		return false
	}
	s.Restore(State[I]{Identity: &identity, Token: token})
	return true
}

// ForgetRemembered はremember-me用キーを削除する。
func (s *Store[I]) ForgetRemembered(ctx context.Context) {
	if s.remember == nil {
		return
	}
	for _, key := range []string{s.config.TokenKey, s.config.UserKey} {
		if err := s.remember.Remove(ctx, key); err != nil {
			s.logger.Warn("failed to remove remembered session",
				slog.String("key", key),
				slog.String("error", err.Error()),
			)
		}
	}
}

func (s *Store[I]) writeRemembered(ctx context.Context, token string, identity I) {
	if s.remember == nil {
		return
	}
	data, err := json.Marshal(identity)
	if err == nil {
		err = errors.Join(
			s.remember.Set(ctx, s.config.TokenKey, []byte(token)),
			s.remember.Set(ctx, s.config.UserKey, data),
		)
	}
	if err != nil {
		s.logger.Warn("failed to remember session",
			slog.String("role", string(s.config.Role)),
			slog.String("error", err.Error()),
		)
	}
}

// update はミューテックスの下で状態を変更し、ロック解放後に購読者へ通知する。
func (s *Store[I]) update(fn func(*State[I])) {
	s.mu.Lock()
	fn(&s.state)
	listeners := make([]func(), 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}
	s.mu.Unlock()

	for _, l := range listeners {
		l()
	}
}

func (s *Store[I]) copyState() State[I] {
	st := s.state
	if st.Identity != nil {
		id := *st.Identity
		st.Identity = &id
	}
	return st
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

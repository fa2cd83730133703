// Package clientstate はサーバーモードでブラウザクライアントごとのアプリケーション状態を管理する。
//
// クライアントの初回アクセス時にスナップショットを復元し、セッションを検証してから
// ストアの変更を永続化する。しばらくアクセスのないクライアントはメモリから追い出す。
package clientstate

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/jobportal/internal/application"
	"github.com/hitoshi/jobportal/internal/auth"
	"github.com/hitoshi/jobportal/internal/guard"
	"github.com/hitoshi/jobportal/internal/job"
	"github.com/hitoshi/jobportal/internal/metrics"
	"github.com/hitoshi/jobportal/internal/model"
	"github.com/hitoshi/jobportal/internal/persist"
	"github.com/hitoshi/jobportal/internal/profile"
	"github.com/hitoshi/jobportal/internal/security"
	"github.com/hitoshi/jobportal/internal/state"
)

// JobSeekerAPI は求職者APIのうちクライアント状態が使う部分。
type JobSeekerAPI interface {
	auth.Authenticator[model.JobSeeker]
	profile.API
	application.API
	job.RecommendationAPI
}

// EmployerAPI は採用企業APIのうちクライアント状態が使う部分。
type EmployerAPI interface {
	auth.Authenticator[model.Employer]
	job.API
}

// StorageFactory はクライアントIDごとの永続ストレージを返す。
type StorageFactory func(clientID string) persist.Storage

// Deps はクライアント状態の生成に必要な依存。
type Deps struct {
	JobSeekers JobSeekerAPI
	Employers  EmployerAPI
	Storage    StorageFactory
	Links      security.LinkChecker
	Sanitizer  security.ContentSanitizerService
	Logger     *slog.Logger
	Metrics    metrics.MetricsCollector
	Persist    persist.Config
	Profile    profile.ServiceConfig
}

// Client はひとつのブラウザクライアントの状態とページ操作。
type Client struct {
	ID           string
	App          *state.App
	Profile      *profile.Service
	Applications *application.Service
	Jobs         *job.Service
	Outcome      guard.Outcome

	persistor *persist.Persistor
	restored  bool
	detach    func()
	lastSeen  time.Time
}

// Manager はクライアント状態を保持する。
type Manager struct {
	deps Deps
	boot *guard.Bootstrapper
	now  func() time.Time

	mu      sync.Mutex
	clients map[string]*Client
	loading map[string]chan struct{}
}

// NewManager はManagerを生成する。
func NewManager(deps Deps) *Manager {
	if deps.Metrics == nil {
		deps.Metrics = metrics.Nop{}
	}
	return &Manager{
		deps:    deps,
		boot:    guard.NewBootstrapper(deps.Logger, deps.Metrics),
		now:     time.Now,
		clients: make(map[string]*Client),
		loading: make(map[string]chan struct{}),
	}
}

// Get はクライアント状態を返す。メモリになければ永続ストレージから読み込む。
// 同じクライアントの同時読み込みは1回にまとめる。
func (m *Manager) Get(ctx context.Context, clientID string) (*Client, error) {
	if clientID == "" {
		return nil, errors.New("client id is empty")
	}
	for {
		m.mu.Lock()
		if c, ok := m.clients[clientID]; ok {
			c.lastSeen = m.now()
			m.mu.Unlock()
			return c, nil
		}
		wait, busy := m.loading[clientID]
		if !busy {
			done := make(chan struct{})
			m.loading[clientID] = done
			m.mu.Unlock()

			c := m.load(ctx, clientID)

			m.mu.Lock()
			m.clients[clientID] = c
			delete(m.loading, clientID)
			m.mu.Unlock()
			close(done)
			return c, nil
		}
		m.mu.Unlock()

		select {
		case <-wait:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// load はアプリケーションの読み込み1回分の処理を行う。
// スナップショットの復元、永続化の購読開始、セッション検証の順に実行する。
func (m *Manager) load(ctx context.Context, clientID string) *Client {
	d := m.deps
	storage := d.Storage(clientID)
	logger := d.Logger.With(slog.String("client_id", clientID))

	app := state.New(
		auth.NewJobSeekerStore(d.JobSeekers, storage, logger, d.Metrics),
		auth.NewEmployerStore(d.Employers, storage, logger, d.Metrics),
		profile.NewStore(),
	)

	p := persist.NewPersistor(storage, d.Persist, logger, d.Metrics)
	restored := p.Restore(ctx, app.Slices()...)

	// スナップショットのないクライアントは、起動時のログアウト処理で空の状態を書き込まない。
	var detach func()
	var outcome guard.Outcome
	if restored {
		detach = p.Attach(app.Slices()...)
		outcome = m.boot.Run(ctx, app)
	} else {
		outcome = m.boot.Run(ctx, app)
		detach = p.Attach(app.Slices()...)
		if outcome.Authenticated {
			if err := p.Flush(ctx); err != nil {
				logger.Warn("failed to flush client state", slog.String("error", err.Error()))
			}
		}
	}

	return &Client{
		ID:           clientID,
		App:          app,
		Profile:      profile.NewService(d.JobSeekers, app.Profile, app, d.Links, d.Sanitizer, logger, d.Profile),
		Applications: application.NewService(d.JobSeekers, app, logger, d.Metrics),
		Jobs:         job.NewService(d.Employers, d.JobSeekers, app, d.Sanitizer, logger),
		Outcome:      outcome,
		persistor:    p,
		restored:     restored,
		detach:       detach,
		lastSeen:     m.now(),
	}
}

// Len はメモリ上のクライアント数を返す。
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.clients)
}

// Evict は最終アクセスからidle以上経過したクライアントを書き出してメモリから除く。
func (m *Manager) Evict(ctx context.Context, idle time.Duration) int {
	cutoff := m.now().Add(-idle)

	m.mu.Lock()
	var stale []*Client
	for id, c := range m.clients {
		if c.lastSeen.Before(cutoff) {
			stale = append(stale, c)
			delete(m.clients, id)
		}
	}
	m.mu.Unlock()

	for _, c := range stale {
		m.release(ctx, c)
	}
	return len(stale)
}

// Close はすべてのクライアントを書き出してメモリから除く。
func (m *Manager) Close(ctx context.Context) {
	m.mu.Lock()
	all := make([]*Client, 0, len(m.clients))
	for id, c := range m.clients {
		all = append(all, c)
		delete(m.clients, id)
	}
	m.mu.Unlock()

	for _, c := range all {
		m.release(ctx, c)
	}
}

func (m *Manager) release(ctx context.Context, c *Client) {
	c.detach()
	if !c.restored && !c.persistor.Written() {
		return
	}
	if err := c.persistor.Flush(ctx); err != nil {
		m.deps.Logger.Warn("failed to flush client state",
			slog.String("client_id", c.ID),
			slog.String("error", err.Error()),
		)
	}
}

// RunJanitor はintervalごとにidle以上アクセスのないクライアントを追い出す。ctxが終了するまでブロックする。
func (m *Manager) RunJanitor(ctx context.Context, interval, idle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.Evict(ctx, idle); n > 0 {
				m.deps.Logger.Info("evicted idle clients", slog.Int("count", n))
			}
		}
	}
}

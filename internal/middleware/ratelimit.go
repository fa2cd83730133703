package middleware

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/hitoshi/jobportal/internal/model"
)

// RateLimiterConfig はクライアント単位のレート制限設定。
type RateLimiterConfig struct {
	GeneralRate     rate.Limit // /api 全体（req/sec）
	GeneralBurst    int
	LoginRate       rate.Limit // ログイン・登録（req/sec）
	LoginBurst      int
	CleanupInterval time.Duration
}

// DefaultRateLimiterConfig は 120 req/min（全体）と 10 req/min（ログイン・登録）。
func DefaultRateLimiterConfig() RateLimiterConfig {
	return PerMinuteConfig(120, 10)
}

// PerMinuteConfig はreq/min単位の値から設定を組み立てる。0以下は既定値を使う。
func PerMinuteConfig(general, login int) RateLimiterConfig {
	if general <= 0 {
		general = 120
	}
	if login <= 0 {
		login = 10
	}
	return RateLimiterConfig{
		GeneralRate:     rate.Limit(float64(general) / 60.0),
		GeneralBurst:    general,
		LoginRate:       rate.Limit(float64(login) / 60.0),
		LoginBurst:      login,
		CleanupInterval: 5 * time.Minute,
	}
}

type limiterEntry struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// limiterPool はクライアントIDごとのrate.Limiterを保持する。
type limiterPool struct {
	kind  string
	limit rate.Limit
	burst int

	mu      sync.Mutex
	entries map[string]*limiterEntry
}

func newLimiterPool(kind string, limit rate.Limit, burst int) *limiterPool {
	return &limiterPool{kind: kind, limit: limit, burst: burst, entries: make(map[string]*limiterEntry)}
}

func (p *limiterPool) allow(clientID string, now time.Time) bool {
	p.mu.Lock()
	e, ok := p.entries[clientID]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(p.limit, p.burst)}
		p.entries[clientID] = e
	}
	e.lastAccess = now
	p.mu.Unlock()

	return e.limiter.AllowN(now, 1)
}

func (p *limiterPool) evictIdle(cutoff time.Time) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := 0
	for id, e := range p.entries {
		if e.lastAccess.Before(cutoff) {
			delete(p.entries, id)
			n++
		}
	}
	return n
}

func (p *limiterPool) len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}

// middleware はClientMiddlewareの内側に置く。クライアントIDがなければ401を返す。
func (p *limiterPool) middleware(now func() time.Time) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientID, err := ClientIDFromContext(r.Context())
			if err != nil {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}

			if !p.allow(clientID, now()) {
				slog.Warn("rate limit exceeded",
					slog.String("client_id", clientID),
					slog.String("limit_type", p.kind),
					slog.String("path", r.URL.Path),
				)
				w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(p.limit)))
				WriteErrorResponse(w, http.StatusTooManyRequests, model.NewRateLimitedError())
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RateLimiter は /api 全体とログイン・登録の2系統のレート制限を持つ。
// 2系統は独立しており、ログインは両方の枠を消費する。
type RateLimiter struct {
	config  RateLimiterConfig
	general *limiterPool
	login   *limiterPool
	now     func() time.Time

	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewRateLimiter はRateLimiterを生成し、アイドルエントリの掃除を開始する。
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	rl := &RateLimiter{
		config:  config,
		general: newLimiterPool("general", config.GeneralRate, config.GeneralBurst),
		login:   newLimiterPool("login", config.LoginRate, config.LoginBurst),
		now:     time.Now,
		stopCh:  make(chan struct{}),
	}
	if config.CleanupInterval > 0 {
		go rl.cleanupLoop()
	}
	return rl
}

// Stop は掃除ゴルーチンを止める。複数回呼んでもよい。
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopCh) })
}

// GeneralMiddleware は /api 全体のレート制限。
func (rl *RateLimiter) GeneralMiddleware() func(next http.Handler) http.Handler {
	return rl.general.middleware(rl.clock)
}

// LoginMiddleware はログイン・登録のレート制限。
func (rl *RateLimiter) LoginMiddleware() func(next http.Handler) http.Handler {
	return rl.login.middleware(rl.clock)
}

// GeneralLimiterCount は保持しているクライアント数（全体）。
func (rl *RateLimiter) GeneralLimiterCount() int { return rl.general.len() }

// LoginLimiterCount は保持しているクライアント数（ログイン）。
func (rl *RateLimiter) LoginLimiterCount() int { return rl.login.len() }

func (rl *RateLimiter) clock() time.Time { return rl.now() }

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup()
		case <-rl.stopCh:
			return
		}
	}
}

// cleanup はCleanupIntervalの2倍以上アクセスのないエントリを削除する。
func (rl *RateLimiter) cleanup() {
	cutoff := rl.now().Add(-2 * rl.config.CleanupInterval)
	removed := rl.general.evictIdle(cutoff) + rl.login.evictIdle(cutoff)
	if removed > 0 {
		slog.Debug("rate limiter entries evicted", slog.Int("count", removed))
	}
}

// retryAfterSeconds は1トークン補充されるまでの秒数（最低1秒）。
func retryAfterSeconds(limit rate.Limit) int {
	if limit <= 0 {
		return 60
	}
	sec := int(math.Ceil(1.0 / float64(limit)))
	if sec < 1 {
		sec = 1
	}
	return sec
}

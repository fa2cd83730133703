package persist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/hitoshi/jobportal/internal/metrics"
)

// Slice はスナップショットに含めるストア。
type Slice interface {
	SliceName() string
	Subscribe(fn func()) func()
	MarshalSnapshot() (json.RawMessage, error)
	RestoreSnapshot(data json.RawMessage) error
}

// Config はスナップショットの保存設定。
type Config struct {
	Key       string   // ルートキー。保存先は "persist:<Key>"
	Version   int      // スナップショットのバージョン。一致しない場合は復元しない
	Whitelist []string // 保存対象のスライス名
}

// DefaultConfig は既定の保存設定。
func DefaultConfig() Config {
	return Config{
		Key:       "root",
		Version:   1,
		Whitelist: []string{"auth", "profile", "authemployer"},
	}
}

// StorageKey はスナップショットの保存先キーを返す。
func (c Config) StorageKey() string {
	return "persist:" + c.Key
}

func (c Config) allowed(name string) bool {
	for _, w := range c.Whitelist {
		if w == name {
			return true
		}
	}
	return false
}

// meta はスナップショットのメタ情報。
type meta struct {
	Version int `json:"version"`
}

// Persistor はストアの変更を購読してスナップショットを書き込み、起動時に復元する。
type Persistor struct {
	storage Storage
	config  Config
	logger  *slog.Logger
	metrics metrics.MetricsCollector

	mu      sync.Mutex
	slices  []Slice
	written bool
}

// NewPersistor はPersistorを生成する。
func NewPersistor(storage Storage, config Config, logger *slog.Logger, m metrics.MetricsCollector) *Persistor {
	if m == nil {
		m = metrics.Nop{}
	}
	return &Persistor{storage: storage, config: config, logger: logger, metrics: m}
}

// Attach はホワイトリストに含まれるスライスを購読し、変更のたびにスナップショットを書き込む。
// 返り値の関数で購読を解除する。
func (p *Persistor) Attach(slices ...Slice) func() {
	var unsubscribes []func()
	p.mu.Lock()
	for _, s := range slices {
		if !p.config.allowed(s.SliceName()) {
			continue
		}
		p.slices = append(p.slices, s)
		unsubscribes = append(unsubscribes, s.Subscribe(func() {
			if err := p.Flush(context.Background()); err != nil {
				p.logger.Warn("failed to write state snapshot", slog.String("error", err.Error()))
			}
		}))
	}
	p.mu.Unlock()

	return func() {
		for _, u := range unsubscribes {
			u()
		}
	}
}

// Flush は現在の状態をスナップショットとして書き込む。
func (p *Persistor) Flush(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	snapshot := make(map[string]json.RawMessage, len(p.slices)+1)
	for _, s := range p.slices {
		data, err := s.MarshalSnapshot()
		if err != nil {
			p.metrics.RecordSnapshotWrite(false)
			return fmt.Errorf("failed to serialize %s: %w", s.SliceName(), err)
		}
		snapshot[s.SliceName()] = data
	}
	m, _ := json.Marshal(meta{Version: p.config.Version})
	snapshot["_persist"] = m

	data, err := json.Marshal(snapshot)
	if err != nil {
		p.metrics.RecordSnapshotWrite(false)
		return err
	}
	if err := p.storage.Set(ctx, p.config.StorageKey(), data); err != nil {
		p.metrics.RecordSnapshotWrite(false)
		return err
	}
	p.written = true
	p.metrics.RecordSnapshotWrite(true)
	return nil
}

// Written はこのPersistorがスナップショットを一度でも書き込んだかを返す。
func (p *Persistor) Written() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.written
}

// Restore はスナップショットを読み込み、各スライスを初期化する。
// スナップショットがない・読めない・壊れている・バージョンが異なる場合は既定値のままとし、falseを返す。
// 復元したスライスへの書き戻しを避けるため、Attachより前に呼ぶ。
func (p *Persistor) Restore(ctx context.Context, slices ...Slice) bool {
	data, err := p.storage.Get(ctx, p.config.StorageKey())
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			p.logger.Warn("failed to read state snapshot", slog.String("error", err.Error()))
		}
		return false
	}

	var snapshot map[string]json.RawMessage
	if err := json.Unmarshal(data, &snapshot); err != nil {
		p.logger.Warn("state snapshot is corrupt, starting from defaults", slog.String("error", err.Error()))
		return false
	}

	var m meta
	if raw, ok := snapshot["_persist"]; !ok || json.Unmarshal(raw, &m) != nil || m.Version != p.config.Version {
		p.logger.Warn("state snapshot version mismatch, starting from defaults",
			slog.Int("version", m.Version),
			slog.Int("expected", p.config.Version),
		)
		return false
	}

	for _, s := range slices {
		if !p.config.allowed(s.SliceName()) {
			continue
		}
		raw, ok := snapshot[s.SliceName()]
		if !ok {
			continue
		}
		if err := s.RestoreSnapshot(raw); err != nil {
			p.logger.Warn("failed to restore slice, keeping defaults",
				slog.String("slice", s.SliceName()),
				slog.String("error", err.Error()),
			)
		}
	}
	return true
}

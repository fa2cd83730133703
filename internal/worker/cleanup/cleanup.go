// Package cleanup はクライアント状態の自動削除ジョブを提供する。
// 保持期間（デフォルト30日）を超えてアクセスのないブラウザクライアントの
// スナップショットを日次バッチで削除する。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// StaleDeleter は最終更新がcutoffより古いクライアント状態を削除する。
// repository.PostgresClientStateRepoが満たす。
type StaleDeleter interface {
	DeleteStale(ctx context.Context, cutoff time.Time) (int64, error)
}

// CleanupJob は保持期間を超過したクライアント状態の自動削除ジョブ。
// 冪等な削除処理を保証する。
type CleanupJob struct {
	repo          StaleDeleter
	logger        *slog.Logger
	now           func() time.Time
	RetentionDays int // クライアント状態の保持日数（デフォルト: 30）
}

// NewCleanupJob は新しいCleanupJobを生成する。
func NewCleanupJob(repo StaleDeleter, logger *slog.Logger) *CleanupJob {
	return &CleanupJob{
		repo:          repo,
		logger:        logger,
		now:           time.Now,
		RetentionDays: 30,
	}
}

// Cutoff は削除対象の境界時刻を返す。これより古いクライアントが削除される。
func (j *CleanupJob) Cutoff() time.Time {
	return j.now().AddDate(0, 0, -j.RetentionDays)
}

// Run は保持期間を超過したクライアント状態を削除する。
// 削除対象がない場合でもエラーにならない。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := time.Now()

	deleted, err := j.repo.DeleteStale(ctx, j.Cutoff())
	if err != nil {
		j.logger.Error("クライアント状態のクリーンアップに失敗しました",
			slog.String("error", err.Error()),
			slog.Int("retention_days", j.RetentionDays),
		)
		return fmt.Errorf("クライアント状態のクリーンアップに失敗: %w", err)
	}

	j.logger.Info("クライアント状態のクリーンアップが完了しました",
		slog.Int64("deleted_count", deleted),
		slog.Int("retention_days", j.RetentionDays),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return nil
}

// RunDaily はRunを即時に1回実行し、以降intervalごとに繰り返す。ctxが終了するまでブロックする。
func (j *CleanupJob) RunDaily(ctx context.Context, interval time.Duration) {
	j.Run(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.Run(ctx)
		}
	}
}

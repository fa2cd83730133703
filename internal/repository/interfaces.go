// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/jobportal/internal/persist"
)

// ClientStateRepository はクライアント状態スナップショットの永続化インターフェース。
// サーバーモードでブラウザクライアントごとのpersist.Storageを提供する。
type ClientStateRepository interface {
	// ForClient はclientIDに閉じたStorageを返す。
	ForClient(clientID string) persist.Storage

	// CountClients は保存されているクライアント数を返す。
	CountClients(ctx context.Context) (int, error)

	// DeleteStale は最終更新がcutoffより古いクライアントの全キーを削除する。
	// 削除した行数を返す。
	DeleteStale(ctx context.Context, cutoff time.Time) (int64, error)
}

package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hitoshi/jobportal/internal/persist"
)

// PostgresClientStateRepo はPostgreSQLを使用したクライアント状態リポジトリ。
type PostgresClientStateRepo struct {
	db *sql.DB
}

// NewPostgresClientStateRepo はPostgresClientStateRepoを生成する。
func NewPostgresClientStateRepo(db *sql.DB) *PostgresClientStateRepo {
	return &PostgresClientStateRepo{db: db}
}

// ForClient はclientIDに閉じたStorageを返す。
func (r *PostgresClientStateRepo) ForClient(clientID string) persist.Storage {
	return &clientStorage{db: r.db, clientID: clientID}
}

// CountClients は保存されているクライアント数を返す。
func (r *PostgresClientStateRepo) CountClients(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT count(DISTINCT client_id) FROM client_state`,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count clients: %w", err)
	}
	return n, nil
}

// DeleteStale は最終更新がcutoffより古いクライアントの全キーを削除する。
// 一部のキーだけ新しいクライアントは丸ごと残す。
func (r *PostgresClientStateRepo) DeleteStale(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM client_state
		 WHERE client_id IN (
		     SELECT client_id FROM client_state
		     GROUP BY client_id
		     HAVING max(updated_at) < $1
		 )`,
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete stale client state: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return n, nil
}

// clientStorage はclient_stateテーブルの1クライアント分をpersist.Storageとして扱う。
type clientStorage struct {
	db       *sql.DB
	clientID string
}

func (s *clientStorage) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM client_state WHERE client_id = $1 AND key = $2`,
		s.clientID, key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, persist.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get client state: %w", err)
	}
	return value, nil
}

func (s *clientStorage) Set(ctx context.Context, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO client_state (client_id, key, value, updated_at)
		 VALUES ($1, $2, $3, now())
		 ON CONFLICT (client_id, key)
		 DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
		s.clientID, key, value,
	)
	if err != nil {
		return fmt.Errorf("failed to set client state: %w", err)
	}
	return nil
}

func (s *clientStorage) Remove(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM client_state WHERE client_id = $1 AND key = $2`,
		s.clientID, key,
	)
	if err != nil {
		return fmt.Errorf("failed to remove client state: %w", err)
	}
	return nil
}

// compile-time interface check
var (
	_ ClientStateRepository = (*PostgresClientStateRepo)(nil)
	_ persist.Storage       = (*clientStorage)(nil)
)

package credentials

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/2beens/confhub/internal/credentials/migrations"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

// SQLiteStore keeps the credential in the key/value metadata table of a local sqlite db.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "."); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}
	return nil
}

func NewSQLiteStore(ctx context.Context, dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// a single connection keeps ":memory:" dbs alive and serializes writers
	db.SetMaxOpenConns(1)

	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) get(ctx context.Context, key string) (string, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get metadata[%s]: %w", key, err)
	}
	return string(value), nil
}

func (s *SQLiteStore) Load(ctx context.Context) (Credential, error) {
	access, err := s.get(ctx, KeyAccess)
	if err != nil {
		return Credential{}, err
	}
	refresh, err := s.get(ctx, KeyRefresh)
	if err != nil {
		return Credential{}, err
	}
	return Credential{Access: access, Refresh: refresh}, nil
}

func (s *SQLiteStore) Save(ctx context.Context, cred Credential) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		for key, value := range map[string]string{KeyAccess: cred.Access, KeyRefresh: cred.Refresh} {
			if value == "" {
				if _, err := tx.ExecContext(ctx, `DELETE FROM metadata WHERE key = ?`, key); err != nil {
					return fmt.Errorf("delete metadata[%s]: %w", key, err)
				}
				continue
			}
			_, err := tx.ExecContext(ctx, `
				INSERT INTO metadata (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
				ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
			`, key, []byte(value))
			if err != nil {
				return fmt.Errorf("set metadata[%s]: %w", key, err)
			}
		}
		return nil
	})
}

func (s *SQLiteStore) Clear(ctx context.Context) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM metadata WHERE key IN (?, ?)`, KeyAccess, KeyRefresh); err != nil {
			return fmt.Errorf("clear credential metadata: %w", err)
		}
		return nil
	})
}

func (s *SQLiteStore) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

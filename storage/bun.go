package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

var _ Store = (*BunStore)(nil)

// KVRecord is the row persisted by BunStore.
type KVRecord struct {
	bun.BaseModel `bun:"table:storefront_kv,alias:kv"`
	StorageKey    string    `bun:"storage_key,pk"`
	Value         string    `bun:"value,notnull"`
	UpdatedAt     time.Time `bun:"updated_at,notnull"`
}

// BunStore persists values in a SQL table through bun. It is used with
// SQLite by the CLI so a session survives process restarts.
type BunStore struct {
	db  *bun.DB
	now func() time.Time
}

func NewBunStore(db *bun.DB) *BunStore {
	return &BunStore{db: db, now: time.Now}
}

// OpenSQLite opens (or creates) a SQLite database at dsn.
func OpenSQLite(dsn string) (*bun.DB, error) {
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", dsn, err)
	}
	sqldb.SetMaxOpenConns(1)
	return bun.NewDB(sqldb, sqlitedialect.New()), nil
}

// Migrate creates the backing table when missing.
func (s *BunStore) Migrate(ctx context.Context) error {
	_, err := s.db.NewCreateTable().
		Model((*KVRecord)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("bun store migrate: %w", err)
	}
	return nil
}

func (s *BunStore) Get(ctx context.Context, key string) (string, bool, error) {
	if err := checkKey(key); err != nil {
		return "", false, err
	}

	record := new(KVRecord)
	err := s.db.NewSelect().
		Model(record).
		Where("storage_key = ?", key).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("bun store get: %w", err)
	}
	return record.Value, true, nil
}

func (s *BunStore) Set(ctx context.Context, key, value string) error {
	if err := checkKey(key); err != nil {
		return err
	}

	record := &KVRecord{
		StorageKey: key,
		Value:      value,
		UpdatedAt:  s.now(),
	}

	_, err := s.db.NewInsert().
		Model(record).
		On("CONFLICT (storage_key) DO UPDATE").
		Set("value = EXCLUDED.value").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("bun store set: %w", err)
	}
	return nil
}

func (s *BunStore) Remove(ctx context.Context, key string) error {
	if err := checkKey(key); err != nil {
		return err
	}

	_, err := s.db.NewDelete().
		Model((*KVRecord)(nil)).
		Where("storage_key = ?", key).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("bun store remove: %w", err)
	}
	return nil
}

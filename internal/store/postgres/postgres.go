package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"backoffice/internal/store"
)

const schema = `
	CREATE TABLE IF NOT EXISTS app_slots (
		name       TEXT PRIMARY KEY,
		payload    JSONB NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)
`

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(4)
	db.SetMaxOpenConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	if _, err := db.ExecContext(ctx, schema); err != nil && !isDuplicateObject(err) {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Load(ctx context.Context, slot store.Slot) ([]byte, error) {
	if !slot.Valid() {
		return nil, store.ErrInvalidSlot
	}

	var payload []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT payload
		FROM app_slots
		WHERE name = $1
	`, string(slot)).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select slot %s: %w", slot, err)
	}
	return payload, nil
}

func (s *Store) SaveAll(ctx context.Context, payloads map[store.Slot][]byte) error {
	for slot := range payloads {
		if !slot.Valid() {
			return store.ErrInvalidSlot
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	now := time.Now().UTC()
	for _, slot := range store.Slots() {
		payload, ok := payloads[slot]
		if !ok {
			continue
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO app_slots (name, payload, updated_at)
			VALUES ($1, $2::jsonb, $3)
			ON CONFLICT (name)
			DO UPDATE SET payload = EXCLUDED.payload, updated_at = EXCLUDED.updated_at
		`, string(slot), string(payload), now); err != nil {
			return fmt.Errorf("upsert slot %s: %w", slot, err)
		}
	}

	return tx.Commit()
}

// isDuplicateObject covers two processes racing on CREATE TABLE IF NOT EXISTS.
func isDuplicateObject(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" || pgErr.Code == "42P07"
	}
	return false
}

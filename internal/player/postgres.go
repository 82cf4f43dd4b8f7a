package player

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists player records in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err := initSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

func initSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS players (
			user_id BIGINT PRIMARY KEY,
			stage TEXT NOT NULL DEFAULT 'await_name',
			name TEXT NOT NULL DEFAULT '',
			race TEXT NOT NULL DEFAULT '',
			class TEXT NOT NULL DEFAULT '',
			origin TEXT NOT NULL DEFAULT '',
			backstory TEXT NOT NULL DEFAULT '',
			history TEXT NOT NULL DEFAULT '[]'
		);`,
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, userID int64) (Record, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT user_id, stage, name, race, class, origin, backstory, history
		 FROM players WHERE user_id = $1`, userID)

	var rec Record
	var stage string
	err := row.Scan(&rec.UserID, &stage,
		&rec.Profile.Name, &rec.Profile.Race, &rec.Profile.Class,
		&rec.Profile.Origin, &rec.Profile.Backstory, &rec.History)
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("get player %d: %w", userID, err)
	}
	rec.Stage = Stage(stage)
	return rec, nil
}

func (s *PostgresStore) Upsert(ctx context.Context, userID int64, patch Patch) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("upsert player %d: %w", userID, err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`INSERT INTO players (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING`,
		userID); err != nil {
		return fmt.Errorf("upsert player %d: %w", userID, err)
	}

	set, args := patchAssignments(patch, "$")
	if len(set) > 0 {
		args = append(args, userID)
		query := fmt.Sprintf(`UPDATE players SET %s WHERE user_id = $%d`,
			strings.Join(set, ", "), len(args))
		if _, err := tx.Exec(ctx, query, args...); err != nil {
			return fmt.Errorf("upsert player %d: %w", userID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("upsert player %d: %w", userID, err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

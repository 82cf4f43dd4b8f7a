package player

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists player records in a local SQLite file. The pure-Go
// driver keeps the binary cgo-free.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// SQLite serializes writers anyway; a single connection avoids
	// SQLITE_BUSY churn under concurrent sessions.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS players (
		user_id INTEGER PRIMARY KEY,
		stage TEXT NOT NULL DEFAULT 'await_name',
		name TEXT NOT NULL DEFAULT '',
		race TEXT NOT NULL DEFAULT '',
		class TEXT NOT NULL DEFAULT '',
		origin TEXT NOT NULL DEFAULT '',
		backstory TEXT NOT NULL DEFAULT '',
		history TEXT NOT NULL DEFAULT '[]'
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init sqlite schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Get(ctx context.Context, userID int64) (Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT user_id, stage, name, race, class, origin, backstory, history
		 FROM players WHERE user_id = ?`, userID)

	var rec Record
	var stage string
	err := row.Scan(&rec.UserID, &stage,
		&rec.Profile.Name, &rec.Profile.Race, &rec.Profile.Class,
		&rec.Profile.Origin, &rec.Profile.Backstory, &rec.History)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("get player %d: %w", userID, err)
	}
	rec.Stage = Stage(stage)
	return rec, nil
}

func (s *SQLiteStore) Upsert(ctx context.Context, userID int64, patch Patch) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("upsert player %d: %w", userID, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO players (user_id) VALUES (?) ON CONFLICT(user_id) DO NOTHING`,
		userID); err != nil {
		return fmt.Errorf("upsert player %d: %w", userID, err)
	}

	set, args := patchAssignments(patch, "?")
	if len(set) > 0 {
		args = append(args, userID)
		query := fmt.Sprintf(`UPDATE players SET %s WHERE user_id = ?`, strings.Join(set, ", "))
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("upsert player %d: %w", userID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("upsert player %d: %w", userID, err)
	}
	return nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

// patchAssignments renders the supplied patch fields as SET clauses.
// placeholder is "?" for sqlite; postgres passes "$" and gets numbered
// placeholders instead.
func patchAssignments(patch Patch, placeholder string) ([]string, []any) {
	var set []string
	var args []any
	add := func(column string, value any) {
		if placeholder == "?" {
			set = append(set, column+" = ?")
		} else {
			set = append(set, fmt.Sprintf("%s = $%d", column, len(args)+1))
		}
		args = append(args, value)
	}

	if patch.Stage != nil {
		add("stage", string(*patch.Stage))
	}
	if patch.Profile != nil {
		add("name", patch.Profile.Name)
		add("race", patch.Profile.Race)
		add("class", patch.Profile.Class)
		add("origin", patch.Profile.Origin)
		add("backstory", patch.Profile.Backstory)
	}
	if patch.History != nil {
		add("history", *patch.History)
	}
	return set, args
}

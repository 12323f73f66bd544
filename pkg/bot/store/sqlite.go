// Package store implements bot.PersistStore on SQLite and Redis.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/sipeed/picotd/pkg/bot"
	"github.com/sipeed/picotd/pkg/logger"
)

const sqliteSchema = `CREATE TABLE IF NOT EXISTS persists (
	bot_id  INTEGER NOT NULL,
	user_id INTEGER NOT NULL,
	fields  TEXT    NOT NULL,
	PRIMARY KEY (bot_id, user_id)
);`

type SQLiteStore struct {
	db *sql.DB
}

var _ bot.PersistStore = (*SQLiteStore)(nil)

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o700); err != nil {
		return nil, fmt.Errorf("creating store dir: %w", err)
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite store: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating persists table: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// SavePersists replaces every record stored for botID.
func (s *SQLiteStore) SavePersists(ctx context.Context, botID int64, records [][]string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM persists WHERE bot_id = ?", botID); err != nil {
		return err
	}
	for _, fields := range records {
		rec, err := bot.ParsePersist(fields)
		if err != nil {
			return err
		}
		data, err := json.Marshal(fields)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT OR REPLACE INTO persists (bot_id, user_id, fields) VALUES (?, ?, ?)",
			botID, rec.UserID, string(data),
		); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	logger.DebugCF("store", "Persists saved to sqlite", map[string]any{
		"bot_id": botID,
		"count":  len(records),
	})
	return nil
}

func (s *SQLiteStore) LoadPersists(ctx context.Context, botID int64) ([][]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT fields FROM persists WHERE bot_id = ? ORDER BY user_id", botID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out [][]string
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var fields []string
		if err := json.Unmarshal([]byte(data), &fields); err != nil {
			return nil, fmt.Errorf("decoding persist: %w", err)
		}
		out = append(out, fields)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

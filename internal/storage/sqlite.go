package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	logx "offhoursbot/pkg/logx"
)

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS whitelist (
	jid TEXT PRIMARY KEY
);
CREATE TABLE IF NOT EXISTS roster (
	day_key  TEXT NOT NULL,
	position INTEGER NOT NULL,
	jid      TEXT NOT NULL,
	name     TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (day_key, position)
);
`

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("storage.path is required for sqlite driver")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &sqliteStore{db: db, log: log}, nil
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) SaveWhitelist(ctx context.Context, jids []string) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM whitelist`); err != nil {
		return err
	}
	for _, jid := range jids {
		if _, err := tx.ExecContext(ctx, `INSERT INTO whitelist(jid) VALUES(?)`, jid); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *sqliteStore) LoadWhitelist(ctx context.Context) ([]string, error) {
	if s == nil || s.db == nil {
		return nil, ErrDisabled
	}
	rows, err := s.db.QueryContext(ctx, `SELECT jid FROM whitelist ORDER BY jid`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var jid string
		if err := rows.Scan(&jid); err != nil {
			return nil, err
		}
		out = append(out, jid)
	}
	return out, rows.Err()
}

func (s *sqliteStore) SaveRoster(ctx context.Context, dayKey string, groups []GroupRecord) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	// Only one day's roster is ever kept.
	if _, err := tx.ExecContext(ctx, `DELETE FROM roster`); err != nil {
		return err
	}
	for i, g := range groups {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO roster(day_key, position, jid, name) VALUES(?,?,?,?)`,
			dayKey, i, g.JID, g.Name,
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *sqliteStore) LoadRoster(ctx context.Context) (string, []GroupRecord, error) {
	if s == nil || s.db == nil {
		return "", nil, ErrDisabled
	}
	rows, err := s.db.QueryContext(ctx, `SELECT day_key, jid, name FROM roster ORDER BY position`)
	if err != nil {
		return "", nil, err
	}
	defer rows.Close()

	var (
		dayKey string
		out    []GroupRecord
	)
	for rows.Next() {
		var g GroupRecord
		if err := rows.Scan(&dayKey, &g.JID, &g.Name); err != nil {
			return "", nil, err
		}
		out = append(out, g)
	}
	return dayKey, out, rows.Err()
}

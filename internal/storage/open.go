package storage

import (
	"context"
	"errors"
	"strings"

	logx "offhoursbot/pkg/logx"
)

// Store is the minimal persistence API used by the app.
//
// Rate-limit, dedupe and ledger state are deliberately absent: a restart
// resets them.
type Store interface {
	SaveWhitelist(ctx context.Context, jids []string) error
	LoadWhitelist(ctx context.Context) ([]string, error)

	SaveRoster(ctx context.Context, dayKey string, groups []GroupRecord) error
	LoadRoster(ctx context.Context) (dayKey string, groups []GroupRecord, err error)

	Close() error
}

// Open initializes the configured store.
// It returns (nil, nil) if storage is disabled.
func Open(cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" || driver == "none" {
		return nil, nil
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	switch driver {
	case "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}

package storage

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"

	logx "offhoursbot/pkg/logx"
)

// fileStore is a dependency-free persistence backend: one JSON snapshot
// file, rewritten atomically (tmp + rename) on every save. The data volume
// here is tiny (a whitelist and one day's roster), so a full rewrite is
// cheaper than being clever.
type fileStore struct {
	log  logx.Logger
	path string

	mu   sync.Mutex
	data fileSnapshot
}

type fileSnapshot struct {
	Whitelist []string      `json:"whitelist"`
	RosterDay string        `json:"roster_day"`
	Roster    []GroupRecord `json:"roster"`
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for file driver")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	s := &fileStore{log: log, path: path}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *fileStore) load() error {
	b, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if len(b) == 0 {
		return nil
	}
	if err := json.Unmarshal(b, &s.data); err != nil {
		// A corrupt snapshot should not brick the bot; start fresh.
		s.log.Warn("storage snapshot unreadable, starting empty", logx.String("path", s.path), logx.Err(err))
		s.data = fileSnapshot{}
	}
	return nil
}

func (s *fileStore) flushLocked() error {
	tmp := s.path + ".tmp"
	b, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

func (s *fileStore) SaveWhitelist(ctx context.Context, jids []string) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.Whitelist = append([]string(nil), jids...)
	return s.flushLocked()
}

func (s *fileStore) LoadWhitelist(ctx context.Context) ([]string, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.data.Whitelist...), nil
}

func (s *fileStore) SaveRoster(ctx context.Context, dayKey string, groups []GroupRecord) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.RosterDay = dayKey
	s.data.Roster = append([]GroupRecord(nil), groups...)
	return s.flushLocked()
}

func (s *fileStore) LoadRoster(ctx context.Context) (string, []GroupRecord, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.RosterDay, append([]GroupRecord(nil), s.data.Roster...), nil
}

func (s *fileStore) Close() error { return nil }

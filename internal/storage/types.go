package storage

import (
	"errors"
	"time"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures storage.
//
// Driver values:
//   - "file": dependency-free JSON snapshot backend
//   - "sqlite": SQLite database file
//
// If Driver is empty or "none", storage is disabled: the whitelist lives
// only in memory and the roster display cache starts cold after a restart.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// GroupRecord is one name-annotated roster entry as shown on the admin
// surface.
type GroupRecord struct {
	JID  string `json:"jid"`
	Name string `json:"name"`
}

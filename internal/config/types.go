package config

// Config is the whole on-disk configuration. Unknown keys are rejected so
// typos surface at load time instead of silently using defaults.
//
// All durations are Go duration strings (e.g. "500ms", "10s", "1m").
type Config struct {
	// Timezone is the IANA zone every wall-clock decision uses: the
	// business-hours windows, the civil-day ledgers, and the broadcast
	// schedule. Default: "America/New_York".
	Timezone string `json:"timezone,omitempty"`

	Logging   LoggingConfig   `json:"logging"`
	Gateway   GatewayConfig   `json:"gateway"`
	Hours     HoursConfig     `json:"hours"`
	Responder ResponderConfig `json:"responder"`
	Broadcast BroadcastConfig `json:"broadcast"`
	Admin     AdminConfig     `json:"admin"`

	Dedupe  *DedupeConfig  `json:"dedupe,omitempty"`
	Storage *StorageConfig `json:"storage,omitempty"`

	// Whitelist seeds the group allow-list at startup. Empty means every
	// group is eligible. A persisted whitelist (storage enabled) takes
	// precedence over this seed.
	Whitelist []string `json:"whitelist,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// GatewayConfig points at the WhatsApp HTTP gateway the bot speaks through.
type GatewayConfig struct {
	BaseURL string `json:"base_url"`
	// Token authenticates both directions: outbound REST calls carry it as
	// a bearer token, and the inbound webhook requires it. Do not log.
	Token      string `json:"token,omitempty"`
	SessionDir string `json:"session_dir,omitempty"`

	RequestTimeout string `json:"request_timeout,omitempty"`
	// SendRatePerSec caps outbound sends. 0 keeps the default.
	SendRatePerSec int `json:"send_rate_per_sec,omitempty"`
}

// HoursConfig holds the local-time business windows as whole hours.
// The business day is [open, close); lunch is [lunch_start, lunch_end)
// inside it. Lunch hours equal to each other disable the lunch window.
type HoursConfig struct {
	Open       int `json:"open"`
	Close      int `json:"close"`
	LunchStart int `json:"lunch_start"`
	LunchEnd   int `json:"lunch_end"`
}

type ResponderConfig struct {
	UserDelay  string `json:"user_delay,omitempty"`
	GroupDelay string `json:"group_delay,omitempty"`
	LockMargin string `json:"lock_margin,omitempty"`

	UserCooldown  string `json:"user_cooldown,omitempty"`
	GroupCooldown string `json:"group_cooldown,omitempty"`

	OffHoursNotice string `json:"off_hours_notice,omitempty"`
	LunchNotice    string `json:"lunch_notice,omitempty"`

	// LunchScope is "groups" (default) or "all": which chat kinds get the
	// lunch notice. The off-hours notice always goes to both kinds.
	LunchScope string `json:"lunch_scope,omitempty"`
}

type BroadcastConfig struct {
	// PrepareAt and BroadcastAt are local wall times, "HH:MM".
	PrepareAt   string `json:"prepare_at,omitempty"`
	BroadcastAt string `json:"broadcast_at,omitempty"`

	PauseMin string `json:"pause_min,omitempty"`
	PauseMax string `json:"pause_max,omitempty"`

	Notice string `json:"notice,omitempty"`
}

// DedupeConfig bounds the seen-message-id cache.
type DedupeConfig struct {
	HighWater int `json:"high_water,omitempty"`
	KeepTail  int `json:"keep_tail,omitempty"`
}

// AdminConfig controls the operational HTTP server.
//
// Security note:
//   - Prefer binding to localhost (e.g. "127.0.0.1:8099").
//   - If you bind to a non-loopback address, set a token or explicitly
//     allow_insecure.
type AdminConfig struct {
	Addr          string `json:"addr,omitempty"`
	Token         string `json:"token,omitempty"` // optional bearer token (do not log)
	AllowInsecure bool   `json:"allow_insecure,omitempty"`

	ReadTimeout  string `json:"read_timeout,omitempty"`
	WriteTimeout string `json:"write_timeout,omitempty"`
	IdleTimeout  string `json:"idle_timeout,omitempty"`
}

// StorageConfig controls the optional persistence layer.
//
// Example:
//
//	"storage": { "driver": "file", "path": "./offhoursbot_store" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

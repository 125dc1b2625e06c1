package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Default notice texts. The deployment this bot grew out of serves a
// Spanish-speaking clientele; override them in the config for anything else.
const (
	DefaultOffHoursNotice = "Gracias por escribirnos. Nuestro horario de atención es de 8:00 a 19:00. " +
		"Le responderemos tan pronto abramos."
	DefaultLunchNotice = "Estamos en horario de almuerzo (12:00 a 14:00). Le responderemos en cuanto regresemos."
)

const DefaultTimezone = "America/New_York"

// Validate checks the whole config syntactically: zone names load,
// durations and wall times parse, the hour windows are coherent. It does
// not touch the network.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}

	tz := strings.TrimSpace(cfg.Timezone)
	if tz == "" {
		tz = DefaultTimezone
	}
	if _, err := time.LoadLocation(tz); err != nil {
		return fmt.Errorf("timezone: %w", err)
	}

	if strings.TrimSpace(cfg.Gateway.BaseURL) == "" {
		return fmt.Errorf("gateway.base_url is required")
	}
	if _, err := ParseDurationField("gateway.request_timeout", cfg.Gateway.RequestTimeout); err != nil {
		return err
	}
	if cfg.Gateway.SendRatePerSec < 0 {
		return fmt.Errorf("gateway.send_rate_per_sec must be >= 0")
	}

	if err := validateHours(cfg.Hours); err != nil {
		return err
	}

	for _, f := range []struct{ path, raw string }{
		{"responder.user_delay", cfg.Responder.UserDelay},
		{"responder.group_delay", cfg.Responder.GroupDelay},
		{"responder.lock_margin", cfg.Responder.LockMargin},
		{"responder.user_cooldown", cfg.Responder.UserCooldown},
		{"responder.group_cooldown", cfg.Responder.GroupCooldown},
		{"broadcast.pause_min", cfg.Broadcast.PauseMin},
		{"broadcast.pause_max", cfg.Broadcast.PauseMax},
		{"admin.read_timeout", cfg.Admin.ReadTimeout},
		{"admin.write_timeout", cfg.Admin.WriteTimeout},
		{"admin.idle_timeout", cfg.Admin.IdleTimeout},
	} {
		if _, err := ParseDurationField(f.path, f.raw); err != nil {
			return err
		}
	}

	switch strings.TrimSpace(cfg.Responder.LunchScope) {
	case "", "groups", "all":
	default:
		return fmt.Errorf("responder.lunch_scope: %q (want \"groups\" or \"all\")", cfg.Responder.LunchScope)
	}

	for _, f := range []struct{ path, raw string }{
		{"broadcast.prepare_at", cfg.Broadcast.PrepareAt},
		{"broadcast.broadcast_at", cfg.Broadcast.BroadcastAt},
	} {
		if strings.TrimSpace(f.raw) == "" {
			continue
		}
		if err := validateHHMM(f.path, f.raw); err != nil {
			return err
		}
	}

	if d := cfg.Dedupe; d != nil {
		if d.HighWater < 0 || d.KeepTail < 0 {
			return fmt.Errorf("dedupe: bounds must be >= 0")
		}
		if d.HighWater > 0 && d.KeepTail >= d.HighWater {
			return fmt.Errorf("dedupe.keep_tail must be below dedupe.high_water")
		}
	}

	if s := cfg.Storage; s != nil {
		switch strings.TrimSpace(strings.ToLower(s.Driver)) {
		case "", "file", "sqlite", "sqlite3":
		default:
			return fmt.Errorf("storage.driver: unknown driver %q", s.Driver)
		}
		if _, err := ParseDurationField("storage.busy_timeout", s.BusyTimeout); err != nil {
			return err
		}
	}

	return nil
}

func validateHours(h HoursConfig) error {
	// An omitted section keeps the built-in windows (8-19, lunch 12-14).
	if h == (HoursConfig{}) {
		return nil
	}
	inRange := func(v int) bool { return v >= 0 && v <= 24 }
	for _, v := range []int{h.Open, h.Close, h.LunchStart, h.LunchEnd} {
		if !inRange(v) {
			return fmt.Errorf("hours: values must be within [0, 24]")
		}
	}
	if h.Open >= h.Close {
		return fmt.Errorf("hours: open (%d) must be before close (%d)", h.Open, h.Close)
	}
	if h.LunchStart != h.LunchEnd {
		if h.LunchStart > h.LunchEnd {
			return fmt.Errorf("hours: lunch_start must not be after lunch_end")
		}
		if h.LunchStart < h.Open || h.LunchEnd > h.Close {
			return fmt.Errorf("hours: lunch window must sit inside the business day")
		}
	}
	return nil
}

func validateHHMM(path, raw string) error {
	left, right, ok := strings.Cut(strings.TrimSpace(raw), ":")
	if !ok {
		return fmt.Errorf("%s: invalid time %q, want HH:MM", path, raw)
	}
	hh, err := strconv.Atoi(left)
	if err != nil || hh < 0 || hh > 23 {
		return fmt.Errorf("%s: invalid hour in %q", path, raw)
	}
	mm, err := strconv.Atoi(right)
	if err != nil || mm < 0 || mm > 59 {
		return fmt.Errorf("%s: invalid minute in %q", path, raw)
	}
	return nil
}

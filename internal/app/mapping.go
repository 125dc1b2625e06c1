package app

import (
	"fmt"
	"strings"
	"time"

	"offhoursbot/internal/admin"
	"offhoursbot/internal/broadcast"
	"offhoursbot/internal/config"
	"offhoursbot/internal/hours"
	"offhoursbot/internal/responder"
	"offhoursbot/internal/storage"
	"offhoursbot/internal/transport/gateway"
	logx "offhoursbot/pkg/logx"
)

func mapLoggingConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	}
}

func mapGatewayConfig(cfg *config.Config) (gateway.Config, error) {
	timeout, err := config.ParseDurationOrDefault("gateway.request_timeout", cfg.Gateway.RequestTimeout, 15*time.Second)
	if err != nil {
		return gateway.Config{}, err
	}
	return gateway.Config{
		BaseURL:        cfg.Gateway.BaseURL,
		Token:          cfg.Gateway.Token,
		SessionDir:     cfg.Gateway.SessionDir,
		RequestTimeout: timeout,
		SendRatePerSec: cfg.Gateway.SendRatePerSec,
	}, nil
}

func mapHoursWindows(cfg *config.Config) hours.Windows {
	h := cfg.Hours
	if h == (config.HoursConfig{}) {
		return hours.Windows{Open: 8, Close: 19, LunchStart: 12, LunchEnd: 14}
	}
	return hours.Windows{Open: h.Open, Close: h.Close, LunchStart: h.LunchStart, LunchEnd: h.LunchEnd}
}

func mapResponderConfig(cfg *config.Config) (responder.Config, error) {
	r := cfg.Responder
	out := responder.Config{
		OffHoursNotice: strings.TrimSpace(r.OffHoursNotice),
		LunchNotice:    strings.TrimSpace(r.LunchNotice),
		LunchScope:     responder.LunchScope(strings.TrimSpace(r.LunchScope)),
	}
	if out.OffHoursNotice == "" {
		out.OffHoursNotice = config.DefaultOffHoursNotice
	}
	if out.LunchNotice == "" {
		out.LunchNotice = config.DefaultLunchNotice
	}

	var err error
	if out.UserDelay, err = config.ParseDurationField("responder.user_delay", r.UserDelay); err != nil {
		return responder.Config{}, err
	}
	if out.GroupDelay, err = config.ParseDurationField("responder.group_delay", r.GroupDelay); err != nil {
		return responder.Config{}, err
	}
	if out.LockMargin, err = config.ParseDurationField("responder.lock_margin", r.LockMargin); err != nil {
		return responder.Config{}, err
	}
	if out.UserCooldown, err = config.ParseDurationField("responder.user_cooldown", r.UserCooldown); err != nil {
		return responder.Config{}, err
	}
	if out.GroupCooldown, err = config.ParseDurationField("responder.group_cooldown", r.GroupCooldown); err != nil {
		return responder.Config{}, err
	}
	return out, nil
}

func mapBroadcastConfig(cfg *config.Config) (broadcast.Config, error) {
	b := cfg.Broadcast
	out := broadcast.Config{
		PrepareAt:   strings.TrimSpace(b.PrepareAt),
		BroadcastAt: strings.TrimSpace(b.BroadcastAt),
		Notice:      strings.TrimSpace(b.Notice),
	}
	if out.Notice == "" {
		out.Notice = config.DefaultOffHoursNotice
	}

	var err error
	if out.PauseMin, err = config.ParseDurationField("broadcast.pause_min", b.PauseMin); err != nil {
		return broadcast.Config{}, err
	}
	if out.PauseMax, err = config.ParseDurationField("broadcast.pause_max", b.PauseMax); err != nil {
		return broadcast.Config{}, err
	}
	return out, nil
}

func mapAdminConfig(cfg *config.Config) (admin.Config, error) {
	ac := cfg.Admin
	out := admin.Config{
		Addr:          strings.TrimSpace(ac.Addr),
		Token:         ac.Token,
		AllowInsecure: ac.AllowInsecure,
	}
	var err error
	if out.ReadTimeout, err = config.ParseDurationField("admin.read_timeout", ac.ReadTimeout); err != nil {
		return admin.Config{}, err
	}
	if out.WriteTimeout, err = config.ParseDurationField("admin.write_timeout", ac.WriteTimeout); err != nil {
		return admin.Config{}, err
	}
	if out.IdleTimeout, err = config.ParseDurationField("admin.idle_timeout", ac.IdleTimeout); err != nil {
		return admin.Config{}, err
	}
	return out, nil
}

func mapStorageConfig(cfg *config.Config) (storage.Config, bool, error) {
	if cfg == nil || cfg.Storage == nil {
		return storage.Config{}, false, nil
	}
	sc := cfg.Storage
	driver := strings.TrimSpace(sc.Driver)
	if driver == "" || strings.EqualFold(driver, "none") {
		return storage.Config{}, false, nil
	}
	path := strings.TrimSpace(sc.Path)

	dl := strings.ToLower(driver)
	switch dl {
	case "file":
		return storage.Config{Driver: "file", Path: path}, true, nil
	case "sqlite", "sqlite3":
		if path == "" {
			return storage.Config{}, false, fmt.Errorf("storage.path is required when storage.driver=sqlite")
		}
		busy, err := config.ParseDurationOrDefault("storage.busy_timeout", sc.BusyTimeout, 1*time.Second)
		if err != nil {
			return storage.Config{}, false, err
		}
		return storage.Config{Driver: dl, Path: path, BusyTimeout: busy}, true, nil
	default:
		return storage.Config{}, false, fmt.Errorf("unknown storage.driver: %s", driver)
	}
}

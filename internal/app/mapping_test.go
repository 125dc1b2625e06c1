package app

import (
	"testing"
	"time"

	"offhoursbot/internal/config"
	"offhoursbot/internal/responder"
)

func TestMapHoursWindowsDefaults(t *testing.T) {
	t.Parallel()
	win := mapHoursWindows(&config.Config{})
	if win.Open != 8 || win.Close != 19 || win.LunchStart != 12 || win.LunchEnd != 14 {
		t.Fatalf("defaults = %+v", win)
	}

	win = mapHoursWindows(&config.Config{Hours: config.HoursConfig{Open: 9, Close: 17}})
	if win.Open != 9 || win.Close != 17 || win.LunchStart != 0 {
		t.Fatalf("explicit = %+v", win)
	}
}

func TestMapResponderConfig(t *testing.T) {
	t.Parallel()
	cfg := &config.Config{Responder: config.ResponderConfig{
		UserDelay:  "15s",
		LunchScope: "all",
	}}
	rc, err := mapResponderConfig(cfg)
	if err != nil {
		t.Fatalf("map: %v", err)
	}
	if rc.UserDelay != 15*time.Second {
		t.Fatalf("user_delay = %v", rc.UserDelay)
	}
	if rc.LunchScope != responder.LunchAllChats {
		t.Fatalf("lunch_scope = %q", rc.LunchScope)
	}
	if rc.OffHoursNotice == "" || rc.LunchNotice == "" {
		t.Fatal("notice defaults not applied")
	}

	cfg.Responder.GroupDelay = "soon"
	if _, err := mapResponderConfig(cfg); err == nil {
		t.Fatal("want error for bad duration")
	}
}

func TestMapStorageConfig(t *testing.T) {
	t.Parallel()
	if _, enabled, err := mapStorageConfig(&config.Config{}); err != nil || enabled {
		t.Fatalf("omitted section: enabled = %v err = %v", enabled, err)
	}

	sc, enabled, err := mapStorageConfig(&config.Config{
		Storage: &config.StorageConfig{Driver: "sqlite", Path: "/tmp/x.db", BusyTimeout: "2s"},
	})
	if err != nil || !enabled {
		t.Fatalf("sqlite: enabled = %v err = %v", enabled, err)
	}
	if sc.BusyTimeout != 2*time.Second {
		t.Fatalf("busy_timeout = %v", sc.BusyTimeout)
	}

	if _, _, err := mapStorageConfig(&config.Config{
		Storage: &config.StorageConfig{Driver: "sqlite"},
	}); err == nil {
		t.Fatal("want error for missing path")
	}
}

func TestMapBroadcastConfigDefaultsNotice(t *testing.T) {
	t.Parallel()
	bc, err := mapBroadcastConfig(&config.Config{})
	if err != nil {
		t.Fatalf("map: %v", err)
	}
	if bc.Notice != config.DefaultOffHoursNotice {
		t.Fatalf("notice = %q", bc.Notice)
	}
}

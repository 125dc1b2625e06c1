package storage

import (
	"context"
	"path/filepath"
	"reflect"
	"testing"

	logx "offhoursbot/pkg/logx"
)

func openDrivers(t *testing.T) map[string]Store {
	t.Helper()
	dir := t.TempDir()
	out := map[string]Store{}
	for _, driver := range []string{"file", "sqlite"} {
		st, err := Open(Config{Driver: driver, Path: filepath.Join(dir, driver+".db")}, logx.Nop())
		if err != nil {
			t.Fatalf("Open(%s): %v", driver, err)
		}
		out[driver] = st
	}
	return out
}

func TestOpenDisabled(t *testing.T) {
	t.Parallel()
	for _, driver := range []string{"", "none"} {
		st, err := Open(Config{Driver: driver}, logx.Nop())
		if err != nil || st != nil {
			t.Fatalf("Open(%q) = (%v, %v), want (nil, nil)", driver, st, err)
		}
	}
	if _, err := Open(Config{Driver: "bogus"}, logx.Nop()); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func TestWhitelistRoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	for driver, st := range openDrivers(t) {
		jids := []string{"a@g.us", "b@g.us"}
		if err := st.SaveWhitelist(ctx, jids); err != nil {
			t.Fatalf("%s: SaveWhitelist: %v", driver, err)
		}
		got, err := st.LoadWhitelist(ctx)
		if err != nil {
			t.Fatalf("%s: LoadWhitelist: %v", driver, err)
		}
		if !reflect.DeepEqual(got, jids) {
			t.Fatalf("%s: whitelist = %v, want %v", driver, got, jids)
		}

		// Replacement, not accumulation.
		if err := st.SaveWhitelist(ctx, []string{"c@g.us"}); err != nil {
			t.Fatalf("%s: SaveWhitelist: %v", driver, err)
		}
		got, _ = st.LoadWhitelist(ctx)
		if !reflect.DeepEqual(got, []string{"c@g.us"}) {
			t.Fatalf("%s: whitelist after replace = %v", driver, got)
		}
		_ = st.Close()
	}
}

func TestRosterRoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	for driver, st := range openDrivers(t) {
		groups := []GroupRecord{
			{JID: "g1@g.us", Name: "First"},
			{JID: "g2@g.us", Name: "Second"},
		}
		if err := st.SaveRoster(ctx, "20250101", groups); err != nil {
			t.Fatalf("%s: SaveRoster: %v", driver, err)
		}
		day, got, err := st.LoadRoster(ctx)
		if err != nil {
			t.Fatalf("%s: LoadRoster: %v", driver, err)
		}
		if day != "20250101" {
			t.Fatalf("%s: day = %s", driver, day)
		}
		if !reflect.DeepEqual(got, groups) {
			t.Fatalf("%s: roster = %v, want %v (order must survive)", driver, got, groups)
		}
		_ = st.Close()
	}
}

func TestFileStoreSurvivesReopen(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "snap.json")

	st, err := Open(Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := st.SaveWhitelist(ctx, []string{"g@g.us"}); err != nil {
		t.Fatalf("SaveWhitelist: %v", err)
	}
	_ = st.Close()

	st2, err := Open(Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	got, err := st2.LoadWhitelist(ctx)
	if err != nil || len(got) != 1 || got[0] != "g@g.us" {
		t.Fatalf("whitelist after reopen = %v, %v", got, err)
	}
}

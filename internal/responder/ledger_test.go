package responder

import (
	"testing"
	"time"

	"offhoursbot/internal/chat"
)

func TestLedgerMarksPerDay(t *testing.T) {
	t.Parallel()
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatalf("LoadLocation: %v", err)
	}
	led := NewDayLedger(loc)
	g := chat.JID("g@g.us")

	day1 := time.Date(2025, 1, 1, 20, 0, 0, 0, loc)
	if led.Contains(g, day1) {
		t.Fatal("fresh ledger should not contain the group")
	}
	led.Add(g, day1)
	if !led.Contains(g, day1) {
		t.Fatal("group should be recorded for the day")
	}

	// Later the same civil day: still recorded.
	if !led.Contains(g, day1.Add(2*time.Hour)) {
		t.Fatal("entry must persist within the day")
	}
}

func TestLedgerDayRollover(t *testing.T) {
	t.Parallel()
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatalf("LoadLocation: %v", err)
	}
	led := NewDayLedger(loc)
	g := chat.JID("g@g.us")

	day1 := time.Date(2025, 1, 1, 23, 0, 0, 0, loc)
	led.Add(g, day1)

	day2 := time.Date(2025, 1, 2, 0, 30, 0, 0, loc)
	if led.Contains(g, day2) {
		t.Fatal("entries must be discarded on day rollover")
	}
	if led.Len(day2) != 0 {
		t.Fatalf("Len = %d after rollover, want 0", led.Len(day2))
	}
}

package hours

import (
	"testing"
	"time"
)

func TestClassifyBoundaries(t *testing.T) {
	t.Parallel()
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatalf("LoadLocation: %v", err)
	}
	c := NewClassifier(loc, Windows{Open: 8, Close: 18, LunchStart: 14, LunchEnd: 16})

	tests := []struct {
		hh, mm int
		want   State
	}{
		{7, 0, OffHours},
		{7, 59, OffHours},
		{8, 0, Business},
		{13, 0, Business},
		{14, 0, Lunch},
		{15, 59, Lunch},
		{16, 0, Business},
		{17, 59, Business},
		{18, 0, OffHours},
		{23, 0, OffHours},
		{0, 0, OffHours},
	}

	for _, tt := range tests {
		at := time.Date(2025, 3, 5, tt.hh, tt.mm, 0, 0, loc)
		if got := c.Classify(at); got != tt.want {
			t.Errorf("Classify(%02d:%02d) = %v, want %v", tt.hh, tt.mm, got, tt.want)
		}
	}
}

func TestLunchAxisIndependentOfOffHours(t *testing.T) {
	t.Parallel()
	loc := time.UTC
	// Lunch window overlapping the closed part of the day.
	c := NewClassifier(loc, Windows{Open: 8, Close: 12, LunchStart: 12, LunchEnd: 14})

	at := time.Date(2025, 3, 5, 13, 0, 0, 0, loc)
	if !c.IsLunch(at) {
		t.Fatal("13:00 should be lunch")
	}
	if !c.IsOffHours(at) {
		t.Fatal("13:00 should also be off-hours")
	}
	// Lunch wins for Classify.
	if got := c.Classify(at); got != Lunch {
		t.Fatalf("Classify = %v, want Lunch", got)
	}
}

func TestClassifierUsesFixedZone(t *testing.T) {
	t.Parallel()
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatalf("LoadLocation: %v", err)
	}
	c := NewClassifier(ny, Windows{Open: 8, Close: 19, LunchStart: 12, LunchEnd: 14})

	// 23:00 UTC on a summer day is 19:00 in New York: off-hours there,
	// regardless of the instant's own zone.
	at := time.Date(2025, 6, 10, 23, 0, 0, 0, time.UTC)
	if got := c.Classify(at); got != OffHours {
		t.Fatalf("Classify = %v, want OffHours", got)
	}
}

func TestWindowsValidate(t *testing.T) {
	t.Parallel()
	if err := (Windows{Open: 8, Close: 19, LunchStart: 12, LunchEnd: 14}).Validate(); err != nil {
		t.Fatalf("valid windows rejected: %v", err)
	}
	if err := (Windows{Open: 19, Close: 8, LunchStart: 12, LunchEnd: 14}).Validate(); err == nil {
		t.Fatal("expected error for open >= close")
	}
	if err := (Windows{Open: 8, Close: 19, LunchStart: 15, LunchEnd: 14}).Validate(); err == nil {
		t.Fatal("expected error for inverted lunch window")
	}
	if err := (Windows{Open: -1, Close: 19}).Validate(); err == nil {
		t.Fatal("expected error for negative hour")
	}
}

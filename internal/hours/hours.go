// Package hours classifies wall-clock instants into service states.
package hours

import (
	"fmt"
	"time"

	"offhoursbot/internal/civil"
)

// State is the service state at a given instant.
type State int

const (
	Business State = iota
	OffHours
	Lunch
)

func (s State) String() string {
	switch s {
	case Business:
		return "business"
	case OffHours:
		return "off_hours"
	case Lunch:
		return "lunch"
	default:
		return "unknown"
	}
}

// Windows holds the service and lunch window bounds in local hours.
// Both windows are half-open: [Open, Close) and [LunchStart, LunchEnd).
type Windows struct {
	Open       int
	Close      int
	LunchStart int
	LunchEnd   int
}

// Validate rejects bounds that cannot describe a same-day window.
func (w Windows) Validate() error {
	for name, h := range map[string]int{
		"open": w.Open, "close": w.Close,
		"lunch_start": w.LunchStart, "lunch_end": w.LunchEnd,
	} {
		if h < 0 || h > 24 {
			return fmt.Errorf("hours.%s: %d out of range [0,24]", name, h)
		}
	}
	if w.Open >= w.Close {
		return fmt.Errorf("hours: open (%d) must be before close (%d)", w.Open, w.Close)
	}
	if w.LunchStart > w.LunchEnd {
		return fmt.Errorf("hours: lunch_start (%d) must not be after lunch_end (%d)", w.LunchStart, w.LunchEnd)
	}
	return nil
}

// Classifier maps instants to service states in one fixed timezone.
// It is pure and safe to call at message-arrival rate.
type Classifier struct {
	loc *time.Location
	win Windows
}

func NewClassifier(loc *time.Location, win Windows) *Classifier {
	return &Classifier{loc: loc, win: win}
}

// Classify returns the state at t. Lunch takes precedence over the
// business/off-hours axis when both apply.
func (c *Classifier) Classify(t time.Time) State {
	h := civil.At(t, c.loc).Hour
	if h >= c.win.LunchStart && h < c.win.LunchEnd {
		return Lunch
	}
	if h < c.win.Open || h >= c.win.Close {
		return OffHours
	}
	return Business
}

// IsLunch reports the lunch axis on its own, independent of off-hours.
func (c *Classifier) IsLunch(t time.Time) bool {
	h := civil.At(t, c.loc).Hour
	return h >= c.win.LunchStart && h < c.win.LunchEnd
}

// IsOffHours reports whether t is outside the service window.
func (c *Classifier) IsOffHours(t time.Time) bool {
	h := civil.At(t, c.loc).Hour
	return h < c.win.Open || h >= c.win.Close
}

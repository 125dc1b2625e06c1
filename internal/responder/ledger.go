package responder

import (
	"sync"
	"time"

	"offhoursbot/internal/chat"
	"offhoursbot/internal/civil"
)

// DayLedger records which groups already received a given category of reply
// today. The reactive path and the daily broadcast each keep their own
// ledger; answering a group reactively says nothing about whether it also
// got the broadcast.
//
// The ledger is scoped to the civil day of the configured timezone: the
// first access after a day rollover discards yesterday's entries.
type DayLedger struct {
	loc *time.Location

	mu     sync.Mutex
	dayKey string
	done   map[chat.JID]struct{}
}

func NewDayLedger(loc *time.Location) *DayLedger {
	return &DayLedger{loc: loc, done: make(map[chat.JID]struct{})}
}

// Contains reports whether jid is already recorded for the civil day of now.
func (d *DayLedger) Contains(jid chat.JID, now time.Time) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.rollLocked(now)
	_, ok := d.done[jid]
	return ok
}

// Add records jid for the civil day of now.
func (d *DayLedger) Add(jid chat.JID, now time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.rollLocked(now)
	d.done[jid] = struct{}{}
}

// Len reports the number of entries for the civil day of now.
func (d *DayLedger) Len(now time.Time) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.rollLocked(now)
	return len(d.done)
}

func (d *DayLedger) rollLocked(now time.Time) {
	key := civil.DayKey(now, d.loc)
	if key != d.dayKey {
		d.dayKey = key
		d.done = make(map[chat.JID]struct{})
	}
}

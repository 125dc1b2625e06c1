package responder

import (
	"sync"
	"time"

	"offhoursbot/internal/chat"
)

// ReserveOutcome is the result of trying to start a delayed-send workflow.
type ReserveOutcome int

const (
	Reserved ReserveOutcome = iota
	// InCooldown: a send to this chat completed too recently.
	InCooldown
	// InFlight: another delayed send for this chat is already pending.
	InFlight
)

func (o ReserveOutcome) String() string {
	switch o {
	case Reserved:
		return "reserved"
	case InCooldown:
		return "cooldown"
	case InFlight:
		return "in_flight"
	default:
		return "unknown"
	}
}

// RateLimiter tracks per-chat cooldowns and in-flight delayed-send locks.
//
// The cooldown read and the lock reservation form one atomic step so two
// concurrent workflows can never both pass the checks for the same chat.
type RateLimiter struct {
	mu            sync.Mutex
	cooldownUntil map[chat.JID]time.Time
	lockUntil     map[chat.JID]time.Time
}

func NewRateLimiter() *RateLimiter {
	return &RateLimiter{
		cooldownUntil: make(map[chat.JID]time.Time),
		lockUntil:     make(map[chat.JID]time.Time),
	}
}

// Reserve atomically checks the cooldown and lock for jid and, when both
// pass, records a lock that expires at lockUntil.
func (l *RateLimiter) Reserve(jid chat.JID, now, lockUntil time.Time) ReserveOutcome {
	l.mu.Lock()
	defer l.mu.Unlock()

	if until, ok := l.cooldownUntil[jid]; ok && now.Before(until) {
		return InCooldown
	}
	if until, ok := l.lockUntil[jid]; ok && now.Before(until) {
		return InFlight
	}
	l.lockUntil[jid] = lockUntil
	return Reserved
}

// Release clears jid's lock. It is called unconditionally when a workflow
// ends, success or failure.
func (l *RateLimiter) Release(jid chat.JID) {
	l.mu.Lock()
	delete(l.lockUntil, jid)
	l.mu.Unlock()
}

// MarkSent records a cooldown after a successful send.
func (l *RateLimiter) MarkSent(jid chat.JID, until time.Time) {
	l.mu.Lock()
	l.cooldownUntil[jid] = until
	l.mu.Unlock()
}

// CoolingDown reports whether jid is still inside its cooldown at now.
func (l *RateLimiter) CoolingDown(jid chat.JID, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	until, ok := l.cooldownUntil[jid]
	return ok && now.Before(until)
}

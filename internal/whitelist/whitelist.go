// Package whitelist holds the optional group allow-list.
//
// An empty list means no restriction: every group is eligible. A non-empty
// list restricts both the reactive responder and the daily broadcast to its
// members. Only group JIDs can be listed; entries of other kinds submitted
// through the admin surface are dropped.
package whitelist

import (
	"sort"
	"sync"

	"offhoursbot/internal/chat"
)

type List struct {
	mu  sync.RWMutex
	set map[chat.JID]struct{}
}

func New() *List {
	return &List{set: make(map[chat.JID]struct{})}
}

// Replace swaps the whole list for the group-kind subset of jids and
// returns the entries that were accepted.
func (l *List) Replace(jids []string) []string {
	next := make(map[chat.JID]struct{}, len(jids))
	accepted := make([]string, 0, len(jids))
	for _, raw := range jids {
		j := chat.JID(raw)
		if !j.IsGroup() {
			continue
		}
		if _, dup := next[j]; dup {
			continue
		}
		next[j] = struct{}{}
		accepted = append(accepted, raw)
	}

	l.mu.Lock()
	l.set = next
	l.mu.Unlock()

	sort.Strings(accepted)
	return accepted
}

// Allows reports whether jid passes the whitelist filter.
func (l *List) Allows(jid chat.JID) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if len(l.set) == 0 {
		return true
	}
	_, ok := l.set[jid]
	return ok
}

// Snapshot returns the current entries, sorted.
func (l *List) Snapshot() []string {
	l.mu.RLock()
	out := make([]string, 0, len(l.set))
	for j := range l.set {
		out = append(out, j.String())
	}
	l.mu.RUnlock()
	sort.Strings(out)
	return out
}

// Empty reports whether the list is unrestricted.
func (l *List) Empty() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.set) == 0
}

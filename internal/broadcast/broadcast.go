// Package broadcast drives the once-daily group notice cycle.
//
// Each civil day the scheduler snapshots the account's group roster at the
// prepare time, then at the broadcast time walks that frozen snapshot and
// sends the off-hours notice to every eligible group, pausing a randomized
// interval between groups. Groups joined after the snapshot wait until the
// next day.
package broadcast

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"offhoursbot/internal/chat"
	"offhoursbot/internal/civil"
	"offhoursbot/internal/responder"
	"offhoursbot/internal/storage"
	"offhoursbot/internal/transport"
	"offhoursbot/internal/whitelist"
	logx "offhoursbot/pkg/logx"
)

// State is the scheduler's position in the daily cycle.
type State int

const (
	StateIdle State = iota
	StatePrepared
	StateBroadcasting
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePrepared:
		return "prepared"
	case StateBroadcasting:
		return "broadcasting"
	default:
		return "unknown"
	}
}

// Entry is one roster member in snapshot order.
type Entry struct {
	JID  chat.JID
	Name string
}

// Roster is the frozen snapshot for one civil day.
type Roster struct {
	DayKey  string
	Entries []Entry
}

// Transport is the slice of the chat transport the broadcaster needs.
type Transport interface {
	ListGroups(ctx context.Context) (map[chat.JID]transport.GroupInfo, error)
	SendText(ctx context.Context, to chat.JID, text string) error
}

type Config struct {
	// PrepareAt and BroadcastAt are local wall times, "HH:MM".
	PrepareAt   string
	BroadcastAt string

	// Pause bounds between consecutive group sends. The spacing exists to
	// stay under the network's abuse radar, not for correctness.
	PauseMin time.Duration
	PauseMax time.Duration

	Notice string
}

func (c Config) withDefaults() Config {
	if c.PrepareAt == "" {
		c.PrepareAt = "18:00"
	}
	if c.BroadcastAt == "" {
		c.BroadcastAt = "18:15"
	}
	if c.PauseMin <= 0 {
		c.PauseMin = 800 * time.Millisecond
	}
	if c.PauseMax < c.PauseMin {
		c.PauseMax = c.PauseMin
	}
	return c
}

// Broadcaster owns the daily state machine. Prepare and Broadcast are
// plain methods so the transitions stay testable without real-time waits;
// Start only wires them to the clock.
type Broadcaster struct {
	cfg   Config
	loc   *time.Location
	tr    Transport
	allow *whitelist.List
	// ledger is the broadcast-path day ledger. It is distinct from the
	// reactive one: answering a group reactively does not count as having
	// broadcast to it.
	ledger *responder.DayLedger
	store  storage.Store
	log    logx.Logger

	c *cron.Cron

	mu     sync.Mutex
	state  State
	roster Roster

	// Test seams.
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration)
	rng   *rand.Rand
}

func New(cfg Config, loc *time.Location, tr Transport, allow *whitelist.List,
	ledger *responder.DayLedger, store storage.Store, log logx.Logger) *Broadcaster {
	return &Broadcaster{
		cfg:    cfg.withDefaults(),
		loc:    loc,
		tr:     tr,
		allow:  allow,
		ledger: ledger,
		store:  store,
		log:    log,
		now:    time.Now,
		sleep:  ctxSleep,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func ctxSleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// Start arms the daily transitions and runs restart recovery: when the
// process comes up between the prepare and broadcast times, the prepare
// step runs immediately instead of waiting for tomorrow's tick.
func (b *Broadcaster) Start(ctx context.Context) error {
	prepHH, prepMM, err := parseHHMM(b.cfg.PrepareAt)
	if err != nil {
		return fmt.Errorf("broadcast.prepare_at: %w", err)
	}
	bcHH, bcMM, err := parseHHMM(b.cfg.BroadcastAt)
	if err != nil {
		return fmt.Errorf("broadcast.broadcast_at: %w", err)
	}

	b.mu.Lock()
	if b.c != nil {
		b.mu.Unlock()
		return nil
	}
	b.mu.Unlock()

	// A roster persisted earlier today survives the restart; anything
	// older is stale and ignored (day-key mismatch invalidates it).
	b.adoptStoredRoster(ctx)

	c := cron.New(cron.WithLocation(b.loc))
	if _, err := c.AddFunc(fmt.Sprintf("%d %d * * *", prepMM, prepHH), func() { b.Prepare(ctx) }); err != nil {
		return err
	}
	if _, err := c.AddFunc(fmt.Sprintf("%d %d * * *", bcMM, bcHH), func() { b.Broadcast(ctx) }); err != nil {
		return err
	}

	b.mu.Lock()
	b.c = c
	b.mu.Unlock()

	if civil.Between(b.now(), b.loc, prepHH, prepMM, bcHH, bcMM) {
		b.log.Info("inside prepare window at startup, preparing now")
		b.Prepare(ctx)
	}

	c.Start()
	b.log.Info("broadcast schedule armed",
		logx.String("prepare_at", b.cfg.PrepareAt),
		logx.String("broadcast_at", b.cfg.BroadcastAt),
		logx.Time("next_broadcast", civil.NextAt(b.now(), b.loc, bcHH, bcMM)),
		logx.String("tz", b.loc.String()))
	return nil
}

func (b *Broadcaster) Stop(ctx context.Context) {
	b.mu.Lock()
	c := b.c
	b.c = nil
	b.mu.Unlock()
	if c == nil {
		return
	}
	stopped := c.Stop()
	select {
	case <-stopped.Done():
	case <-ctx.Done():
	}
}

func (b *Broadcaster) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Broadcaster) adoptStoredRoster(ctx context.Context) {
	if b.store == nil {
		return
	}
	day, groups, err := b.store.LoadRoster(ctx)
	if err != nil || day == "" {
		return
	}
	if day != civil.DayKey(b.now(), b.loc) {
		return
	}
	entries := make([]Entry, 0, len(groups))
	for _, g := range groups {
		entries = append(entries, Entry{JID: chat.JID(g.JID), Name: g.Name})
	}
	b.mu.Lock()
	b.roster = Roster{DayKey: day, Entries: entries}
	b.state = StatePrepared
	b.mu.Unlock()
	b.log.Info("adopted persisted roster", logx.String("day", day), logx.Int("groups", len(entries)))
}

// Prepare snapshots today's roster. It is idempotent per civil day: a
// roster already computed for today is never recomputed.
func (b *Broadcaster) Prepare(ctx context.Context) {
	day := civil.DayKey(b.now(), b.loc)

	b.mu.Lock()
	if b.roster.DayKey == day {
		b.mu.Unlock()
		b.log.Debug("roster already prepared", logx.String("day", day))
		return
	}
	b.mu.Unlock()

	entries, fetchErr := b.fetchEntries(ctx)
	if fetchErr != nil {
		// Record an empty roster for the day: the broadcast pass becomes a
		// no-op instead of refetching in a loop.
		b.log.Error("roster fetch failed, recording empty roster", logx.String("day", day), logx.Err(fetchErr))
		entries = nil
	}

	b.mu.Lock()
	b.roster = Roster{DayKey: day, Entries: entries}
	b.state = StatePrepared
	b.mu.Unlock()

	b.persistRoster(ctx, day, entries)
	b.log.Info("roster prepared", logx.String("day", day), logx.Int("groups", len(entries)))
}

func (b *Broadcaster) fetchEntries(ctx context.Context) ([]Entry, error) {
	groups, err := b.tr.ListGroups(ctx)
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(groups))
	for jid, info := range groups {
		if !jid.IsGroup() {
			continue
		}
		entries = append(entries, Entry{JID: jid, Name: info.Name})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].JID < entries[j].JID })
	return entries, nil
}

func (b *Broadcaster) persistRoster(ctx context.Context, day string, entries []Entry) {
	if b.store == nil {
		return
	}
	records := make([]storage.GroupRecord, 0, len(entries))
	for _, e := range entries {
		records = append(records, storage.GroupRecord{JID: e.JID.String(), Name: e.Name})
	}
	if err := b.store.SaveRoster(ctx, day, records); err != nil {
		b.log.Warn("roster persist failed", logx.Err(err))
	}
}

// Broadcast walks today's frozen snapshot and sends the notice to every
// eligible group. When the stored roster is from another day (process was
// down at prepare time), it re-prepares on demand first.
func (b *Broadcaster) Broadcast(ctx context.Context) {
	day := civil.DayKey(b.now(), b.loc)

	b.mu.Lock()
	stale := b.roster.DayKey != day
	b.mu.Unlock()
	if stale {
		b.log.Info("roster missing or stale at broadcast time, preparing on demand", logx.String("day", day))
		b.Prepare(ctx)
	}

	b.mu.Lock()
	snapshot := append([]Entry(nil), b.roster.Entries...)
	b.state = StateBroadcasting
	b.mu.Unlock()

	run := uuid.NewString()
	log := b.log.With(logx.String("run", run), logx.String("day", day))
	log.Info("broadcast pass started", logx.Int("groups", len(snapshot)))

	sent := 0
	for i, e := range snapshot {
		if ctx.Err() != nil {
			break
		}
		if !e.JID.IsGroup() {
			continue
		}
		if !b.allow.Allows(e.JID) {
			log.Debug("group not whitelisted", logx.String("chat", e.JID.String()))
			continue
		}
		if b.ledger.Contains(e.JID, b.now()) {
			log.Debug("group already broadcast today", logx.String("chat", e.JID.String()))
			continue
		}

		if err := b.tr.SendText(ctx, e.JID, b.cfg.Notice); err != nil {
			// One attempt per group per pass; the failed group keeps its
			// ledger slot free in case another pass runs today.
			log.Warn("broadcast send failed", logx.String("chat", e.JID.String()), logx.Err(err))
		} else {
			b.ledger.Add(e.JID, b.now())
			sent++
		}

		if i < len(snapshot)-1 {
			b.sleep(ctx, b.pause())
		}
	}

	b.mu.Lock()
	b.state = StateIdle
	b.mu.Unlock()
	log.Info("broadcast pass finished", logx.Int("sent", sent))
}

func (b *Broadcaster) pause() time.Duration {
	min, max := b.cfg.PauseMin, b.cfg.PauseMax
	if max <= min {
		return min
	}
	return min + time.Duration(b.rng.Int63n(int64(max-min)+1))
}

// Groups returns today's name-annotated roster for the admin surface,
// refreshing it on demand when stale.
func (b *Broadcaster) Groups(ctx context.Context) []storage.GroupRecord {
	day := civil.DayKey(b.now(), b.loc)

	b.mu.Lock()
	stale := b.roster.DayKey != day
	b.mu.Unlock()
	if stale {
		b.Prepare(ctx)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]storage.GroupRecord, 0, len(b.roster.Entries))
	for _, e := range b.roster.Entries {
		out = append(out, storage.GroupRecord{JID: e.JID.String(), Name: e.Name})
	}
	return out
}

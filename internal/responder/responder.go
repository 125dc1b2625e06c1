// Package responder implements the time-windowed reply engine: it answers
// inbound messages with a canned notice when the business is closed or at
// lunch, at most once per chat per cooldown and once per group per day.
package responder

import (
	"context"
	"strings"
	"sync"
	"time"

	"offhoursbot/internal/chat"
	"offhoursbot/internal/hours"
	"offhoursbot/internal/transport"
	"offhoursbot/internal/whitelist"
	logx "offhoursbot/pkg/logx"
)

// LunchScope selects which chat kinds receive the lunch notice.
// The off-hours notice always applies to both kinds.
type LunchScope string

const (
	LunchGroupsOnly LunchScope = "groups"
	LunchAllChats   LunchScope = "all"
)

type Config struct {
	// Delay before replying, per chat kind. Groups get a longer pause to
	// look less like an instant machine reply.
	UserDelay  time.Duration
	GroupDelay time.Duration
	// LockMargin pads the in-flight lock past the delay to absorb
	// scheduling jitter.
	LockMargin time.Duration

	UserCooldown  time.Duration
	GroupCooldown time.Duration

	OffHoursNotice string
	LunchNotice    string
	LunchScope     LunchScope
}

func (c Config) withDefaults() Config {
	if c.UserDelay <= 0 {
		c.UserDelay = 10 * time.Second
	}
	if c.GroupDelay <= 0 {
		c.GroupDelay = 10 * time.Second
	}
	if c.LockMargin <= 0 {
		c.LockMargin = 500 * time.Millisecond
	}
	if c.UserCooldown <= 0 {
		c.UserCooldown = 10 * time.Second
	}
	if c.GroupCooldown <= 0 {
		c.GroupCooldown = 10 * time.Second
	}
	if c.LunchScope == "" {
		c.LunchScope = LunchGroupsOnly
	}
	return c
}

// Responder drives the per-message workflow. All shared state lives in the
// injected components so tests can build a fresh world per case.
type Responder struct {
	cfg        Config
	classifier *hours.Classifier
	dedupe     *DedupeCache
	limiter    *RateLimiter
	ledger     *DayLedger
	allow      *whitelist.List
	sender     transport.Sender
	log        logx.Logger

	// Test seams. Real time in production.
	now   func() time.Time
	sleep func(time.Duration)

	wg sync.WaitGroup
}

func New(cfg Config, classifier *hours.Classifier, dedupe *DedupeCache, limiter *RateLimiter,
	ledger *DayLedger, allow *whitelist.List, sender transport.Sender, log logx.Logger) *Responder {
	return &Responder{
		cfg:        cfg.withDefaults(),
		classifier: classifier,
		dedupe:     dedupe,
		limiter:    limiter,
		ledger:     ledger,
		allow:      allow,
		sender:     sender,
		log:        log,
		now:        time.Now,
		sleep:      time.Sleep,
	}
}

// HandleBatch processes an inbound upsert. Only the first record of a batch
// is considered; the rest are transport echoes.
func (r *Responder) HandleBatch(ctx context.Context, msgs []transport.Message) {
	if len(msgs) == 0 {
		return
	}
	r.Handle(ctx, msgs[0])
}

// Handle runs the synchronous checks for one message and, when they all
// pass, spawns the delayed-send workflow. It never blocks on the delay:
// other chats keep being processed while this chat's reply is pending.
func (r *Responder) Handle(ctx context.Context, m transport.Message) {
	// Own messages, broadcast lists and status updates are never answered.
	if m.FromMe || (!m.Chat.IsGroup() && !m.Chat.IsUser()) {
		return
	}

	// The network redelivers recent messages; act on each id once.
	if r.dedupe.Record(m.ID) {
		return
	}

	if strings.TrimSpace(m.Text()) == "" {
		return
	}

	isGroup := m.Chat.IsGroup()
	if isGroup && !r.allow.Allows(m.Chat) {
		r.log.Debug("group not whitelisted", logx.String("chat", m.Chat.String()))
		return
	}

	now := r.now()
	lunchNow := r.classifier.IsLunch(now)
	offNow := r.classifier.IsOffHours(now)
	if !lunchNow && !offNow {
		return
	}

	// One reactive reply per group per civil day.
	if isGroup && r.ledger.Contains(m.Chat, now) {
		r.log.Debug("group already answered today", logx.String("chat", m.Chat.String()))
		return
	}

	delay := r.cfg.UserDelay
	cooldown := r.cfg.UserCooldown
	if isGroup {
		delay = r.cfg.GroupDelay
		cooldown = r.cfg.GroupCooldown
	}

	outcome := r.limiter.Reserve(m.Chat, now, now.Add(delay+r.cfg.LockMargin))
	if outcome != Reserved {
		r.log.Debug("reply suppressed",
			logx.String("chat", m.Chat.String()),
			logx.String("reason", outcome.String()))
		return
	}

	r.wg.Add(1)
	go r.finishWorkflow(ctx, m.Chat, isGroup, delay, cooldown)
}

// finishWorkflow holds the chat's in-flight lock across the delay, then
// sends the notice chosen from the classifier state at send time (not at
// arrival: if the window changed during the delay, the fresher state wins).
func (r *Responder) finishWorkflow(ctx context.Context, to chat.JID, isGroup bool, delay, cooldown time.Duration) {
	defer r.wg.Done()
	defer r.limiter.Release(to)

	r.sleep(delay)

	now := r.now()
	text, ok := r.pickNotice(now, isGroup)
	if !ok {
		r.log.Debug("window closed during delay, nothing to send", logx.String("chat", to.String()))
		return
	}

	if err := r.sender.SendText(ctx, to, text); err != nil {
		// Single best-effort attempt. The lock release in the deferred
		// call keeps the chat usable for later messages.
		r.log.Warn("reply send failed", logx.String("chat", to.String()), logx.Err(err))
		return
	}

	sentAt := r.now()
	r.limiter.MarkSent(to, sentAt.Add(cooldown))
	if isGroup {
		r.ledger.Add(to, sentAt)
	}
	r.log.Info("notice sent",
		logx.String("chat", to.String()),
		logx.Bool("group", isGroup))
}

// pickNotice selects the message for the current instant. Lunch wins over
// off-hours when both hold and the chat kind is in the lunch scope.
func (r *Responder) pickNotice(now time.Time, isGroup bool) (string, bool) {
	lunch := r.classifier.IsLunch(now)
	off := r.classifier.IsOffHours(now)

	lunchApplies := lunch && (r.cfg.LunchScope == LunchAllChats || isGroup)
	switch {
	case lunchApplies:
		return r.cfg.LunchNotice, true
	case off:
		return r.cfg.OffHoursNotice, true
	default:
		return "", false
	}
}

// Drain waits for in-flight delayed sends, bounded by ctx. In-flight work
// that outlives ctx is abandoned (it is not persisted anywhere).
func (r *Responder) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

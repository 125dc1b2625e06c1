// Package app assembles the bot: config, logging, the gateway transport,
// the reactive responder, the daily broadcaster, the admin surface, and
// the shutdown sequence.
package app

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"offhoursbot/internal/admin"
	"offhoursbot/internal/broadcast"
	"offhoursbot/internal/config"
	"offhoursbot/internal/hours"
	"offhoursbot/internal/responder"
	rtsup "offhoursbot/internal/runtime/supervisor"
	"offhoursbot/internal/storage"
	"offhoursbot/internal/transport"
	"offhoursbot/internal/transport/gateway"
	"offhoursbot/internal/whitelist"
	logx "offhoursbot/pkg/logx"
)

type App struct {
	cfgPath string

	cfgm *config.ConfigManager
	sup  *rtsup.Supervisor

	log  logx.Logger
	logs *logx.Service

	loc   *time.Location
	store storage.Store
	allow *whitelist.List

	adapter *gateway.Adapter
	resp    *responder.Responder
	bcast   *broadcast.Broadcaster
	admin   *admin.Service

	events  chan transport.Event
	armOnce sync.Once

	// sdNotify is a seam over systemd readiness notification.
	sdNotify func(state string)
}

func NewApp(cfgPath string) (*App, error) {
	cfgm := config.NewConfigManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	logSvc, log := logx.New(mapLoggingConfig(cfg))
	log = log.With(logx.String("comp", "app"))

	tz := strings.TrimSpace(cfg.Timezone)
	if tz == "" {
		tz = config.DefaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("timezone: %w", err)
	}

	win := mapHoursWindows(cfg)
	if err := win.Validate(); err != nil {
		return nil, err
	}
	classifier := hours.NewClassifier(loc, win)

	gwCfg, err := mapGatewayConfig(cfg)
	if err != nil {
		return nil, err
	}
	adapter, err := gateway.New(gwCfg, log.With(logx.String("comp", "gateway")))
	if err != nil {
		return nil, err
	}

	// Storage (optional)
	var store storage.Store
	if sc, enabled, err := mapStorageConfig(cfg); err != nil {
		return nil, err
	} else if enabled {
		st, err := storage.Open(sc, log.With(logx.String("comp", "storage")))
		if err != nil {
			return nil, err
		}
		store = st
		log.Info("storage enabled", logx.String("driver", sc.Driver))
	}

	// Whitelist: a persisted list wins over the config seed.
	allow := whitelist.New()
	seed := cfg.Whitelist
	if store != nil {
		if persisted, err := store.LoadWhitelist(context.Background()); err != nil {
			log.Warn("whitelist load failed, using config seed", logx.Err(err))
		} else if len(persisted) > 0 {
			seed = persisted
		}
	}
	if accepted := allow.Replace(seed); len(accepted) > 0 {
		log.Info("whitelist active", logx.Int("groups", len(accepted)))
	}

	respCfg, err := mapResponderConfig(cfg)
	if err != nil {
		return nil, err
	}
	var dedupe *responder.DedupeCache
	if d := cfg.Dedupe; d != nil {
		dedupe = responder.NewDedupeCache(d.HighWater, d.KeepTail)
	} else {
		dedupe = responder.NewDedupeCache(0, 0)
	}
	resp := responder.New(respCfg, classifier, dedupe, responder.NewRateLimiter(),
		responder.NewDayLedger(loc), allow, adapter, log.With(logx.String("comp", "responder")))

	bcCfg, err := mapBroadcastConfig(cfg)
	if err != nil {
		return nil, err
	}
	bcast := broadcast.New(bcCfg, loc, adapter, allow, responder.NewDayLedger(loc), store,
		log.With(logx.String("comp", "broadcast")))

	adminCfg, err := mapAdminConfig(cfg)
	if err != nil {
		return nil, err
	}
	adminSvc := admin.New(adminCfg, bcast, allow, store, adapter, adapter.WebhookHandler(),
		log.With(logx.String("comp", "admin")))

	return &App{
		cfgPath:  cfgPath,
		cfgm:     cfgm,
		log:      log,
		logs:     logSvc,
		loc:      loc,
		store:    store,
		allow:    allow,
		adapter:  adapter,
		resp:     resp,
		bcast:    bcast,
		admin:    adminSvc,
		events:   make(chan transport.Event, 256),
		sdNotify: func(state string) { _, _ = daemon.SdNotify(false, state) },
	}, nil
}

// Done is closed when the app supervisor context is canceled (fatal error or Stop()).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor (if any).
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = rtsup.New(ctx, rtsup.WithLogger(a.log), rtsup.WithCancelOnError(true))

	// Transactional config reload: validate before commit/publish.
	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		return config.Validate(cfg)
	})

	if err := a.adapter.Start(a.sup.Context(), a.events); err != nil {
		return err
	}
	a.admin.Start(a.sup.Context())

	a.sup.Go0("events.dispatch", a.dispatchLoop)
	a.startConfigReload()
	a.sup.Go("config.watch", func(c context.Context) error {
		return a.cfgm.Watch(c)
	})
	a.startWatchdog()

	a.sdNotify(daemon.SdNotifyReady)
	a.log.Info("app started", logx.String("tz", a.loc.String()))
	return nil
}

// dispatchLoop fans inbound gateway events out to the responder and the
// session lifecycle handling. The broadcast schedule is armed on the first
// session open so its restart recovery sees a live transport.
func (a *App) dispatchLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-a.events:
			switch ev.Kind {
			case transport.EventMessages:
				a.resp.HandleBatch(ctx, ev.Messages)
			case transport.EventConnection:
				a.handleConnection(ctx, ev.Connection)
			}
		}
	}
}

func (a *App) handleConnection(ctx context.Context, cu *transport.ConnectionUpdate) {
	if cu == nil {
		return
	}
	switch {
	case cu.Open:
		a.log.Info("session open")
		a.armOnce.Do(func() {
			if err := a.bcast.Start(ctx); err != nil {
				a.log.Error("broadcast schedule failed to arm", logx.Err(err))
			}
		})
	case cu.LoggedOut:
		// Permanent: the account was unlinked. Reconnecting would loop on
		// an auth error; a human has to re-pair via /qr.
		a.log.Error("session logged out, re-pairing required")
	default:
		a.log.Warn("session closed, asking gateway to reconnect")
		if err := a.adapter.Reconnect(ctx); err != nil {
			a.log.Warn("reconnect request failed", logx.Err(err))
		}
	}
}

func (a *App) startConfigReload() {
	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		lastApplied := a.cfgm.Get()
		for {
			select {
			case <-c.Done():
				return
			case newCfg, ok := <-sub:
				if !ok {
					return
				}
				// Coalesce bursts: keep only the latest config.
				for {
					select {
					case newer := <-sub:
						if newer != nil {
							newCfg = newer
						}
					default:
						goto APPLY
					}
				}
			APPLY:
				sections, attrs := config.SummarizeConfigChange(lastApplied, newCfg)
				lastApplied = newCfg
				if len(sections) == 0 {
					a.log.Debug("config reload received, but no effective changes detected")
					continue
				}

				// Logging applies live; everything else is wired at
				// construction time and needs a restart.
				for _, s := range sections {
					if s == "logging" {
						a.logs.Apply(mapLoggingConfig(newCfg))
						continue
					}
					a.log.Warn("config section changed; restart required for changes to take effect",
						logx.String("section", s))
				}

				fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
				a.log.Info("config reloaded", fields...)
			}
		}
	})
}

// startWatchdog services the systemd watchdog when one is armed for this
// unit. Without systemd (or WatchdogSec unset) it is a no-op.
func (a *App) startWatchdog() {
	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil || interval <= 0 {
		return
	}
	a.sup.Go0("systemd.watchdog", func(c context.Context) {
		ticker := time.NewTicker(interval / 2)
		defer ticker.Stop()
		for {
			select {
			case <-c.Done():
				return
			case <-ticker.C:
				a.sdNotify(daemon.SdNotifyWatchdog)
			}
		}
	})
}

func (a *App) Stop(ctx context.Context) error {
	if a.sup == nil {
		return nil
	}
	a.sdNotify(daemon.SdNotifyStopping)
	a.log.Info("stopping")

	// Cancel the run context first so background loops start unwinding.
	a.sup.Cancel()

	// Run each shutdown step with an upper bound so one component can't
	// stall the whole stop.
	step := func(name string, max time.Duration, fn func(context.Context) error) {
		start := time.Now()

		stepCtx := ctx
		var cancel context.CancelFunc
		if max > 0 {
			// Respect the caller's deadline; never extend it.
			if dl, ok := ctx.Deadline(); ok {
				if rem := time.Until(dl); rem < max {
					max = rem
				}
			}
			if max > 0 {
				stepCtx, cancel = context.WithTimeout(ctx, max)
				defer cancel()
			}
		}

		done := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- fmt.Errorf("panic in stop step %s: %v", name, r)
				}
			}()
			done <- fn(stepCtx)
		}()

		select {
		case err := <-done:
			if err != nil {
				a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
			}
			a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
		case <-stepCtx.Done():
			a.log.Warn("stop step deadline reached (continuing)",
				logx.String("name", name),
				logx.Duration("elapsed", time.Since(start)))
		}
	}

	step("broadcast", 2*time.Second, func(c context.Context) error { a.bcast.Stop(c); return nil })
	step("responder.drain", 3*time.Second, func(c context.Context) error { return a.resp.Drain(c) })
	step("admin", 2*time.Second, func(c context.Context) error { a.admin.Stop(c); return nil })
	step("adapter", 2*time.Second, func(c context.Context) error { return a.adapter.Stop(c) })
	step("storage", 1*time.Second, func(c context.Context) error {
		if a.store != nil {
			return a.store.Close()
		}
		return nil
	})

	// Finally, wait for supervised goroutines (config watch/reload, dispatcher).
	step("supervisor", 2*time.Second, func(c context.Context) error { return a.sup.Wait(c) })

	a.log.Info("stopped")
	if a.logs != nil {
		_ = a.logs.Close()
	}
	return nil
}

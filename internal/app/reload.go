package app

import (
	"context"
	"slices"
	"strings"
	"time"

	"pawpal/internal/config"
	"pawpal/internal/eventbus"
	logx "pawpal/pkg/logx"
)

// reloadLoop applies committed config changes to the live services.
func (a *App) reloadLoop(ctx context.Context, sub <-chan *config.Config) {
	last := a.cfgm.Get()
	for {
		select {
		case <-ctx.Done():
			return
		case cfg, ok := <-sub:
			if !ok {
				return
			}
			// Coalesce bursts; only the newest config matters.
		drain:
			for {
				select {
				case newer := <-sub:
					if newer != nil {
						cfg = newer
					}
				default:
					break drain
				}
			}
			if cfg == nil {
				continue
			}
			a.applyConfig(ctx, last, cfg)
			last = cfg
		}
	}
}

func (a *App) applyConfig(ctx context.Context, old, cfg *config.Config) {
	sections, attrs := config.SummarizeChange(old, cfg)
	if len(sections) == 0 {
		a.log.Info("config reloaded (no changes)")
		return
	}
	fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
	a.log.Debug("config change summary", fields...)

	for _, s := range []string{"storage", "metrics"} {
		if slices.Contains(sections, s) {
			a.log.Warn(s + " config changed; restart required for changes to take effect")
		}
	}
	if slices.Contains(sections, "telegram") && tokenChanged(old, cfg) {
		a.log.Warn("telegram token changed; restart required for changes to take effect")
	}

	if a.logs != nil {
		lc := mapLogConfig(cfg)
		lc.Out = a.opts.LogOut
		a.logs.Apply(lc)
	}

	if pc, err := mapPlannerConfig(cfg); err != nil {
		a.log.Warn("invalid planner config; keeping previous", logx.Err(err))
	} else {
		a.planner.Apply(pc)
	}

	if a.notif != nil {
		nc := mapNotifierConfig(cfg)
		was := a.notif.Enabled()
		a.notif.Apply(nc)
		switch {
		case was && !nc.Enabled:
			a.log.Info("notifier disabled via config")
			stopCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
			a.notif.Stop(stopCtx)
			cancel()
		case !was && nc.Enabled:
			a.log.Info("notifier enabled via config")
			a.notif.Start(ctx)
		}
	}

	if a.daily != nil {
		dc := mapDailyConfig(cfg)
		_, running := a.daily.Next()
		a.daily.Apply(dc)
		if !running && dc.Enabled {
			if err := a.daily.Start(ctx); err != nil {
				a.log.Warn("daily push start failed", logx.Err(err))
			}
		}
	}

	a.bus.Publish(eventbus.Event{Type: eventbus.TypeConfigChanged, Time: time.Now(), Data: sections})
	a.log.Info("config reloaded", fields...)
}

func tokenChanged(old, cfg *config.Config) bool {
	if old == nil || cfg == nil {
		return true
	}
	return strings.TrimSpace(old.Telegram.Token) != strings.TrimSpace(cfg.Telegram.Token)
}

// Package app wires configuration, storage, planning and the chat surface
// into a running process.
package app

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"pawpal/internal/config"
	"pawpal/internal/eventbus"
	"pawpal/internal/notifier"
	"pawpal/internal/observability/metrics"
	"pawpal/internal/observability/tracing"
	rtsup "pawpal/internal/runtime/supervisor"
	"pawpal/internal/services/daily"
	"pawpal/internal/services/planning"
	"pawpal/internal/storage"
	"pawpal/internal/transport"
	"pawpal/internal/transport/telegram"
	logx "pawpal/pkg/logx"
)

type Options struct {
	// Serve builds the long-running parts: notifier, chat adapter, command
	// router and the daily push.
	Serve bool
	// LogOut replaces stdout for console logs and metric snapshots.
	LogOut io.Writer
}

type App struct {
	opts Options
	cfgm *config.Manager
	sup  *rtsup.Supervisor

	log   logx.Logger
	logs  *logx.Service
	bus   eventbus.Bus
	store storage.Store

	metrics     *metrics.Recorder
	metricsStop func(context.Context) error
	traceStop   func(context.Context) error

	planner *planning.Service
	notif   *notifier.Service
	daily   *daily.Service
	adapter transport.Adapter
	router  *Router

	updates chan transport.Message
}

func New(cfgPath string, opts Options) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", cfgPath, err)
	}

	logCfg := mapLogConfig(cfg)
	logCfg.Out = opts.LogOut
	logSvc, log := logx.New(logCfg)
	cfgm.SetLogger(log.With(logx.String("comp", "config")))
	a := &App{opts: opts, cfgm: cfgm, logs: logSvc, log: log.With(logx.String("comp", "app")), bus: eventbus.New()}

	fail := func(err error) (*App, error) {
		a.closeResources(context.Background())
		return nil, err
	}

	sc, enabled, err := mapStorageConfig(cfg)
	if err != nil {
		return fail(err)
	}
	if !enabled {
		return fail(fmt.Errorf("storage.driver is required: %w", storage.ErrDisabled))
	}
	if a.store, err = storage.Open(sc, log); err != nil {
		return fail(fmt.Errorf("open storage: %w", err))
	}

	mc, err := mapMetricsConfig(cfg)
	if err != nil {
		return fail(err)
	}
	mc.Out = opts.LogOut
	if a.metrics, a.metricsStop, err = metrics.Setup(mc); err != nil {
		return fail(fmt.Errorf("metrics: %w", err))
	}

	tracer, traceStop, err := tracing.Setup(tracing.Config{Enabled: cfg.Metrics.Tracing, Out: opts.LogOut})
	if err != nil {
		return fail(fmt.Errorf("tracing: %w", err))
	}
	a.traceStop = traceStop

	pc, err := mapPlannerConfig(cfg)
	if err != nil {
		return fail(err)
	}
	a.planner, err = planning.New(pc, planning.Deps{Store: a.store, Bus: a.bus, Metrics: a.metrics, Tracer: tracer, Log: log})
	if err != nil {
		return fail(err)
	}

	if !opts.Serve {
		return a, nil
	}

	if tok := strings.TrimSpace(cfg.Telegram.Token); tok != "" {
		poll, err := cfg.Telegram.PollTimeout.Value("telegram.poll_timeout", 10*time.Second)
		if err != nil {
			return fail(err)
		}
		ad, err := telegram.New(telegram.Config{Token: tok, PollTimeout: poll}, log)
		if err != nil {
			return fail(fmt.Errorf("telegram: %w", err))
		}
		a.adapter = ad
	} else {
		a.log.Warn("telegram.token is empty; chat commands and daily pushes are disabled")
	}

	var (
		sender transport.Sender
		push   daily.Notifier
	)
	if a.adapter != nil {
		sender = a.adapter
		a.notif = notifier.New(mapNotifierConfig(cfg), sender, log, a.bus, a.store)
		push = a.notif
	}
	a.daily = daily.New(mapDailyConfig(cfg), a.planner, push, log)
	a.router = NewRouter(log, sender, func(chatID int64) (string, bool) {
		return cfgm.Get().Telegram.OwnerForChat(chatID)
	})
	a.router.Register(plannerCommands(a.planner, a.router)...)
	a.updates = make(chan transport.Message, 256)
	return a, nil
}

// Planner exposes the planning service for one-shot commands.
func (a *App) Planner() *planning.Service { return a.planner }

// Config is the config currently in effect.
func (a *App) Config() *config.Config { return a.cfgm.Get() }

// Done is closed when the app supervisor context ends.
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error seen by the supervisor.
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	if !a.opts.Serve {
		return fmt.Errorf("app was built without Serve")
	}
	a.sup = rtsup.New(ctx, rtsup.WithLogger(a.log), rtsup.WithCancelOnError(true))
	runCtx := a.sup.Context()

	// Storage cannot move while running.
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		if _, _, err := mapStorageConfig(cfg); err != nil {
			return err
		}
		if _, err := mapPlannerConfig(cfg); err != nil {
			return err
		}
		_, err := mapMetricsConfig(cfg)
		return err
	})

	if a.adapter != nil {
		if err := a.adapter.Start(runCtx, a.updates); err != nil {
			return err
		}
		if mu, ok := a.adapter.(transport.CommandMenuUpdater); ok {
			if err := mu.UpdateMenuCommands(runCtx, a.router.MenuCommands()); err != nil {
				a.log.Warn("command menu update failed", logx.Err(err))
			}
		}
	}

	if a.notif != nil && a.notif.Enabled() {
		a.notif.Start(runCtx)
	}
	if err := a.daily.Start(runCtx); err != nil {
		return err
	}

	a.sup.Go0("metrics.consume", func(c context.Context) { a.metrics.Consume(c, a.bus) })
	a.sup.Go("commands.dispatch", func(c context.Context) error {
		return a.router.DispatchLoop(c, a.updates)
	})

	events, unsub := a.bus.Subscribe(128)
	a.sup.Go0("eventbus.log", func(c context.Context) {
		defer unsub()
		for {
			select {
			case <-c.Done():
				return
			case e, ok := <-events:
				if !ok {
					return
				}
				a.log.Debug("event", logx.String("type", e.Type), logx.Time("time", e.Time))
			}
		}
	})

	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		a.reloadLoop(c, sub)
	})
	a.sup.Go("config.watch", func(c context.Context) error {
		return a.cfgm.Watch(c)
	})

	fields := []logx.Field{logx.Bool("telegram", a.adapter != nil), logx.Bool("daily", a.daily.Enabled())}
	if next, ok := a.daily.Next(); ok {
		fields = append(fields, logx.Time("next_push", next))
	}
	a.log.Info("app started", fields...)
	return nil
}

// Stop shuts components down in dependency order. Each step is bounded so
// one stuck component cannot hold the rest.
func (a *App) Stop(ctx context.Context, reason StopReason) error {
	a.log.Info("stopping", logx.String("reason", string(reason)))
	if a.sup != nil {
		a.sup.Cancel()
	}

	step := func(name string, max time.Duration, fn func(context.Context) error) {
		start := time.Now()
		if dl, ok := ctx.Deadline(); ok {
			if rem := time.Until(dl); rem < max {
				max = rem
			}
		}
		if max <= 0 {
			a.log.Warn("stop step skipped (deadline)", logx.String("name", name))
			return
		}
		stepCtx, cancel := context.WithTimeout(ctx, max)
		defer cancel()

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
			a.log.Warn("stop step deadline reached (continuing)", logx.String("name", name), logx.Duration("elapsed", time.Since(start)))
		}
	}

	if a.daily != nil {
		step("daily", 2*time.Second, func(c context.Context) error { a.daily.Stop(c); return nil })
	}
	if a.notif != nil {
		step("notifier", 2*time.Second, func(c context.Context) error { a.notif.Stop(c); return nil })
	}
	if a.adapter != nil {
		step("adapter", 2*time.Second, func(c context.Context) error { return a.adapter.Stop(c) })
	}
	if a.sup != nil {
		step("supervisor", 2*time.Second, func(c context.Context) error { return a.sup.Wait(c) })
	}
	a.log.Info("stopped")
	a.closeResources(ctx)
	return nil
}

// Close releases what New opened; use it for one-shot commands.
func (a *App) Close() error {
	a.closeResources(context.Background())
	return nil
}

func (a *App) closeResources(ctx context.Context) {
	if a.traceStop != nil {
		sctx, cancel := context.WithTimeout(ctx, time.Second)
		if err := a.traceStop(sctx); err != nil {
			a.log.Debug("tracing shutdown", logx.Err(err))
		}
		cancel()
		a.traceStop = nil
	}
	if a.metricsStop != nil {
		sctx, cancel := context.WithTimeout(ctx, time.Second)
		if err := a.metricsStop(sctx); err != nil {
			a.log.Debug("metrics shutdown", logx.Err(err))
		}
		cancel()
		a.metricsStop = nil
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn("storage close failed", logx.Err(err))
		}
		a.store = nil
	}
	if a.logs != nil {
		_ = a.logs.Close()
		a.logs = nil
	}
}

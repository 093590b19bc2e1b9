// Package daily pushes each configured owner's plan once a day on a cron
// schedule.
package daily

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"pawpal/internal/care"
	"pawpal/internal/config"
	"pawpal/internal/services/planning"
	"pawpal/internal/transport"
	logx "pawpal/pkg/logx"
)

// Channel is the notifier dedup namespace for daily pushes.
const Channel = "daily"

// DefaultSpec runs when the configured spec is empty.
const DefaultSpec = "0 7 * * *"

type Config struct {
	Enabled  bool
	Spec     string
	Timezone string
	Owners   []string
	// Chats maps owner id to the chat the plan goes to.
	Chats map[string]int64
}

type Planner interface {
	Plan(ctx context.Context, ownerID string, day care.Date) (*planning.Result, error)
	Today() care.Date
}

type Notifier interface {
	Notify(ctx context.Context, n transport.Notification) error
}

type Service struct {
	mu  sync.Mutex
	cfg Config

	planner  Planner
	notifier Notifier
	log      logx.Logger

	c      *cron.Cron
	runCtx context.Context
	cancel context.CancelFunc
}

func New(cfg Config, planner Planner, notifier Notifier, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		cfg:      cfg,
		planner:  planner,
		notifier: notifier,
		log:      log.With(logx.String("comp", "daily")),
	}
}

// Enabled reports the current config flag.
func (s *Service) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.Enabled
}

// Apply swaps the config. A running schedule restarts when its timing
// changed or the service got disabled.
func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	old := s.cfg
	s.cfg = cfg
	running := s.c != nil
	ctx := s.runCtx
	s.mu.Unlock()

	if !running {
		return
	}
	if old.Spec == cfg.Spec && old.Timezone == cfg.Timezone && cfg.Enabled {
		return
	}
	s.Stop(context.Background())
	if cfg.Enabled && ctx != nil {
		if err := s.Start(ctx); err != nil {
			s.log.Warn("daily restart failed", logx.Err(err))
		}
	}
}

// Start registers the cron job. It is a no-op when disabled or running.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c != nil || !s.cfg.Enabled {
		return nil
	}
	spec := strings.TrimSpace(s.cfg.Spec)
	if spec == "" {
		spec = DefaultSpec
	}
	loc, err := loadLocation(s.cfg.Timezone)
	if err != nil {
		return err
	}
	c := cron.New(cron.WithParser(config.CronParser), cron.WithLocation(loc))
	runCtx, cancel := context.WithCancel(ctx)
	if _, err := c.AddFunc(spec, func() { s.RunOnce(runCtx) }); err != nil {
		cancel()
		return fmt.Errorf("daily spec %q: %w", spec, err)
	}
	c.Start()
	s.c, s.runCtx, s.cancel = c, ctx, cancel
	s.log.Info("daily push scheduled", logx.String("spec", spec), logx.String("tz", loc.String()), logx.Int("owners", len(s.cfg.Owners)))
	return nil
}

// Stop removes the schedule and waits for a running push, bounded by ctx.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	c, cancel := s.c, s.cancel
	s.c, s.cancel, s.runCtx = nil, nil, nil
	s.mu.Unlock()
	if c == nil {
		return
	}
	cancel()
	select {
	case <-c.Stop().Done():
	case <-ctx.Done():
	}
	s.log.Info("daily push stopped")
}

// Next reports the next scheduled run, if any.
func (s *Service) Next() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c == nil {
		return time.Time{}, false
	}
	entries := s.c.Entries()
	if len(entries) == 0 {
		return time.Time{}, false
	}
	return entries[0].Next, true
}

// RunOnce plans today for every configured owner and queues the pushes.
// Owners fail independently.
func (s *Service) RunOnce(ctx context.Context) error {
	s.mu.Lock()
	cfg := s.cfg
	s.mu.Unlock()

	ctx = planning.WithActor(ctx, "daily")
	day := s.planner.Today()
	var errs []error
	for _, owner := range cfg.Owners {
		if err := s.push(ctx, cfg, owner, day); err != nil {
			s.log.Warn("daily push failed", logx.String("owner", owner), logx.String("date", day.String()), logx.Err(err))
			errs = append(errs, fmt.Errorf("%s: %w", owner, err))
		}
	}
	return errors.Join(errs...)
}

func (s *Service) push(ctx context.Context, cfg Config, owner string, day care.Date) error {
	res, err := s.planner.Plan(ctx, owner, day)
	if err != nil {
		return err
	}
	chat, ok := cfg.Chats[owner]
	if !ok || s.notifier == nil {
		s.log.Debug("plan generated without push target", logx.String("owner", owner))
		return nil
	}
	return s.notifier.Notify(ctx, transport.Notification{
		Channel: Channel,
		Key:     owner + ":" + day.String(),
		Target:  transport.ChatTarget{ChatID: chat},
		Text:    planning.Render(res),
	})
}

func loadLocation(name string) (*time.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" || strings.EqualFold(name, "local") {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("daily timezone %q: %w", name, err)
	}
	return loc, nil
}

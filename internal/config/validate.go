package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"pawpal/internal/care"
	logx "pawpal/pkg/logx"
)

// CronParser is the parser daily specs are checked and run with. It takes
// 5-field and 6-field specs as well as descriptors like @daily.
var CronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Validate reports every problem in cfg at once.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	var errs []error
	add := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	if !logx.ValidLevel(cfg.Logging.Level) {
		add(fmt.Errorf("logging.level: unknown level %q", cfg.Logging.Level))
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Storage.Driver)) {
	case "", "none", "file", "sqlite", "sqlite3":
	case "postgres", "postgresql":
		if strings.TrimSpace(cfg.Storage.DSN) == "" {
			add(errors.New("storage.dsn: required for postgres"))
		}
	default:
		add(fmt.Errorf("storage.driver: unknown driver %q", cfg.Storage.Driver))
	}
	_, err := cfg.Storage.BusyTimeout.Value("storage.busy_timeout", 0)
	add(err)

	if w := strings.TrimSpace(cfg.Planner.DefaultWindow); w != "" {
		if _, err := care.ParseWindow(w); err != nil {
			add(fmt.Errorf("planner.default_window: %w", err))
		}
	}
	if tz := strings.TrimSpace(cfg.Planner.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			add(fmt.Errorf("planner.timezone: %w", err))
		}
	}

	// An empty spec falls back to the daily service default.
	if spec := strings.TrimSpace(cfg.Daily.Spec); cfg.Daily.Enabled && spec != "" {
		if _, err := CronParser.Parse(spec); err != nil {
			add(fmt.Errorf("daily.spec: %w", err))
		}
	}

	if n := cfg.Notifier; n != nil {
		if n.Workers < 0 || n.QueueSize < 0 || n.RatePerSec < 0 {
			add(errors.New("notifier: workers, queue_size and rate_per_sec must be >= 0"))
		}
	}

	_, err = cfg.Telegram.PollTimeout.Value("telegram.poll_timeout", 0)
	add(err)
	_, err = cfg.Metrics.Interval.Value("metrics.interval", 0)
	add(err)

	return errors.Join(errs...)
}

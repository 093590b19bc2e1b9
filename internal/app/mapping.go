package app

import (
	"fmt"
	"strings"
	"time"

	"pawpal/internal/care"
	"pawpal/internal/config"
	"pawpal/internal/notifier"
	"pawpal/internal/observability/metrics"
	"pawpal/internal/services/daily"
	"pawpal/internal/services/planning"
	"pawpal/internal/storage"
	logx "pawpal/pkg/logx"
)

func mapLogConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	}
}

func mapStorageConfig(cfg *config.Config) (storage.Config, bool, error) {
	sc := cfg.Storage
	driver := strings.ToLower(strings.TrimSpace(sc.Driver))
	if driver == "" || driver == "none" {
		return storage.Config{}, false, nil
	}
	path := strings.TrimSpace(sc.Path)
	switch driver {
	case "file":
		if path == "" {
			path = "./pawpal_data"
		}
		return storage.Config{Driver: driver, Path: path}, true, nil
	case "sqlite", "sqlite3":
		if path == "" {
			return storage.Config{}, false, fmt.Errorf("storage.path is required when storage.driver=sqlite")
		}
		busy, err := sc.BusyTimeout.Value("storage.busy_timeout", time.Second)
		if err != nil {
			return storage.Config{}, false, err
		}
		return storage.Config{Driver: driver, Path: path, BusyTimeout: busy}, true, nil
	case "postgres", "postgresql":
		return storage.Config{Driver: driver, DSN: strings.TrimSpace(sc.DSN)}, true, nil
	default:
		return storage.Config{}, false, fmt.Errorf("unknown storage.driver: %s", sc.Driver)
	}
}

func mapPlannerConfig(cfg *config.Config) (planning.Config, error) {
	out := planning.Config{}
	if raw := strings.TrimSpace(cfg.Planner.DefaultWindow); raw != "" {
		w, err := care.ParseWindow(raw)
		if err != nil {
			return out, fmt.Errorf("planner.default_window: %w", err)
		}
		out.DefaultWindow = w
	}
	loc, err := loadLocation(cfg.Planner.Timezone)
	if err != nil {
		return out, fmt.Errorf("planner.timezone: %w", err)
	}
	out.Location = loc
	return out, nil
}

func mapDailyConfig(cfg *config.Config) daily.Config {
	chats := make(map[string]int64, len(cfg.Telegram.Chats))
	for k, v := range cfg.Telegram.Chats {
		chats[k] = v
	}
	return daily.Config{
		Enabled:  cfg.Daily.Enabled,
		Spec:     cfg.Daily.Spec,
		Timezone: cfg.Planner.Timezone,
		Owners:   append([]string(nil), cfg.Daily.Owners...),
		Chats:    chats,
	}
}

func mapNotifierConfig(cfg *config.Config) notifier.Config {
	nc := cfg.NotifierOrDefault()
	return notifier.Config{
		Enabled:    nc.Enabled,
		Workers:    nc.Workers,
		QueueSize:  nc.QueueSize,
		RatePerSec: nc.RatePerSec,
		RetryMax:   3,
		// One push per owner and day, even across restarts.
		DedupWindow: 24 * time.Hour,
	}
}

func mapMetricsConfig(cfg *config.Config) (metrics.Config, error) {
	interval, err := cfg.Metrics.Interval.Value("metrics.interval", time.Minute)
	if err != nil {
		return metrics.Config{}, err
	}
	return metrics.Config{Enabled: cfg.Metrics.Enabled, Interval: interval}, nil
}

func loadLocation(name string) (*time.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" || strings.EqualFold(name, "local") {
		return time.Local, nil
	}
	return time.LoadLocation(name)
}

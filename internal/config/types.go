package config

// Config is the on-disk configuration (JSON, or YAML by file extension).
// Durations are Go duration strings ("250ms", "10s", "1m").
type Config struct {
	Logging  LoggingConfig   `json:"logging"`
	Storage  StorageConfig   `json:"storage"`
	Planner  PlannerConfig   `json:"planner"`
	Daily    DailyConfig     `json:"daily"`
	Notifier *NotifierConfig `json:"notifier,omitempty"`
	Telegram TelegramConfig  `json:"telegram"`
	Metrics  MetricsConfig   `json:"metrics"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// StorageConfig selects the persistence driver.
//
//	"storage": { "driver": "file", "path": "./pawpal_data" }
//	"storage": { "driver": "sqlite", "path": "./pawpal.db", "busy_timeout": "5s" }
//	"storage": { "driver": "postgres", "dsn": "postgres://..." }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path,omitempty"`
	DSN         string `json:"dsn,omitempty"` // postgres; do not log
	BusyTimeout Duration `json:"busy_timeout,omitempty"`
}

// PlannerConfig holds planning defaults used when an owner record leaves
// them unset.
type PlannerConfig struct {
	// DefaultWindow is "HH:MM-HH:MM".
	DefaultWindow string `json:"default_window"`
	// Timezone decides what "today" means. Empty means local time.
	Timezone string `json:"timezone,omitempty"`
}

// DailyConfig drives the morning plan push.
type DailyConfig struct {
	Enabled bool `json:"enabled"`
	// Spec is a cron expression; seconds are optional.
	Spec   string   `json:"spec"`
	Owners []string `json:"owners,omitempty"`
}

// NotifierConfig controls async outbound messages. A missing section means
// enabled with defaults.
type NotifierConfig struct {
	Enabled    bool `json:"enabled"`
	Workers    int  `json:"workers"`
	QueueSize  int  `json:"queue_size"`
	RatePerSec int  `json:"rate_per_sec"`
}

type TelegramConfig struct {
	Token string `json:"token"`
	PollTimeout Duration `json:"poll_timeout"`
	// Chats maps owner id to the chat that owner talks from.
	Chats map[string]int64 `json:"chats,omitempty"`
}

// MetricsConfig covers both telemetry exporters; snapshots go to stdout.
type MetricsConfig struct {
	Enabled  bool   `json:"enabled"`
	Interval Duration `json:"interval,omitempty"`
	// Tracing prints a span per plan and completion.
	Tracing bool `json:"tracing,omitempty"`
}

// NotifierOrDefault returns the notifier section with an omitted block
// treated as enabled.
func (c *Config) NotifierOrDefault() NotifierConfig {
	if c == nil || c.Notifier == nil {
		return NotifierConfig{Enabled: true}
	}
	return *c.Notifier
}

// OwnerForChat maps a chat id back to its owner.
func (t TelegramConfig) OwnerForChat(chatID int64) (string, bool) {
	for owner, id := range t.Chats {
		if id == chatID {
			return owner, true
		}
	}
	return "", false
}

package config

import (
	"maps"
	"slices"
	"strings"

	logx "pawpal/pkg/logx"
)

// SummarizeChange lists the sections that differ between two configs along
// with log fields that are safe to print. Tokens and DSNs are never included.
func SummarizeChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}
	changed := make([]string, 0, 7)
	fields := make([]logx.Field, 0, 12)

	if oldCfg.Logging != newCfg.Logging {
		changed = append(changed, "logging")
		fields = append(fields,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.file", newCfg.Logging.File.Enabled),
		)
	}
	if oldCfg.Storage != newCfg.Storage {
		changed = append(changed, "storage")
		fields = append(fields, logx.String("storage.driver", newCfg.Storage.Driver))
	}
	if oldCfg.Planner != newCfg.Planner {
		changed = append(changed, "planner")
		fields = append(fields, logx.String("planner.default_window", newCfg.Planner.DefaultWindow))
	}
	if oldCfg.Daily.Enabled != newCfg.Daily.Enabled ||
		strings.TrimSpace(oldCfg.Daily.Spec) != strings.TrimSpace(newCfg.Daily.Spec) ||
		!slices.Equal(oldCfg.Daily.Owners, newCfg.Daily.Owners) {
		changed = append(changed, "daily")
		fields = append(fields,
			logx.Bool("daily.enabled", newCfg.Daily.Enabled),
			logx.String("daily.spec", newCfg.Daily.Spec),
		)
	}
	if oldCfg.NotifierOrDefault() != newCfg.NotifierOrDefault() {
		changed = append(changed, "notifier")
		n := newCfg.NotifierOrDefault()
		fields = append(fields, logx.Bool("notifier.enabled", n.Enabled), logx.Int("notifier.workers", n.Workers))
	}
	if oldCfg.Telegram.Token != newCfg.Telegram.Token ||
		oldCfg.Telegram.PollTimeout != newCfg.Telegram.PollTimeout ||
		!maps.Equal(oldCfg.Telegram.Chats, newCfg.Telegram.Chats) {
		changed = append(changed, "telegram")
		fields = append(fields,
			logx.Bool("telegram.token_set", strings.TrimSpace(newCfg.Telegram.Token) != ""),
			logx.Int("telegram.chats", len(newCfg.Telegram.Chats)),
		)
	}
	if oldCfg.Metrics != newCfg.Metrics {
		changed = append(changed, "metrics")
		fields = append(fields, logx.Bool("metrics.enabled", newCfg.Metrics.Enabled), logx.Bool("metrics.tracing", newCfg.Metrics.Tracing))
	}
	return changed, fields
}

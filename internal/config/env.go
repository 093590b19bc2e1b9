package config

import (
	"errors"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Environment variables that override file values. Secrets belong here
// rather than in the config file.
const (
	EnvTelegramToken = "PAWPAL_TELEGRAM_TOKEN"
	EnvStorageDSN    = "PAWPAL_STORAGE_DSN"
	EnvLogLevel      = "PAWPAL_LOG_LEVEL"
)

// LoadDotEnv reads .env style files into the process environment without
// replacing variables that are already set. Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	return nil
}

// ApplyEnv copies set override variables onto cfg.
func ApplyEnv(cfg *Config) {
	ApplyEnvFunc(cfg, os.LookupEnv)
}

// ApplyEnvFunc is ApplyEnv with an injectable lookup.
func ApplyEnvFunc(cfg *Config, lookup func(string) (string, bool)) {
	if cfg == nil {
		return
	}
	if v, ok := lookup(EnvTelegramToken); ok && strings.TrimSpace(v) != "" {
		cfg.Telegram.Token = strings.TrimSpace(v)
	}
	if v, ok := lookup(EnvStorageDSN); ok && strings.TrimSpace(v) != "" {
		cfg.Storage.DSN = strings.TrimSpace(v)
	}
	if v, ok := lookup(EnvLogLevel); ok && strings.TrimSpace(v) != "" {
		cfg.Logging.Level = strings.TrimSpace(v)
	}
}

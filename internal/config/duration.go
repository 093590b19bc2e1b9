package config

import (
	"fmt"
	"strings"
	"time"
)

// Duration is a Go duration string in the config file ("250ms", "1m").
// Empty means unset.
type Duration string

// Value parses d. Unset and zero both give def; negative values are
// rejected. path names the field in errors.
func (d Duration) Value(path string, def time.Duration) (time.Duration, error) {
	s := strings.TrimSpace(string(d))
	if s == "" {
		return def, nil
	}
	v, err := time.ParseDuration(s)
	switch {
	case err != nil:
		return 0, fmt.Errorf("%s: invalid duration %q: %w", path, string(d), err)
	case v < 0:
		return 0, fmt.Errorf("%s: duration must be >= 0", path)
	case v == 0:
		return def, nil
	}
	return v, nil
}

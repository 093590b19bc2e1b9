package care

import (
	"fmt"
	"strconv"
	"strings"
)

// MinutesPerDay is the length of a calendar day in minutes.
const MinutesPerDay = 24 * 60

// Clock is a time of day in minutes since midnight.
//
// Parsed values are always within 00:00..23:59. Computed end times may run
// past 23:59 (rendered as "24:10") so a late placement is never wrapped.
type Clock int

// At builds a Clock from hour and minute without validation.
func At(hour, minute int) Clock { return Clock(hour*60 + minute) }

// ParseClock parses a 24-hour "HH:MM" string. A single-digit hour is accepted.
func ParseClock(raw string) (Clock, error) {
	s := strings.TrimSpace(raw)
	parts := strings.Split(s, ":")
	if len(parts) != 2 || len(parts[1]) != 2 || !digits(parts[0]) || !digits(parts[1]) {
		return 0, invalid("time", raw, "expected HH:MM")
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, invalid("time", raw, "hour must be 00..23")
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, invalid("time", raw, "minute must be 00..59")
	}
	return At(h, m), nil
}

// MustClock is ParseClock for literals; it panics on malformed input.
func MustClock(raw string) Clock {
	c, err := ParseClock(raw)
	if err != nil {
		panic(err)
	}
	return c
}

func (c Clock) Hour() int   { return int(c) / 60 }
func (c Clock) Minute() int { return int(c) % 60 }

// Add returns c shifted by n minutes.
func (c Clock) Add(n int) Clock { return c + Clock(n) }

func (c Clock) String() string { return fmt.Sprintf("%02d:%02d", c.Hour(), c.Minute()) }

func (c Clock) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

func (c *Clock) UnmarshalText(b []byte) error {
	v, err := ParseClock(string(b))
	if err != nil {
		return err
	}
	*c = v
	return nil
}

func digits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

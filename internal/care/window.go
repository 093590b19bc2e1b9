package care

import (
	"strconv"
	"strings"
)

// Window is an availability range [Start, End) within one day.
type Window struct {
	Start Clock
	End   Clock
}

// ParseWindow accepts "HH:MM-HH:MM" and the short hour form "9-17".
// An end of "24" (or "24:00") means midnight at the end of the day.
func ParseWindow(raw string) (Window, error) {
	s := strings.TrimSpace(raw)
	left, right, ok := strings.Cut(s, "-")
	if !ok {
		return Window{}, invalid("availability", raw, "expected START-END")
	}
	start, err := parseWindowBound(left)
	if err != nil {
		return Window{}, invalid("availability", raw, "bad start time")
	}
	end, err := parseWindowBound(right)
	if err != nil {
		return Window{}, invalid("availability", raw, "bad end time")
	}
	return Window{Start: start, End: end}, nil
}

func parseWindowBound(raw string) (Clock, error) {
	s := strings.TrimSpace(raw)
	if s == "24" || s == "24:00" {
		return Clock(MinutesPerDay), nil
	}
	if strings.Contains(s, ":") {
		return ParseClock(s)
	}
	if !digits(s) {
		return 0, invalid("time", raw, "expected hour")
	}
	h, err := strconv.Atoi(s)
	if err != nil || h < 0 || h > 23 {
		return 0, invalid("time", raw, "hour must be 0..24")
	}
	return At(h, 0), nil
}

func (w Window) IsZero() bool { return w == Window{} }

// Minutes is the availability budget of w. It is <= 0 for empty or inverted windows.
func (w Window) Minutes() int { return int(w.End - w.Start) }

func (w Window) String() string { return w.Start.String() + "-" + w.End.String() }

func (w Window) MarshalText() ([]byte, error) {
	if w.IsZero() {
		return []byte{}, nil
	}
	return []byte(w.String()), nil
}

func (w *Window) UnmarshalText(b []byte) error {
	if strings.TrimSpace(string(b)) == "" {
		*w = Window{}
		return nil
	}
	v, err := ParseWindow(string(b))
	if err != nil {
		return err
	}
	*w = v
	return nil
}

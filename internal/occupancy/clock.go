package occupancy

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Clock is a local time of day in seconds since midnight.
type Clock int

// ClockOf returns the time of day of t in t's location.
func ClockOf(t time.Time) Clock {
	return Clock(t.Hour()*3600 + t.Minute()*60 + t.Second())
}

// ParseClock parses "HH:MM:SS" or "HH:MM".
func ParseClock(s string) (Clock, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("invalid time format: %q", s)
	}

	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, fmt.Errorf("invalid hour in %q", s)
	}

	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("invalid minute in %q", s)
	}

	second := 0
	if len(parts) == 3 {
		second, err = strconv.Atoi(parts[2])
		if err != nil || second < 0 || second > 59 {
			return 0, fmt.Errorf("invalid second in %q", s)
		}
	}

	return Clock(hour*3600 + minute*60 + second), nil
}

// Format renders the clock as HH:MM.
func (c Clock) Format() string {
	return fmt.Sprintf("%02d:%02d", int(c)/3600, int(c)%3600/60)
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", int(c)/3600, int(c)%3600/60, int(c)%60)
}

// Span is a closed interval of the day.
type Span struct {
	Start Clock
	End   Clock
}

// Contains reports whether c lies in [Start, End].
func (s Span) Contains(c Clock) bool {
	return s.Start <= c && c <= s.End
}

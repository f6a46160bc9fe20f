package timetable

import (
	"errors"
	"fmt"
	"time"
)

// DateLayout is the calendar date format used by the API and the intranet.
const DateLayout = "2006-01-02"

// ErrInvalidWindow is returned when a window ends before it starts.
var ErrInvalidWindow = errors.New("start date must be before or equal to end date")

// Window is an inclusive range of calendar dates.
type Window struct {
	Start time.Time
	End   time.Time
}

// NewWindow normalises start and end to local midnight in loc.
func NewWindow(start, end time.Time, loc *time.Location) (Window, error) {
	w := Window{Start: midnight(start, loc), End: midnight(end, loc)}
	if w.Start.After(w.End) {
		return Window{}, ErrInvalidWindow
	}
	return w, nil
}

// Today returns the single-day window of now's date.
func Today(now time.Time, loc *time.Location) Window {
	return Days(now, 1, loc)
}

// Days returns the window of n calendar days beginning on now's date.
func Days(now time.Time, n int, loc *time.Location) Window {
	if n < 1 {
		n = 1
	}
	start := midnight(now, loc)
	return Window{Start: start, End: start.AddDate(0, 0, n-1)}
}

// Len returns the number of calendar days in the window.
func (w Window) Len() int {
	days := 0
	for d := w.Start; !d.After(w.End); d = d.AddDate(0, 0, 1) {
		days++
	}
	return days
}

func (w Window) String() string {
	return fmt.Sprintf("%s..%s", w.Start.Format(DateLayout), w.End.Format(DateLayout))
}

// ParseDate parses a YYYY-MM-DD date at midnight in loc.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(DateLayout, s, loc)
}

func midnight(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

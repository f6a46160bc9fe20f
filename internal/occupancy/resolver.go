// Package occupancy derives which rooms are in use at a given moment from a
// day's lessons.
package occupancy

import (
	"strings"
	"time"

	"stundenplan/internal/models"
)

// Skip describes a lesson that could not be evaluated.
type Skip struct {
	Index  int    `json:"index"`
	Field  string `json:"field"`
	Value  string `json:"value"`
	Reason string `json:"reason"`
}

// Entry is the per-lesson parse result: either Span is valid or Skip is set.
type Entry struct {
	Lesson *models.Lesson
	Span   Span
	Skip   *Skip
}

// Report is the occupancy of the room universe at one instant.
type Report struct {
	Time     string   `json:"time"`
	Occupied []string `json:"occupied"`
	Free     []string `json:"free"`
	Skipped  []Skip   `json:"-"`
}

// Parse evaluates the time span of every lesson. A malformed lessonStart or
// lessonEnd only affects its own entry.
func Parse(lessons []models.Lesson) []Entry {
	entries := make([]Entry, len(lessons))
	for i := range lessons {
		l := &lessons[i]
		entries[i].Lesson = l

		start, err := ParseClock(l.LessonStart)
		if err != nil {
			entries[i].Skip = &Skip{Index: i, Field: "lessonStart", Value: l.LessonStart, Reason: err.Error()}
			continue
		}
		end, err := ParseClock(l.LessonEnd)
		if err != nil {
			entries[i].Skip = &Skip{Index: i, Field: "lessonEnd", Value: l.LessonEnd, Reason: err.Error()}
			continue
		}
		entries[i].Span = Span{Start: start, End: end}
	}
	return entries
}

// Resolve classifies every room of universe as occupied or free at now.
// lessons are expected to be the lessons of now's day. A room is occupied when
// at least one non-cancelled lesson in it spans now, boundaries included.
// Rooms outside the universe are ignored. Both result lists follow universe order.
func Resolve(now time.Time, lessons []models.Lesson, universe []string) Report {
	clock := ClockOf(now)

	busy := make(map[string]bool)
	var skipped []Skip
	for _, e := range Parse(lessons) {
		if e.Skip != nil {
			skipped = append(skipped, *e.Skip)
			continue
		}
		if e.Lesson.IsCancelled() {
			continue
		}
		room := strings.TrimSpace(e.Lesson.RoomName)
		if room == "" || !e.Span.Contains(clock) {
			continue
		}
		busy[room] = true
	}

	report := Report{
		Time:     clock.Format(),
		Occupied: make([]string, 0),
		Free:     make([]string, 0, len(universe)),
		Skipped:  skipped,
	}
	seen := make(map[string]bool, len(universe))
	for _, room := range universe {
		if seen[room] {
			continue
		}
		seen[room] = true

		if busy[room] {
			report.Occupied = append(report.Occupied, room)
		} else {
			report.Free = append(report.Free, room)
		}
	}
	return report
}

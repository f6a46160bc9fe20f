package api

import (
	"net/http"

	"stundenplan/internal/database"
	"stundenplan/internal/metrics"
	"stundenplan/internal/occupancy"
	"stundenplan/internal/timetable"
)

// FreeRoomsResponse is the body of GET /free-rooms.
type FreeRoomsResponse struct {
	Time     string   `json:"time"`
	Occupied []string `json:"occupied"`
	Free     []string `json:"free"`
	Skipped  int      `json:"skipped"`
}

// handleFreeRooms resolves which rooms of the universe are in use right now.
// GET /free-rooms
func (s *HTTPServer) handleFreeRooms(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("free_rooms")

	now := s.today()
	lessons, err := s.source.FetchWindow(r.Context(), timetable.Today(now, s.loc))
	if err != nil {
		s.writeUpstreamError(w, r, err)
		return
	}
	lessons = timetable.ByDate(lessons, dateOf(now))

	report := occupancy.Resolve(now, lessons, s.Universe())
	if len(report.Skipped) > 0 {
		s.logger.Warn().
			Int("skipped", len(report.Skipped)).
			Interface("first", report.Skipped[0]).
			Msg("lessons with unparsable times skipped")
	}
	metrics.AddLessonsSkipped(len(report.Skipped))
	metrics.SetRooms(len(report.Free), len(report.Occupied))

	if s.store != nil {
		_, err := s.store.RecordSnapshot(r.Context(), &database.Snapshot{
			TakenAt:  now,
			Day:      dateOf(now),
			Time:     report.Time,
			Occupied: report.Occupied,
			Free:     report.Free,
			Skipped:  len(report.Skipped),
		})
		if err != nil {
			s.logger.Error().Err(err).Msg("failed to record snapshot")
		}
	}

	writeJSON(w, http.StatusOK, FreeRoomsResponse{
		Time:     report.Time,
		Occupied: report.Occupied,
		Free:     report.Free,
		Skipped:  len(report.Skipped),
	})
}

// handleFreeRoomsHistory lists the recorded reports of one day (default today).
// GET /free-rooms/history?date=YYYY-MM-DD
func (s *HTTPServer) handleFreeRoomsHistory(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("free_rooms_history")
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "history disabled")
		return
	}

	day := dateOf(s.today())
	if raw := r.URL.Query().Get("date"); raw != "" {
		parsed, err := timetable.ParseDate(raw, s.loc)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid date format; expected YYYY-MM-DD")
			return
		}
		day = dateOf(parsed)
	}

	snapshots, err := s.store.ListSnapshots(r.Context(), day)
	if err != nil {
		s.logger.Error().Err(err).Str("day", day).Msg("failed to list snapshots")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"date": day, "snapshots": snapshots})
}

package api

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"stundenplan/internal/export"
	"stundenplan/internal/metrics"
	"stundenplan/internal/models"
	"stundenplan/internal/timetable"
)

// LessonsResponse is the body of every lesson list endpoint.
type LessonsResponse struct {
	Period struct {
		Start string `json:"start"`
		End   string `json:"end"`
	} `json:"period"`
	Count   int             `json:"count"`
	Lessons []models.Lesson `json:"lessons"`
}

var endpoints = []string{
	"GET /today",
	"GET /week",
	"GET /range?start=YYYY-MM-DD&end=YYYY-MM-DD",
	"GET /free-rooms",
	"GET /free-rooms/history?date=YYYY-MM-DD",
	"GET /cancelled",
	"GET /exams",
	"GET /filter/subject/{name}",
	"GET /filter/teacher/{acronym}",
	"GET /filter/room/{room}",
	"GET /date/{YYYY-MM-DD}",
	"GET /export?start=YYYY-MM-DD&end=YYYY-MM-DD",
}

// handleIndex lists the service endpoints.
// GET /
func (s *HTTPServer) handleIndex(w http.ResponseWriter, _ *http.Request) {
	metrics.IncHTTP("index")
	writeJSON(w, http.StatusOK, map[string]any{
		"service":   "stundenplan",
		"timezone":  s.loc.String(),
		"endpoints": endpoints,
	})
}

// GET /today
func (s *HTTPServer) handleToday(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("today")
	now := s.today()
	s.serveLessons(w, r, timetable.Today(now, s.loc), func(l []models.Lesson) []models.Lesson {
		return timetable.ByDate(l, now.Format(timetable.DateLayout))
	})
}

// GET /week
func (s *HTTPServer) handleWeek(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("week")
	s.serveLessons(w, r, timetable.Days(s.today(), s.windows.Week, s.loc), nil)
}

// handleRange returns every lesson between two dates, inclusive.
// GET /range?start=YYYY-MM-DD&end=YYYY-MM-DD
func (s *HTTPServer) handleRange(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("range")
	win, err := s.parseRange(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.serveLessons(w, r, win, nil)
}

// GET /cancelled
func (s *HTTPServer) handleCancelled(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("cancelled")
	s.serveLessons(w, r, timetable.Days(s.today(), s.windows.Cancelled, s.loc), timetable.Cancelled)
}

// GET /exams
func (s *HTTPServer) handleExams(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("exams")
	s.serveLessons(w, r, timetable.Days(s.today(), s.windows.Exams, s.loc), timetable.Exams)
}

// GET /filter/subject/{name}
func (s *HTTPServer) handleFilterSubject(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("filter_subject")
	name := r.PathValue("name")
	s.serveLessons(w, r, timetable.Days(s.today(), s.windows.Filter, s.loc), func(l []models.Lesson) []models.Lesson {
		return timetable.BySubject(l, name)
	})
}

// GET /filter/teacher/{acronym}
func (s *HTTPServer) handleFilterTeacher(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("filter_teacher")
	acronym := r.PathValue("acronym")
	s.serveLessons(w, r, timetable.Days(s.today(), s.windows.Filter, s.loc), func(l []models.Lesson) []models.Lesson {
		return timetable.ByTeacher(l, acronym)
	})
}

// GET /filter/room/{room}
func (s *HTTPServer) handleFilterRoom(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("filter_room")
	room := r.PathValue("room")
	s.serveLessons(w, r, timetable.Days(s.today(), s.windows.Filter, s.loc), func(l []models.Lesson) []models.Lesson {
		return timetable.ByRoom(l, room)
	})
}

// handleDate returns the lessons of a single day.
// GET /date/{date}
func (s *HTTPServer) handleDate(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("date")
	raw := r.PathValue("date")
	day, err := timetable.ParseDate(raw, s.loc)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date format; expected YYYY-MM-DD")
		return
	}
	date := day.Format(timetable.DateLayout)
	s.serveLessons(w, r, timetable.Today(day, s.loc), func(l []models.Lesson) []models.Lesson {
		return timetable.ByDate(l, date)
	})
}

// handleExport streams the lessons of a range as an xlsx workbook.
// GET /export?start=YYYY-MM-DD&end=YYYY-MM-DD
func (s *HTTPServer) handleExport(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("export")
	win, err := s.parseRange(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	lessons, err := s.source.FetchWindow(r.Context(), win)
	if err != nil {
		s.writeUpstreamError(w, r, err)
		return
	}

	filename := fmt.Sprintf("stundenplan_%s_%s.xlsx",
		win.Start.Format(timetable.DateLayout), win.End.Format(timetable.DateLayout))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	if err := export.WriteLessons(w, lessons); err != nil {
		s.logger.Error().Err(err).Msg("export failed")
	}
}

func (s *HTTPServer) serveLessons(w http.ResponseWriter, r *http.Request, win timetable.Window, project func([]models.Lesson) []models.Lesson) {
	lessons, err := s.source.FetchWindow(r.Context(), win)
	if err != nil {
		s.writeUpstreamError(w, r, err)
		return
	}
	if project != nil {
		lessons = project(lessons)
	}

	var resp LessonsResponse
	resp.Period.Start = win.Start.Format(timetable.DateLayout)
	resp.Period.End = win.End.Format(timetable.DateLayout)
	resp.Count = len(lessons)
	resp.Lessons = lessons
	if resp.Lessons == nil {
		resp.Lessons = []models.Lesson{}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *HTTPServer) parseRange(r *http.Request) (timetable.Window, error) {
	q := r.URL.Query()
	startStr, endStr := strings.TrimSpace(q.Get("start")), strings.TrimSpace(q.Get("end"))
	if startStr == "" || endStr == "" {
		return timetable.Window{}, fmt.Errorf("start and end are required")
	}

	start, err := timetable.ParseDate(startStr, s.loc)
	if err != nil {
		return timetable.Window{}, fmt.Errorf("invalid start format; expected YYYY-MM-DD")
	}
	end, err := timetable.ParseDate(endStr, s.loc)
	if err != nil {
		return timetable.Window{}, fmt.Errorf("invalid end format; expected YYYY-MM-DD")
	}

	win, err := timetable.NewWindow(start, end, s.loc)
	if err != nil {
		return timetable.Window{}, err
	}
	if s.windows.MaxRange > 0 && win.Len() > s.windows.MaxRange {
		return timetable.Window{}, fmt.Errorf("date range exceeds maximum of %d days", s.windows.MaxRange)
	}
	return win, nil
}

func dateOf(t time.Time) string {
	return t.Format(timetable.DateLayout)
}

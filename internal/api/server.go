// Package api exposes the timetable and free-room endpoints over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"stundenplan/internal/config"
	"stundenplan/internal/database"
	"stundenplan/internal/intranet"
	"stundenplan/internal/models"
	"stundenplan/internal/timetable"
)

const authFailedMessage = "authentication with the intranet failed"

// LessonSource returns the lessons of a date window.
type LessonSource interface {
	FetchWindow(ctx context.Context, w timetable.Window) ([]models.Lesson, error)
}

// SnapshotStore persists free-room reports.
type SnapshotStore interface {
	RecordSnapshot(ctx context.Context, s *database.Snapshot) (int64, error)
	ListSnapshots(ctx context.Context, day string) ([]database.Snapshot, error)
}

// Windows holds the day counts of the fixed-window endpoints.
type Windows struct {
	Week      int
	Cancelled int
	Exams     int
	Filter    int
	MaxRange  int
}

// HTTPServer serves the public API.
type HTTPServer struct {
	source   LessonSource
	store    SnapshotStore
	loc      *time.Location
	windows  Windows
	apiKeys  map[string]struct{}
	universe atomic.Pointer[[]string]
	now      func() time.Time
	logger   *zerolog.Logger
	server   *http.Server
}

// NewHTTPServer wires the routes. store may be nil, which disables the history endpoint.
func NewHTTPServer(cfg *config.Config, source LessonSource, store SnapshotStore, logger *zerolog.Logger) *HTTPServer {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	s := &HTTPServer{
		source: source,
		store:  store,
		loc:    cfg.Location(),
		windows: Windows{
			Week:      cfg.Windows.WeekDays,
			Cancelled: cfg.Windows.CancelledDays,
			Exams:     cfg.Windows.ExamDays,
			Filter:    cfg.Windows.FilterDays,
			MaxRange:  cfg.Windows.MaxRangeDays,
		},
		apiKeys: make(map[string]struct{}, len(cfg.Server.APIKeys)),
		now:     time.Now,
		logger:  logger,
	}
	for _, k := range cfg.Server.APIKeys {
		if k != "" {
			s.apiKeys[k] = struct{}{}
		}
	}
	s.SetUniverse(nil)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /today", s.handleToday)
	mux.HandleFunc("GET /week", s.handleWeek)
	mux.HandleFunc("GET /range", s.handleRange)
	mux.HandleFunc("GET /free-rooms", s.handleFreeRooms)
	mux.HandleFunc("GET /free-rooms/history", s.handleFreeRoomsHistory)
	mux.HandleFunc("GET /cancelled", s.handleCancelled)
	mux.HandleFunc("GET /exams", s.handleExams)
	mux.HandleFunc("GET /filter/subject/{name}", s.handleFilterSubject)
	mux.HandleFunc("GET /filter/teacher/{acronym}", s.handleFilterTeacher)
	mux.HandleFunc("GET /filter/room/{room}", s.handleFilterRoom)
	mux.HandleFunc("GET /date/{date}", s.handleDate)
	mux.HandleFunc("GET /export", s.handleExport)

	handler := s.requestID(s.accessLog(s.requireAPIKey(mux)))

	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// SetUniverse replaces the room universe used by /free-rooms.
func (s *HTTPServer) SetUniverse(rooms []string) {
	snapshot := append([]string(nil), rooms...)
	s.universe.Store(&snapshot)
}

// Universe returns the current room universe.
func (s *HTTPServer) Universe() []string {
	return *s.universe.Load()
}

// Handler returns the root handler including middleware.
func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

// Start serves until ctx is cancelled.
func (s *HTTPServer) Start(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(ctxShutdown)
	}()

	s.logger.Info().Str("addr", s.server.Addr).Msg("API server listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *HTTPServer) today() time.Time {
	return s.now().In(s.loc)
}

// writeUpstreamError maps fetch failures onto status codes.
func (s *HTTPServer) writeUpstreamError(w http.ResponseWriter, r *http.Request, err error) {
	var upstream *intranet.UpstreamError
	switch {
	case errors.Is(err, intranet.ErrAuthentication):
		writeError(w, http.StatusUnauthorized, authFailedMessage)
	case errors.Is(err, timetable.ErrInvalidWindow):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &upstream):
		s.logger.Error().Err(err).Str("path", r.URL.Path).Msg("intranet request failed")
		writeError(w, http.StatusInternalServerError, "failed to fetch timetable from intranet")
	default:
		s.logger.Error().Err(err).Str("path", r.URL.Path).Msg("timetable fetch failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

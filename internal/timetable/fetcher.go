// Package timetable fetches lesson windows from the intranet and projects them.
package timetable

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"stundenplan/internal/intranet"
	"stundenplan/internal/models"
)

// Upstream is the intranet capability the fetcher depends on.
type Upstream interface {
	Authenticate(ctx context.Context) (*intranet.Session, error)
	FetchWindow(ctx context.Context, session *intranet.Session, start, end time.Time) ([]models.Lesson, error)
}

// WindowCache is implemented by upstreams that can answer a window without a login.
type WindowCache interface {
	CachedWindow(ctx context.Context, start, end time.Time) ([]models.Lesson, bool)
}

// Fetcher performs one login and one window request per call.
type Fetcher struct {
	upstream Upstream
	loc      *time.Location
	logger   *zerolog.Logger
}

// NewFetcher creates a fetcher resolving calendar dates in loc.
func NewFetcher(upstream Upstream, loc *time.Location, logger *zerolog.Logger) *Fetcher {
	if loc == nil {
		loc = time.Local
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Fetcher{upstream: upstream, loc: loc, logger: logger}
}

// Fetch returns all lessons between the calendar dates of start and end, inclusive.
func (f *Fetcher) Fetch(ctx context.Context, start, end time.Time) ([]models.Lesson, error) {
	w, err := NewWindow(start, end, f.loc)
	if err != nil {
		return nil, err
	}
	return f.FetchWindow(ctx, w)
}

// FetchWindow authenticates and requests the lessons of w.
func (f *Fetcher) FetchWindow(ctx context.Context, w Window) ([]models.Lesson, error) {
	if w.Start.After(w.End) {
		return nil, ErrInvalidWindow
	}

	if cache, ok := f.upstream.(WindowCache); ok {
		if lessons, hit := cache.CachedWindow(ctx, w.Start, w.End); hit {
			f.logger.Debug().Str("window", w.String()).Msg("timetable served from cache")
			return lessons, nil
		}
	}

	session, err := f.upstream.Authenticate(ctx)
	if err != nil {
		return nil, fmt.Errorf("authenticate: %w", err)
	}

	lessons, err := f.upstream.FetchWindow(ctx, session, w.Start, w.End)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", w, err)
	}
	if lessons == nil {
		lessons = []models.Lesson{}
	}

	f.logger.Debug().
		Str("window", w.String()).
		Int("lessons", len(lessons)).
		Msg("timetable fetched")

	return lessons, nil
}

package timetable

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"stundenplan/internal/intranet"
	"stundenplan/internal/models"
)

type mockUpstream struct {
	mock.Mock
}

func (m *mockUpstream) Authenticate(ctx context.Context) (*intranet.Session, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*intranet.Session), args.Error(1)
}

func (m *mockUpstream) FetchWindow(ctx context.Context, s *intranet.Session, start, end time.Time) ([]models.Lesson, error) {
	args := m.Called(ctx, s, start, end)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Lesson), args.Error(1)
}

type cachingUpstream struct {
	mockUpstream
	cached []models.Lesson
}

func (c *cachingUpstream) CachedWindow(_ context.Context, _, _ time.Time) ([]models.Lesson, bool) {
	return c.cached, c.cached != nil
}

var zurich = func() *time.Location {
	loc, err := time.LoadLocation("Europe/Zurich")
	if err != nil {
		return time.FixedZone("CET", 3600)
	}
	return loc
}()

func TestFetcher_Fetch(t *testing.T) {
	ctx := context.Background()
	up := new(mockUpstream)
	session := &intranet.Session{}

	start := time.Date(2026, 10, 19, 14, 30, 0, 0, zurich)
	end := time.Date(2026, 10, 25, 9, 0, 0, 0, zurich)
	wantStart := time.Date(2026, 10, 19, 0, 0, 0, 0, zurich)
	wantEnd := time.Date(2026, 10, 25, 0, 0, 0, 0, zurich)
	lessons := []models.Lesson{{LessonName: "Physik"}}

	up.On("Authenticate", ctx).Return(session, nil).Once()
	up.On("FetchWindow", ctx, session, wantStart, wantEnd).Return(lessons, nil).Once()

	got, err := NewFetcher(up, zurich, nil).Fetch(ctx, start, end)
	require.NoError(t, err)
	assert.Equal(t, lessons, got)
	up.AssertExpectations(t)
}

func TestFetcher_InvalidWindow(t *testing.T) {
	up := new(mockUpstream)
	start := time.Date(2026, 10, 20, 0, 0, 0, 0, zurich)

	_, err := NewFetcher(up, zurich, nil).Fetch(context.Background(), start, start.AddDate(0, 0, -1))
	assert.ErrorIs(t, err, ErrInvalidWindow)
	up.AssertNotCalled(t, "Authenticate", mock.Anything)
}

func TestFetcher_AuthenticationFailure(t *testing.T) {
	ctx := context.Background()
	up := new(mockUpstream)
	up.On("Authenticate", ctx).Return(nil, intranet.ErrAuthentication).Once()

	_, err := NewFetcher(up, zurich, nil).FetchWindow(ctx, Days(time.Now(), 1, zurich))
	assert.ErrorIs(t, err, intranet.ErrAuthentication)
	up.AssertNotCalled(t, "FetchWindow", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestFetcher_UpstreamFailure(t *testing.T) {
	ctx := context.Background()
	up := new(mockUpstream)
	session := &intranet.Session{}
	up.On("Authenticate", ctx).Return(session, nil).Once()
	up.On("FetchWindow", ctx, session, mock.Anything, mock.Anything).
		Return(nil, &intranet.UpstreamError{Operation: "timetable", StatusCode: 502}).Once()

	_, err := NewFetcher(up, zurich, nil).FetchWindow(ctx, Days(time.Now(), 7, zurich))

	var upstream *intranet.UpstreamError
	require.True(t, errors.As(err, &upstream))
	assert.Equal(t, 502, upstream.StatusCode)
}

func TestFetcher_NilResultBecomesEmpty(t *testing.T) {
	ctx := context.Background()
	up := new(mockUpstream)
	session := &intranet.Session{}
	up.On("Authenticate", ctx).Return(session, nil).Once()
	up.On("FetchWindow", ctx, session, mock.Anything, mock.Anything).Return(nil, nil).Once()

	got, err := NewFetcher(up, zurich, nil).FetchWindow(ctx, Days(time.Now(), 1, zurich))
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestFetcher_CacheHitSkipsLogin(t *testing.T) {
	up := &cachingUpstream{cached: []models.Lesson{{LessonName: "Chemie"}}}

	got, err := NewFetcher(up, zurich, nil).FetchWindow(context.Background(), Days(time.Now(), 1, zurich))
	require.NoError(t, err)
	assert.Equal(t, "Chemie", got[0].LessonName)
	up.AssertNotCalled(t, "Authenticate", mock.Anything)
}

func TestWindow(t *testing.T) {
	now := time.Date(2026, 10, 17, 22, 15, 0, 0, zurich)

	w := Days(now, 7, zurich)
	assert.Equal(t, "2026-10-17..2026-10-23", w.String())
	assert.Equal(t, 7, w.Len())
	assert.True(t, w.Start.Equal(time.Date(2026, 10, 17, 0, 0, 0, 0, zurich)))
	assert.True(t, w.End.Equal(time.Date(2026, 10, 23, 0, 0, 0, 0, zurich)))

	assert.Equal(t, 1, Days(now, 0, zurich).Len())
}

func TestWindow_DSTChange(t *testing.T) {
	// Clocks go back on 2026-10-25 in Zurich.
	now := time.Date(2026, 10, 24, 12, 0, 0, 0, zurich)
	w := Days(now, 3, zurich)

	assert.Equal(t, 3, w.Len())
	assert.Equal(t, 0, w.End.Hour())
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2026-10-19", zurich)
	require.NoError(t, err)
	assert.Equal(t, zurich, d.Location())

	_, err = ParseDate("19.10.2026", zurich)
	assert.Error(t, err)
}

func TestNewWindow(t *testing.T) {
	start := time.Date(2026, 10, 19, 23, 59, 0, 0, zurich)
	w, err := NewWindow(start, start, zurich)
	require.NoError(t, err)
	assert.Equal(t, 1, w.Len())

	_, err = NewWindow(start, start.AddDate(0, 0, -2), zurich)
	assert.ErrorIs(t, err, ErrInvalidWindow)
}

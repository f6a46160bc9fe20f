package intranet

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testCookie = "sturmsession"

type fakeIntranet struct {
	*httptest.Server
	timetableStatus int
	timetableBody   string
	fetches         atomic.Int32
	lastForm        atomic.Value
}

const defaultTimetable = `{"data":[{"lessonDate":"2026-10-19","lessonStart":"08:00:00","lessonEnd":"08:45:00","lessonName":"Mathematik","roomName":"A06"}]}`

func newFakeIntranet(t *testing.T) *fakeIntranet {
	return newFakeIntranetWith(t, http.StatusOK, defaultTimetable)
}

func newFakeIntranetWith(t *testing.T, status int, body string) *fakeIntranet {
	f := &fakeIntranet{
		timetableStatus: status,
		timetableBody:   body,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/kzu/login", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			fmt.Fprint(w, `<html><body><form method="post">
				<input type="hidden" name="csrf" value="tok-123">
				<input type="text" name="username">
				<input type="password" name="password">
			</form></body></html>`)
			return
		}
		if err := r.ParseForm(); err != nil {
			http.Error(w, "bad form", http.StatusBadRequest)
			return
		}
		if r.PostForm.Get("csrf") != "tok-123" {
			http.Error(w, "csrf", http.StatusForbidden)
			return
		}
		if r.PostForm.Get("username") == "max" && r.PostForm.Get("password") == "secret" {
			http.SetCookie(w, &http.Cookie{Name: testCookie, Value: "abc", Path: "/"})
		}
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/kzu/timetable/ajax-get-timetable", func(w http.ResponseWriter, r *http.Request) {
		f.fetches.Add(1)
		ck, err := r.Cookie(testCookie)
		if err != nil || ck.Value != "abc" {
			http.Error(w, "not logged in", http.StatusForbidden)
			return
		}
		if err := r.ParseForm(); err == nil {
			f.lastForm.Store(r.PostForm)
		}
		w.WriteHeader(f.timetableStatus)
		fmt.Fprint(w, f.timetableBody)
	})

	f.Server = httptest.NewServer(mux)
	t.Cleanup(f.Close)
	return f
}

func (f *fakeIntranet) client(username, password string) *Client {
	return NewClient(Options{
		BaseURL:       f.URL + "/kzu",
		Username:      username,
		Password:      password,
		LoginPath:     "/login",
		TimetablePath: "/timetable/ajax-get-timetable",
		SessionCookie: testCookie,
		Timeout:       5 * time.Second,
	}, nil)
}

func TestAuthenticate(t *testing.T) {
	f := newFakeIntranet(t)

	t.Run("valid credentials", func(t *testing.T) {
		session, err := f.client("max", "secret").Authenticate(context.Background())
		require.NoError(t, err)
		require.NotNil(t, session.Cookie)
		assert.Equal(t, testCookie, session.Cookie.Name)
		assert.Equal(t, "abc", session.Cookie.Value)
	})

	t.Run("wrong password yields no cookie", func(t *testing.T) {
		_, err := f.client("max", "wrong").Authenticate(context.Background())
		assert.ErrorIs(t, err, ErrAuthentication)
	})
}

func TestAuthenticate_Unreachable(t *testing.T) {
	f := newFakeIntranet(t)
	c := f.client("max", "secret")
	f.Close()

	_, err := c.Authenticate(context.Background())
	var upstream *UpstreamError
	require.ErrorAs(t, err, &upstream)
	assert.Equal(t, "login", upstream.Operation)
	assert.Zero(t, upstream.StatusCode)
}

func TestFetchWindow(t *testing.T) {
	f := newFakeIntranet(t)
	c := f.client("max", "secret")
	ctx := context.Background()

	session, err := c.Authenticate(ctx)
	require.NoError(t, err)

	start := time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 6)

	lessons, err := c.FetchWindow(ctx, session, start, end)
	require.NoError(t, err)
	require.Len(t, lessons, 1)
	assert.Equal(t, "Mathematik", lessons[0].LessonName)

	form, ok := f.lastForm.Load().(url.Values)
	require.True(t, ok)
	assert.Equal(t, []string{fmt.Sprint(start.UnixMilli())}, form["startDate"])
	assert.Equal(t, []string{fmt.Sprint(end.UnixMilli())}, form["endDate"])
	assert.Equal(t, []string{"0"}, form["holidaysOnly"])
}

func TestFetchWindow_Errors(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantStatus int
		wantEmpty  bool
	}{
		{name: "server error", status: http.StatusInternalServerError, body: `oops`, wantStatus: http.StatusInternalServerError},
		{name: "forbidden", status: http.StatusForbidden, body: ``, wantStatus: http.StatusForbidden},
		{name: "missing data field", status: http.StatusOK, body: `{"status":1}`, wantEmpty: true},
		{name: "null data field", status: http.StatusOK, body: `{"data":null}`, wantEmpty: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFakeIntranetWith(t, tt.status, tt.body)
			c := f.client("max", "secret")
			ctx := context.Background()

			session, err := c.Authenticate(ctx)
			require.NoError(t, err)

			lessons, err := c.FetchWindow(ctx, session, time.Now(), time.Now())
			if tt.wantEmpty {
				require.NoError(t, err)
				assert.NotNil(t, lessons)
				assert.Empty(t, lessons)
				return
			}

			var upstream *UpstreamError
			require.ErrorAs(t, err, &upstream)
			assert.Equal(t, tt.wantStatus, upstream.StatusCode)
		})
	}
}

func TestFetchWindow_MalformedBody(t *testing.T) {
	f := newFakeIntranetWith(t, http.StatusOK, `<html>`)
	c := f.client("max", "secret")
	ctx := context.Background()

	session, err := c.Authenticate(ctx)
	require.NoError(t, err)

	_, err = c.FetchWindow(ctx, session, time.Now(), time.Now())
	var upstream *UpstreamError
	assert.True(t, errors.As(err, &upstream))
}

func TestFetchWindow_NoSession(t *testing.T) {
	c := NewClient(Options{BaseURL: "http://127.0.0.1:1"}, nil)
	_, err := c.FetchWindow(context.Background(), nil, time.Now(), time.Now())
	assert.ErrorIs(t, err, ErrAuthentication)
}

func TestCachedWindow(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	f := newFakeIntranet(t)
	c := f.client("max", "secret")
	c.UseRedisCache(rdb, time.Minute)
	ctx := context.Background()

	start := time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)

	_, hit := c.CachedWindow(ctx, start, start)
	assert.False(t, hit)

	session, err := c.Authenticate(ctx)
	require.NoError(t, err)
	_, err = c.FetchWindow(ctx, session, start, start)
	require.NoError(t, err)

	lessons, hit := c.CachedWindow(ctx, start, start)
	require.True(t, hit)
	require.Len(t, lessons, 1)
	assert.Equal(t, "A06", lessons[0].RoomName)
	assert.Equal(t, int32(1), f.fetches.Load())

	mr.FastForward(2 * time.Minute)
	_, hit = c.CachedWindow(ctx, start, start)
	assert.False(t, hit)
}

func TestCachedWindow_Disabled(t *testing.T) {
	c := NewClient(Options{BaseURL: "http://127.0.0.1:1"}, nil)
	_, hit := c.CachedWindow(context.Background(), time.Now(), time.Now())
	assert.False(t, hit)
}

package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRegister_Idempotent(t *testing.T) {
	assert.NotPanics(t, func() {
		Register()
		Register()
	})
}

func TestObserveUpstream(t *testing.T) {
	before := testutil.ToFloat64(upstreamRequests.WithLabelValues("login", "error"))
	ObserveUpstream("login", 0, 10*time.Millisecond)
	assert.Equal(t, before+1, testutil.ToFloat64(upstreamRequests.WithLabelValues("login", "error")))

	before = testutil.ToFloat64(upstreamRequests.WithLabelValues("timetable", "200"))
	ObserveUpstream("timetable", 200, 10*time.Millisecond)
	assert.Equal(t, before+1, testutil.ToFloat64(upstreamRequests.WithLabelValues("timetable", "200")))
}

func TestRoomsAndSkipped(t *testing.T) {
	SetRooms(5, 2)
	assert.Equal(t, 5.0, testutil.ToFloat64(roomsFree))
	assert.Equal(t, 2.0, testutil.ToFloat64(roomsOccupied))

	before := testutil.ToFloat64(lessonsSkipped)
	AddLessonsSkipped(0)
	AddLessonsSkipped(3)
	assert.Equal(t, before+3, testutil.ToFloat64(lessonsSkipped))
}

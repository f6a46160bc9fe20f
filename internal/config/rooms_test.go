package config

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadRoomsConfig(t *testing.T) {
	path := writeFile(t, t.TempDir(), "rooms.yaml", `
rooms:
  - name: A06
    building: A
  - name: " Z101 "
    building: Z
    floor: 1
  - name: B12
    is_active: false
`)

	cfg, err := LoadRoomsConfig(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"A06", "Z101"}, cfg.Universe())
	assert.Equal(t, "RoomsConfig: 3 rooms (2 active)", cfg.String())
}

func TestRoomsConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		rooms   []RoomConfig
		wantErr string
	}{
		{name: "empty", rooms: nil, wantErr: "no rooms defined"},
		{name: "blank name", rooms: []RoomConfig{{Name: " "}}, wantErr: "name is required"},
		{name: "duplicate", rooms: []RoomConfig{{Name: "A06"}, {Name: "A06 "}}, wantErr: "duplicate name 'A06'"},
		{name: "valid", rooms: []RoomConfig{{Name: "A06"}, {Name: "A07"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &RoomsConfig{Rooms: tt.rooms}
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestRoomsWatcher(t *testing.T) {
	path := writeFile(t, t.TempDir(), "rooms.yaml", "rooms:\n  - name: A06\n")

	var got [][]string
	var errs []error
	w := NewRoomsWatcher(path, time.Hour)
	w.OnUpdate = func(cfg *RoomsConfig) { got = append(got, cfg.Universe()) }
	w.OnError = func(err error) { errs = append(errs, err) }

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	require.Equal(t, [][]string{{"A06"}}, got)

	assert.False(t, w.Poll(), "unchanged file must not reload")

	require.NoError(t, os.WriteFile(path, []byte("rooms:\n  - name: A06\n  - name: Z101\n"), 0o600))
	future := time.Now().Add(time.Minute)
	require.NoError(t, os.Chtimes(path, future, future))
	assert.True(t, w.Poll())
	assert.Equal(t, []string{"A06", "Z101"}, got[len(got)-1])

	require.NoError(t, os.WriteFile(path, []byte("rooms: []\n"), 0o600))
	later := future.Add(time.Minute)
	require.NoError(t, os.Chtimes(path, later, later))
	assert.False(t, w.Poll())
	assert.Len(t, errs, 1)
	assert.Len(t, got, 2)
}

func TestRoomsWatcher_MissingFile(t *testing.T) {
	w := NewRoomsWatcher(t.TempDir()+"/absent.yaml", 0)
	assert.Error(t, w.Start(context.Background()))
}

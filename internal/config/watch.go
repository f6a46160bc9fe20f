package config

import (
	"context"
	"os"
	"time"
)

// RoomsWatcher polls rooms.yaml and publishes every valid new version.
type RoomsWatcher struct {
	path     string
	interval time.Duration
	lastMod  time.Time

	OnUpdate func(*RoomsConfig)
	// OnError receives reload failures; the previous universe stays in effect.
	OnError func(error)
}

// NewRoomsWatcher creates a watcher for path polling every interval.
func NewRoomsWatcher(path string, interval time.Duration) *RoomsWatcher {
	if path == "" {
		path = "configs/rooms.yaml"
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &RoomsWatcher{path: path, interval: interval}
}

// Start loads the file once, synchronously, and then keeps polling until ctx ends.
func (w *RoomsWatcher) Start(ctx context.Context) error {
	info, err := os.Stat(w.path)
	if err != nil {
		return err
	}
	cfg, err := LoadRoomsConfig(w.path)
	if err != nil {
		return err
	}
	w.lastMod = info.ModTime()
	w.publish(cfg)

	go func() {
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				w.Poll()
			}
		}
	}()
	return nil
}

// Poll reloads the file when its modification time moved forward.
// It reports whether a new config was published.
func (w *RoomsWatcher) Poll() bool {
	info, err := os.Stat(w.path)
	if err != nil {
		return false // file may be mid-replace
	}
	if !info.ModTime().After(w.lastMod) {
		return false
	}

	cfg, err := LoadRoomsConfig(w.path)
	if err != nil {
		if w.OnError != nil {
			w.OnError(err)
		}
		return false
	}
	w.lastMod = info.ModTime()
	w.publish(cfg)
	return true
}

func (w *RoomsWatcher) publish(cfg *RoomsConfig) {
	if w.OnUpdate != nil {
		w.OnUpdate(cfg)
	}
}

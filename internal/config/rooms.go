package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// RoomConfig is one room the service reports occupancy for.
type RoomConfig struct {
	Name     string `yaml:"name"`
	Building string `yaml:"building"`
	Floor    int    `yaml:"floor"`
	IsActive *bool  `yaml:"is_active,omitempty"`
}

// Active reports whether the room belongs to the universe; rooms are active unless disabled.
func (r RoomConfig) Active() bool {
	return r.IsActive == nil || *r.IsActive
}

// RoomsConfig is the root configuration for rooms.yaml.
type RoomsConfig struct {
	Rooms []RoomConfig `yaml:"rooms"`
}

// LoadRoomsConfig loads and validates the room universe from YAML file.
func LoadRoomsConfig(path string) (*RoomsConfig, error) {
	if path == "" {
		path = "configs/rooms.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rooms config: %w", err)
	}

	var cfg RoomsConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse rooms config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate rooms config: %w", err)
	}

	return &cfg, nil
}

// Validate checks the configuration for errors.
func (c *RoomsConfig) Validate() error {
	if len(c.Rooms) == 0 {
		return fmt.Errorf("no rooms defined")
	}

	names := make(map[string]bool)
	for i := range c.Rooms {
		name := strings.TrimSpace(c.Rooms[i].Name)
		if name == "" {
			return fmt.Errorf("room[%d]: name is required", i)
		}
		if names[name] {
			return fmt.Errorf("room[%d]: duplicate name '%s'", i, name)
		}
		names[name] = true
		c.Rooms[i].Name = name
	}
	return nil
}

// Universe returns the names of active rooms in file order.
func (c *RoomsConfig) Universe() []string {
	result := make([]string, 0, len(c.Rooms))
	for _, r := range c.Rooms {
		if r.Active() {
			result = append(result, r.Name)
		}
	}
	return result
}

// String returns a summary of the configuration.
func (c *RoomsConfig) String() string {
	return fmt.Sprintf("RoomsConfig: %d rooms (%d active)", len(c.Rooms), len(c.Universe()))
}

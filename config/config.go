package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the daemon configuration file.
type Config struct {
	// ListenAddr is the HTTP listen address.
	ListenAddr string `yaml:"listen_addr"`

	// StorePath is where device volumes and the absolute-volume
	// blacklist persist.
	StorePath string `yaml:"store_path"`

	// LogFile receives a copy of the log output in addition to
	// stdout. Empty disables file logging.
	LogFile string `yaml:"log_file"`

	Session SessionConfig `yaml:"session"`
}

// SessionConfig carries the AVRCP session tunables.
type SessionConfig struct {
	MaxConnections   int   `yaml:"max_connections"`
	QueueDepth       int   `yaml:"queue_depth"`
	VolumeStep       int   `yaml:"volume_step"`
	AbsVolThreshold  int   `yaml:"abs_vol_threshold"`
	PosUpdateFloorMs int64 `yaml:"pos_update_floor_ms"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		ListenAddr: ":5015",
		StorePath:  "/var/lib/avrcpd/state.json",
		Session: SessionConfig{
			MaxConnections:   2,
			QueueDepth:       64,
			VolumeStep:       1,
			AbsVolThreshold:  0,
			PosUpdateFloorMs: 3000,
		},
	}
}

// Load reads the YAML file at path over the defaults. A missing file
// is not an error; fields the file leaves out keep their defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.Session.MaxConnections < 1 || c.Session.MaxConnections > 2 {
		return fmt.Errorf("session.max_connections must be 1 or 2, got %d", c.Session.MaxConnections)
	}
	if c.Session.VolumeStep < 1 {
		return fmt.Errorf("session.volume_step must be positive, got %d", c.Session.VolumeStep)
	}
	if c.Session.PosUpdateFloorMs < 0 {
		return fmt.Errorf("session.pos_update_floor_ms must not be negative, got %d", c.Session.PosUpdateFloorMs)
	}
	return nil
}

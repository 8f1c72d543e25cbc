package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"clipstitch/internal/capture"
	"clipstitch/internal/preview"
)

const (
	SourceSystem    = "system"
	SourceRemote    = "remote"
	SourceReplay    = "replay"
	SourceSimulator = "simulator"
)

type AppConfig struct {
	Source       string         `yaml:"source"`
	Endpoint     string         `yaml:"endpoint"`
	ReplayPath   string         `yaml:"replay_path"`
	PollInterval time.Duration  `yaml:"poll_interval"`
	SettleDelay  time.Duration  `yaml:"settle_delay"`
	Preview      preview.Config `yaml:"preview"`
	OutputDir    string         `yaml:"output_dir"`
	CaptureLog   string         `yaml:"capture_log"`
	Serve        bool           `yaml:"serve"`
	Port         int            `yaml:"port"`
	Debug        bool           `yaml:"debug"`
	SimWidth     int            `yaml:"sim_width"`
	SimHeight    int            `yaml:"sim_height"`
}

func Default() AppConfig {
	return AppConfig{
		Source:       SourceSystem,
		Endpoint:     "tcp://localhost:31001",
		PollInterval: capture.DefaultPollInterval,
		SettleDelay:  500 * time.Millisecond,
		Preview:      preview.DefaultConfig(),
		Port:         8888,
		SimWidth:     320,
		SimHeight:    240,
	}
}

// Load reads a YAML file on top of Default.
func Load(path string) (AppConfig, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

func (c AppConfig) Validate() error {
	switch c.Source {
	case SourceSystem, SourceSimulator:
	case SourceRemote:
		if c.Endpoint == "" {
			return fmt.Errorf("endpoint is required for source %q", c.Source)
		}
	case SourceReplay:
		if c.ReplayPath == "" {
			return fmt.Errorf("replay_path is required for source %q", c.Source)
		}
	default:
		return fmt.Errorf("unsupported source %q (use system, remote, replay or simulator)", c.Source)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be > 0")
	}
	if c.SettleDelay < 0 {
		return fmt.Errorf("settle_delay must be >= 0")
	}
	if c.Preview.Width < 0 || c.Preview.Height < 0 {
		return fmt.Errorf("preview width and height must be >= 0")
	}
	if c.Preview.Timeout < 0 || c.Preview.PollInterval < 0 {
		return fmt.Errorf("preview timeout and poll_interval must be >= 0")
	}
	if c.Serve && (c.Port < 1 || c.Port > 65535) {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if c.Source == SourceSimulator && (c.SimWidth < 1 || c.SimHeight < 1) {
		return fmt.Errorf("sim_width and sim_height must be > 0")
	}
	return nil
}

package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rajeshceg3/AmbientSounds/internal/cycler"
)

type Duration time.Duration

func (d Duration) ToDuration() time.Duration { return time.Duration(d) }

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value == nil {
		*d = 0
		return nil
	}
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("duration must be a scalar")
	}

	// allow: "5s", "2m", or integer seconds
	switch value.Tag {
	case "!!int":
		i, err := strconv.ParseInt(value.Value, 10, 64)
		if err != nil {
			return err
		}
		*d = Duration(time.Duration(i) * time.Second)
		return nil
	case "!!str":
		if value.Value == "" {
			*d = 0
			return nil
		}
		if dur, err := time.ParseDuration(value.Value); err == nil {
			*d = Duration(dur)
			return nil
		}
		if i, err := strconv.ParseInt(value.Value, 10, 64); err == nil {
			*d = Duration(time.Duration(i) * time.Second)
			return nil
		}
		return fmt.Errorf("invalid duration: %q", value.Value)
	default:
		if dur, err := time.ParseDuration(value.Value); err == nil {
			*d = Duration(dur)
			return nil
		}
		return fmt.Errorf("invalid duration: %q", value.Value)
	}
}

type Config struct {
	Server ServerConfig `yaml:"server"`
	Audio  AudioConfig  `yaml:"audio"`
	Visual VisualConfig `yaml:"visual"`
	UI     UIConfig     `yaml:"ui"`
	Player PlayerConfig `yaml:"player"`
}

type ServerConfig struct {
	Bind              string   `yaml:"bind"`
	Port              int      `yaml:"port"`
	ReadHeaderTimeout Duration `yaml:"read_header_timeout"`
}

type AudioConfig struct {
	// CatalogFile points at an optional YAML sound list. Empty means the
	// built-in catalog.
	CatalogFile  string   `yaml:"catalog_file"`
	FetchTimeout Duration `yaml:"fetch_timeout"`
	Preload      bool     `yaml:"preload"`

	// Speaker plays through the local sound card in addition to the
	// browser streams.
	Speaker bool `yaml:"speaker"`
}

type VisualConfig struct {
	// Palette overrides the built-in background colors. Empty means the
	// default set.
	Palette       []cycler.Entry `yaml:"palette"`
	CycleInterval Duration       `yaml:"cycle_interval"`
}

type UIConfig struct {
	AutoHide      Duration `yaml:"auto_hide"`
	BannerDismiss Duration `yaml:"banner_dismiss"`
}

type PlayerConfig struct {
	LogLevel     string `yaml:"log_level"`
	SettingsFile string `yaml:"settings_file"`
}

func Default() Config {
	return Config{
		Server: ServerConfig{
			Bind:              "0.0.0.0",
			Port:              8080,
			ReadHeaderTimeout: Duration(5 * time.Second),
		},
		Audio: AudioConfig{
			FetchTimeout: Duration(30 * time.Second),
			Preload:      true,
			Speaker:      false,
		},
		Visual: VisualConfig{
			CycleInterval: Duration(45 * time.Second),
		},
		UI: UIConfig{
			AutoHide:      Duration(4 * time.Second),
			BannerDismiss: Duration(4500 * time.Millisecond),
		},
		Player: PlayerConfig{
			LogLevel:     "info",
			SettingsFile: "./settings.json",
		},
	}
}

func Load(path string) (Config, error) {
	cfg := Default()
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, err
	}

	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Bind == "" {
		cfg.Server.Bind = "0.0.0.0"
	}
	if cfg.Server.ReadHeaderTimeout.ToDuration() <= 0 {
		cfg.Server.ReadHeaderTimeout = Duration(5 * time.Second)
	}

	if cfg.Audio.FetchTimeout.ToDuration() <= 0 {
		cfg.Audio.FetchTimeout = Duration(30 * time.Second)
	}

	if cfg.Visual.CycleInterval.ToDuration() <= 0 {
		cfg.Visual.CycleInterval = Duration(45 * time.Second)
	}

	if cfg.UI.AutoHide.ToDuration() <= 0 {
		cfg.UI.AutoHide = Duration(4 * time.Second)
	}
	if cfg.UI.BannerDismiss.ToDuration() <= 0 {
		cfg.UI.BannerDismiss = Duration(4500 * time.Millisecond)
	}

	if cfg.Player.LogLevel == "" {
		cfg.Player.LogLevel = "info"
	}
	if cfg.Player.SettingsFile == "" {
		cfg.Player.SettingsFile = "./settings.json"
	}

	return cfg, nil
}

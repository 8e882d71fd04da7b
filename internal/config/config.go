package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config is the full MemoCapture configuration.
type Config struct {
	Audio    AudioConfig    `mapstructure:"audio" yaml:"audio"`
	Output   OutputConfig   `mapstructure:"output" yaml:"output"`
	Store    StoreConfig    `mapstructure:"store" yaml:"store"`
	Waveform WaveformConfig `mapstructure:"waveform" yaml:"waveform"`
}

type AudioConfig struct {
	SampleRate int      `mapstructure:"sample_rate" yaml:"sample_rate"`
	Channels   int      `mapstructure:"channels" yaml:"channels"`
	Source     string   `mapstructure:"source" yaml:"source"`   // capture source, e.g. "default"
	Formats    []string `mapstructure:"formats" yaml:"formats"` // preference-ordered encodings
}

type OutputConfig struct {
	Directory       string `mapstructure:"directory" yaml:"directory"`
	ExportDirectory string `mapstructure:"export_directory" yaml:"export_directory"`
}

type StoreConfig struct {
	Path         string `mapstructure:"path" yaml:"path"` // resolved to the default database path when empty
	FlushDelayMS int    `mapstructure:"flush_delay_ms" yaml:"flush_delay_ms"`
}

type WaveformConfig struct {
	MinWidth int `mapstructure:"min_width" yaml:"min_width"`
}

var defaultConfig = Config{
	Audio: AudioConfig{
		SampleRate: 48000,
		Channels:   1,
		Source:     "default",
		Formats:    []string{"audio/flac", "audio/ogg", "audio/wav"},
	},
	Output: OutputConfig{
		Directory:       filepath.Join(os.Getenv("HOME"), "Audio", "MemoCapture"),
		ExportDirectory: filepath.Join(os.Getenv("HOME"), "Audio", "MemoCapture", "Exports"),
	},
	Store: StoreConfig{
		Path:         "",
		FlushDelayMS: 100,
	},
	Waveform: WaveformConfig{
		MinWidth: 300,
	},
}

// Default returns a copy of the built-in configuration.
func Default() *Config {
	cfg := defaultConfig
	cfg.Audio.Formats = append([]string(nil), defaultConfig.Audio.Formats...)
	return &cfg
}

// Load reads the configuration file, falling back to defaults for every
// unset key. A missing file is not an error; defaults apply.
func Load(configFile string) (*Config, error) {
	cfg := Default()
	if configFile == "" {
		return cfg, nil
	}

	v := viper.New()
	v.SetConfigFile(configFile)

	v.SetDefault("audio.sample_rate", cfg.Audio.SampleRate)
	v.SetDefault("audio.channels", cfg.Audio.Channels)
	v.SetDefault("audio.source", cfg.Audio.Source)
	v.SetDefault("audio.formats", cfg.Audio.Formats)
	v.SetDefault("output.directory", cfg.Output.Directory)
	v.SetDefault("output.export_directory", cfg.Output.ExportDirectory)
	v.SetDefault("store.path", cfg.Store.Path)
	v.SetDefault("store.flush_delay_ms", cfg.Store.FlushDelayMS)
	v.SetDefault("waveform.min_width", cfg.Waveform.MinWidth)

	if err := v.ReadInConfig(); err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// Validate rejects values the capture pipeline cannot operate with.
func (c *Config) Validate() error {
	if c.Audio.SampleRate <= 0 {
		return fmt.Errorf("audio.sample_rate must be positive, got %d", c.Audio.SampleRate)
	}
	if c.Audio.Channels != 1 && c.Audio.Channels != 2 {
		return fmt.Errorf("audio.channels must be 1 or 2, got %d", c.Audio.Channels)
	}
	if c.Output.Directory == "" {
		return fmt.Errorf("output.directory must not be empty")
	}
	if c.Store.FlushDelayMS <= 0 {
		return fmt.Errorf("store.flush_delay_ms must be positive, got %d", c.Store.FlushDelayMS)
	}
	if c.Waveform.MinWidth <= 0 {
		return fmt.Errorf("waveform.min_width must be positive, got %d", c.Waveform.MinWidth)
	}
	for _, f := range c.Audio.Formats {
		if !strings.HasPrefix(f, "audio/") {
			return fmt.Errorf("audio.formats entries must be audio mime types, got %q", f)
		}
	}
	return nil
}

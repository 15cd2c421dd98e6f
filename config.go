package mcshell

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is mcshelld's on-disk configuration, the YAML counterpart to
// ServeCmd's flags. Flags always take precedence: a zero value in
// Config leaves the corresponding flag default (or flag-supplied
// value) untouched, so a config file only needs to set what it wants
// to override.
type Config struct {
	RuntimeAddr string `yaml:"runtime_addr"`
	HTTPAddr    string `yaml:"http_addr"`

	Limits struct {
		MaxStageInputBytes int64         `yaml:"max_stage_input_bytes"`
		MaxBufferBytes     int64         `yaml:"max_buffer_bytes"`
		MaxOutputBytes     int64         `yaml:"max_output_bytes"`
		SubprocessTimeout  time.Duration `yaml:"subprocess_timeout"`
		ToolTimeout        time.Duration `yaml:"tool_timeout"`
		MaxForEachItems    int           `yaml:"max_foreach_items"`
	} `yaml:"limits"`

	Servers []ServerDescriptor `yaml:"servers"`
}

// LoadConfig reads and parses a YAML config file at path. A missing
// file is not an error: it returns the zero Config so callers can
// treat "no config file" and "empty config file" identically.
func LoadConfig(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyLimits overlays cfg's non-zero limit fields onto base.
func (cfg Config) ApplyLimits(base EngineLimits) EngineLimits {
	if cfg.Limits.MaxStageInputBytes > 0 {
		base.MaxStageInputBytes = cfg.Limits.MaxStageInputBytes
	}
	if cfg.Limits.MaxBufferBytes > 0 {
		base.MaxBufferBytes = cfg.Limits.MaxBufferBytes
	}
	if cfg.Limits.MaxOutputBytes > 0 {
		base.MaxOutputBytes = cfg.Limits.MaxOutputBytes
	}
	if cfg.Limits.SubprocessTimeout > 0 {
		base.MaxSubprocessWall = cfg.Limits.SubprocessTimeout
	}
	if cfg.Limits.ToolTimeout > 0 {
		base.MaxToolWall = cfg.Limits.ToolTimeout
	}
	if cfg.Limits.MaxForEachItems > 0 {
		base.MaxForEachItems = cfg.Limits.MaxForEachItems
	}
	return base
}

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the options recognized by an upload widget
type Config struct {
	MaxFiles          int           `yaml:"max_files"`
	MaxSizeKB         int           `yaml:"max_size_kb"`
	TargetAspectRatio Ratio         `yaml:"target_aspect_ratio"`
	Accept            []string      `yaml:"accept"`
	Tolerance         float64       `yaml:"tolerance"`
	OpenDelay         time.Duration `yaml:"open_delay"`
	MaxOutputWidth    int           `yaml:"max_output_width"`
	MaxOutputHeight   int           `yaml:"max_output_height"`
	JPEGQuality       int           `yaml:"jpeg_quality"`
	DecodeConcurrency int           `yaml:"decode_concurrency"`

	// AllowExisting enables editor widgets, which mix items already stored
	// by the host with new uploads.
	AllowExisting bool `yaml:"allow_existing"`
}

// MaxSizeBytes returns the per file byte ceiling
func (c Config) MaxSizeBytes() int64 {
	return int64(c.MaxSizeKB) * 1024
}

// Load reads an optional YAML file, applies PHOTOPREP_* environment
// overrides and validates the result. An empty path skips the file; a path
// that does not exist is an error.
func Load(path string) (Config, error) {
	cfg := Default()

	if strings.TrimSpace(path) != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return Config{}, fmt.Errorf("config file not found: %s", path)
			}
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
		slog.Debug("Loaded config file", "path", path)
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

type lookupFunc func(string) (string, bool)

func (c *Config) applyEnv(lookup lookupFunc) error {
	ints := []struct {
		key string
		dst *int
	}{
		{"PHOTOPREP_MAX_FILES", &c.MaxFiles},
		{"PHOTOPREP_MAX_SIZE_KB", &c.MaxSizeKB},
		{"PHOTOPREP_MAX_OUTPUT_WIDTH", &c.MaxOutputWidth},
		{"PHOTOPREP_MAX_OUTPUT_HEIGHT", &c.MaxOutputHeight},
		{"PHOTOPREP_JPEG_QUALITY", &c.JPEGQuality},
		{"PHOTOPREP_DECODE_CONCURRENCY", &c.DecodeConcurrency},
	}
	for _, e := range ints {
		v, ok := lookup(e.key)
		if !ok || strings.TrimSpace(v) == "" {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s: %w", e.key, err)
		}
		*e.dst = n
	}

	if v, ok := lookup("PHOTOPREP_TARGET_ASPECT_RATIO"); ok && strings.TrimSpace(v) != "" {
		r, err := ParseRatio(v)
		if err != nil {
			return fmt.Errorf("PHOTOPREP_TARGET_ASPECT_RATIO: %w", err)
		}
		c.TargetAspectRatio = r
	}
	if v, ok := lookup("PHOTOPREP_ACCEPT"); ok && strings.TrimSpace(v) != "" {
		c.Accept = splitList(v)
	}
	if v, ok := lookup("PHOTOPREP_TOLERANCE"); ok && strings.TrimSpace(v) != "" {
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return fmt.Errorf("PHOTOPREP_TOLERANCE: %w", err)
		}
		c.Tolerance = f
	}
	if v, ok := lookup("PHOTOPREP_OPEN_DELAY"); ok && strings.TrimSpace(v) != "" {
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("PHOTOPREP_OPEN_DELAY: %w", err)
		}
		c.OpenDelay = d
	}
	if v, ok := lookup("PHOTOPREP_ALLOW_EXISTING"); ok && strings.TrimSpace(v) != "" {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("PHOTOPREP_ALLOW_EXISTING: %w", err)
		}
		c.AllowExisting = b
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if c.MaxFiles < 1 {
		return errors.New("max_files must be at least 1")
	}
	if c.MaxSizeKB < 1 {
		return errors.New("max_size_kb must be at least 1")
	}
	if c.TargetAspectRatio.Value() <= 0 {
		return errors.New("target_aspect_ratio must be positive")
	}
	if c.Tolerance < 0 {
		return errors.New("tolerance must not be negative")
	}
	if c.OpenDelay < 0 {
		return errors.New("open_delay must not be negative")
	}
	if c.MaxOutputWidth < 1 || c.MaxOutputHeight < 1 {
		return errors.New("max_output_width and max_output_height must be at least 1")
	}
	if c.JPEGQuality < 1 || c.JPEGQuality > 100 {
		return errors.New("jpeg_quality must be between 1 and 100")
	}
	if c.DecodeConcurrency < 1 {
		return errors.New("decode_concurrency must be at least 1")
	}
	if len(c.Accept) == 0 {
		return errors.New("accept must list at least one MIME pattern")
	}
	for _, pattern := range c.Accept {
		if err := validateMIMEPattern(pattern); err != nil {
			return err
		}
	}
	return nil
}

func validateMIMEPattern(pattern string) error {
	p := strings.TrimSpace(pattern)
	slash := strings.Index(p, "/")
	if slash <= 0 || slash == len(p)-1 {
		return fmt.Errorf("accept: invalid MIME pattern %q", pattern)
	}
	if p[:slash] == "*" && p[slash+1:] != "*" {
		return fmt.Errorf("accept: invalid MIME pattern %q", pattern)
	}
	return nil
}

package config

import "time"

const (
	DefaultMaxFiles          = 6
	DefaultMaxSizeKB         = 5000
	DefaultTolerance         = 0.01
	DefaultOpenDelay         = 300 * time.Millisecond
	DefaultMaxOutputWidth    = 1920
	DefaultMaxOutputHeight   = 1080
	DefaultJPEGQuality       = 90
	DefaultDecodeConcurrency = 4
)

// Default returns the configuration used when nothing is overridden.
func Default() Config {
	return Config{
		MaxFiles:          DefaultMaxFiles,
		MaxSizeKB:         DefaultMaxSizeKB,
		TargetAspectRatio: Ratio{W: 1, H: 1},
		Accept:            []string{"image/*"},
		Tolerance:         DefaultTolerance,
		OpenDelay:         DefaultOpenDelay,
		MaxOutputWidth:    DefaultMaxOutputWidth,
		MaxOutputHeight:   DefaultMaxOutputHeight,
		JPEGQuality:       DefaultJPEGQuality,
		DecodeConcurrency: DefaultDecodeConcurrency,
	}
}

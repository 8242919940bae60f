package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/photoprep/photoprep/internal/config"
	"github.com/photoprep/photoprep/internal/models"
)

// widgetFlags override config file and environment values when set
type widgetFlags struct {
	maxFiles  int
	maxSizeKB int
	aspect    string
	tolerance float64
}

func (f *widgetFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVar(&f.maxFiles, "max-files", 0, "Maximum number of photos per widget")
	cmd.Flags().IntVar(&f.maxSizeKB, "max-size-kb", 0, "Maximum size of a single photo in KB")
	cmd.Flags().StringVar(&f.aspect, "aspect", "", "Target aspect ratio, e.g. 1:1 or 4:3")
	cmd.Flags().Float64Var(&f.tolerance, "tolerance", 0, "Allowed absolute difference of width/height ratios")
}

// loadConfig layers defaults, the --config file, PHOTOPREP_* variables and
// command flags, in that order
func loadConfig(cmd *cobra.Command, f *widgetFlags) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, err
	}
	if f == nil {
		return cfg, nil
	}

	if cmd.Flags().Changed("max-files") {
		cfg.MaxFiles = f.maxFiles
	}
	if cmd.Flags().Changed("max-size-kb") {
		cfg.MaxSizeKB = f.maxSizeKB
	}
	if cmd.Flags().Changed("aspect") {
		ratio, err := config.ParseRatio(f.aspect)
		if err != nil {
			return config.Config{}, err
		}
		cfg.TargetAspectRatio = ratio
	}
	if cmd.Flags().Changed("tolerance") {
		cfg.Tolerance = f.tolerance
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// readPhotos loads local files; the MIME type is left for the gateway to
// sniff
func readPhotos(paths []string) ([]models.RawPhoto, error) {
	photos := make([]models.RawPhoto, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", p, err)
		}
		photos = append(photos, models.RawPhoto{
			Name: filepath.Base(p),
			Size: int64(len(data)),
			Data: data,
		})
	}
	return photos, nil
}

package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/photoprep/photoprep/internal/config"
	"github.com/photoprep/photoprep/internal/manifest"
	"github.com/photoprep/photoprep/internal/uploader"
)

func newCropCmd() *cobra.Command {
	var (
		flags        widgetFlags
		outputDir    string
		manifestPath string
	)

	cmd := &cobra.Command{
		Use:   "crop [files...]",
		Short: "Center-crop every photo that misses the target aspect ratio",
		Long: `Ingests local files and walks the pending photos in order, applying the
default centred crop to each, then writes the resulting upload list to the
output directory. Cropped photos are written as JPEG.`,
		Example: `  # Square-crop a set of photos into ./out
  photoprep crop --output out photos/*.jpg`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, &flags)
			if err != nil {
				return err
			}
			return executeCrop(cmd.Context(), cmd.OutOrStdout(), cfg, args, outputDir, manifestPath)
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "Output directory (required)")
	cmd.Flags().StringVar(&manifestPath, "manifest", "", "Write a manifest (.yaml or .parquet)")
	_ = cmd.MarkFlagRequired("output")

	return cmd
}

func executeCrop(ctx context.Context, out io.Writer, cfg config.Config, paths []string, outputDir, manifestPath string) error {
	photos, err := readPhotos(paths)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	// sessions mount synchronously so the walk below needs no timers
	cfg.OpenDelay = 0
	widget := uploader.New(cfg, uploader.Options{})
	defer widget.Reset()

	report, err := widget.Ingest(ctx, photos)
	if err != nil {
		return err
	}
	printReport(out, report)

	for widget.PendingCropCount() > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		_, index := widget.SessionState()
		if err := widget.ApplyCrop(ctx); err != nil {
			return fmt.Errorf("crop photo %d: %w", index, err)
		}
		slog.Debug("Cropped photo", "index", index)
	}

	metas, uploads := widget.Export()
	used := make(map[string]bool, len(uploads))
	for i, p := range uploads {
		dest := filepath.Join(outputDir, outputName(p.Name, i, metas[i].Edited, used))
		if err := os.WriteFile(dest, p.Data, 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", dest, err)
		}
		fmt.Fprintf(out, "%s -> %s (cropped: %v)\n", p.Name, dest, metas[i].Edited)
	}

	if manifestPath != "" {
		rows, err := manifest.Build(metas, uploads)
		if err != nil {
			return err
		}
		if err := manifest.WriteFile(manifestPath, manifest.New(cfg.TargetAspectRatio.String(), rows)); err != nil {
			return err
		}
	}
	return nil
}

// outputName picks the file name for upload i. Cropped photos become .jpg,
// and a name already taken in this batch gets the index appended.
func outputName(name string, index int, edited bool, used map[string]bool) string {
	name = filepath.Base(name)
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	if edited {
		ext = ".jpg"
	}
	candidate := stem + ext
	if used[strings.ToLower(candidate)] {
		candidate = fmt.Sprintf("%s-%d%s", stem, index, ext)
	}
	used[strings.ToLower(candidate)] = true
	return candidate
}

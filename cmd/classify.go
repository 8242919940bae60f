package cmd

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/photoprep/photoprep/internal/config"
	"github.com/photoprep/photoprep/internal/manifest"
	"github.com/photoprep/photoprep/internal/uploader"
)

func newClassifyCmd() *cobra.Command {
	var (
		flags        widgetFlags
		manifestPath string
	)

	cmd := &cobra.Command{
		Use:   "classify [files...]",
		Short: "Validate photos and report which ones need cropping",
		Long: `Runs local files through the same validation and aspect classification
an upload widget applies, and prints one line per accepted photo.`,
		Example: `  # Check a folder of photos against a square target
  photoprep classify photos/*.jpg

  # Use a 4:3 target and export a parquet manifest
  photoprep classify --aspect 4:3 --manifest out.parquet photos/*.jpg`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, &flags)
			if err != nil {
				return err
			}
			return executeClassify(cmd.Context(), cmd.OutOrStdout(), cfg, args, manifestPath)
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVar(&manifestPath, "manifest", "", "Write a manifest (.yaml or .parquet)")

	return cmd
}

func executeClassify(ctx context.Context, out io.Writer, cfg config.Config, paths []string, manifestPath string) error {
	photos, err := readPhotos(paths)
	if err != nil {
		return err
	}

	widget := uploader.New(cfg, uploader.Options{})
	defer widget.Reset()

	report, err := widget.Ingest(ctx, photos)
	if err != nil {
		return err
	}
	// classification only, nothing is cropped here
	widget.CancelCrop()

	metas, uploads := widget.Export()
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "INDEX\tNAME\tSIZE\tRATIO\tNEEDS CROP")
	for i, m := range metas {
		fmt.Fprintf(tw, "%d\t%s\t%dx%d\t%.3f\t%v\n", i, uploads[i].Name, m.Width, m.Height, m.AspectRatio(), m.NeedsCrop)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	printReport(out, report)

	if manifestPath != "" {
		rows, err := manifest.Build(metas, uploads)
		if err != nil {
			return err
		}
		if err := manifest.WriteFile(manifestPath, manifest.New(cfg.TargetAspectRatio.String(), rows)); err != nil {
			return err
		}
		fmt.Fprintf(out, "Manifest written to %s\n", manifestPath)
	}
	return nil
}

func printReport(out io.Writer, report uploader.IngestReport) {
	for _, rej := range report.Rejected {
		fmt.Fprintf(out, "Rejected %s\n", rej)
	}
	if report.Capacity != nil {
		fmt.Fprintf(out, "Dropped %d: %s\n", report.Dropped, report.Capacity)
	}
	fmt.Fprintf(out, "%d accepted, %d need cropping\n", report.Accepted, report.NeedsCrop)
}

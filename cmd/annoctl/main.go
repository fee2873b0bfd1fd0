// annoctl is the offline companion tool for annotation projects: it
// re-renders mask PNGs from saved annotation exports and prints dashboard
// statistics without starting the API server.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/annoview/annoview/internal/dashboard"
	"github.com/annoview/annoview/internal/logger"
	"github.com/annoview/annoview/internal/mask"
	"github.com/annoview/annoview/internal/models"
	"github.com/annoview/annoview/internal/paths"
	"github.com/annoview/annoview/internal/storage"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "annoctl",
		Short:        "Offline tools for annotation project directories",
		SilenceUsage: true,
	}
	root.AddCommand(newMasksCmd())
	root.AddCommand(newStatsCmd())
	return root
}

func newMasksCmd() *cobra.Command {
	var debug bool
	cmd := &cobra.Command{
		Use:   "masks <project-dir>",
		Short: "Re-render class mask PNGs from the saved annotation exports",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			zapLogger, err := logger.NewDevelopmentLogger(debug)
			if err != nil {
				return err
			}
			defer func() { _ = zapLogger.Sync() }()
			return renderMasks(args[0], storage.NewDisk(), zapLogger, cmd.OutOrStdout())
		},
	}
	cmd.Flags().BoolVar(&debug, "debug", false, "Enable debug logging")
	return cmd
}

func newStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats <project-dir>",
		Short: "Print dashboard statistics for a project directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return printStats(args[0], storage.NewDisk(), cmd.OutOrStdout())
		},
	}
	return cmd
}

// renderMasks rebuilds the mask for every image in root that has a saved
// annotation export. Images without an export, or with a broken one, are
// skipped with a warning so a single bad file cannot abort a batch run.
func renderMasks(root string, store storage.Store, zapLogger *zap.Logger, out io.Writer) error {
	images, err := store.ListImages(root)
	if err != nil {
		return err
	}
	rawConfig, _ := store.ReadFile(paths.Join(root, paths.ConfigFileName))
	dirs := paths.Resolve(root, rawConfig)

	rendered := 0
	for _, img := range images {
		var export models.AnnotationExport
		if err := storage.ReadJSON(store, dirs.AnnotationFile(img.Name), &export); err != nil {
			zapLogger.Debug("no_annotation_export", zap.String("image", img.Name))
			continue
		}
		dims, err := storage.ProbeDimensions(store, img.Path)
		if err != nil {
			zapLogger.Warn("dimension_probe_failed",
				zap.String("image", logger.SanitizePath(img.Name)),
				zap.Error(err),
			)
			continue
		}

		annotations := make([]models.Annotation, 0, len(export.Annotations))
		classIDs := make(map[string]int)
		for _, a := range export.Annotations {
			annotations = append(annotations, models.Annotation{
				ClassName: a.ClassName,
				Points:    a.Points,
			})
			if a.ClassID != nil {
				if _, ok := classIDs[a.ClassName]; !ok {
					classIDs[a.ClassName] = *a.ClassID
				}
			}
		}

		data, err := mask.RenderPNG(dims.Width, dims.Height, annotations, classIDs)
		if err != nil {
			zapLogger.Warn("mask_render_failed",
				zap.String("image", logger.SanitizePath(img.Name)),
				zap.Error(err),
			)
			continue
		}
		if err := store.WriteFile(dirs.MaskFile(img.Name), data); err != nil {
			return err
		}
		rendered++
	}

	fmt.Fprintf(out, "rendered %d mask(s) for %d image(s)\n", rendered, len(images))
	return nil
}

// printStats reads the persisted dashboard history and prints the canonical
// summary, the completion projection, and the daily activity breakdown.
func printStats(root string, store storage.Store, out io.Writer) error {
	images, err := store.ListImages(root)
	if err != nil {
		return err
	}
	rawConfig, _ := store.ReadFile(paths.Join(root, paths.ConfigFileName))
	dirs := paths.Resolve(root, rawConfig)

	var entries []models.DashboardEntry
	if err := storage.ReadJSON(store, dirs.DashboardFile(), &entries); err != nil {
		return fmt.Errorf("no dashboard history found: %w", err)
	}

	summary := dashboard.Summarize(entries)
	projection := dashboard.Project(entries, len(images))

	fmt.Fprintf(out, "Images annotated:      %d of %d\n", summary.ImageCount, len(images))
	fmt.Fprintf(out, "Total pixels:          %.0f\n", summary.TotalPixelsAnnotated)
	fmt.Fprintf(out, "Total time:            %ds (active %ds)\n", summary.TotalTimeSeconds, summary.TotalActiveSeconds)
	fmt.Fprintf(out, "Avg time per image:    %.1fs (active %.1fs)\n", summary.AverageTimeSeconds, summary.AverageActiveSeconds)
	fmt.Fprintf(out, "Avg annotations:       %.1f\n", summary.AverageAnnotationCount)
	fmt.Fprintf(out, "Remaining images:      %d\n", projection.RemainingImages)
	if projection.Basis == "time" {
		fmt.Fprintf(out, "Projected time left:   %.0fs (active %.0fs)\n", projection.ProjectedTotalSeconds, projection.ProjectedActiveSeconds)
	} else {
		fmt.Fprintf(out, "Projected pixels left: %.0f\n", projection.ProjectedPixels)
	}

	daily := dashboard.DailyActivity(entries)
	if len(daily) > 0 {
		fmt.Fprintln(out, "\nDaily activity:")
		for _, d := range daily {
			fmt.Fprintf(out, "  %s  images=%d  annotations=%d  time=%ds  active=%ds\n",
				d.Date, d.ImageCount, d.AnnotationCount, d.TotalTimeSeconds, d.ActiveSeconds)
		}
	}
	return nil
}

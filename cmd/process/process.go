// Package process provides the batch screenshot processing command
package process

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tphakala/iconscan/internal/analysis"
	"github.com/tphakala/iconscan/internal/conf"
	"github.com/tphakala/iconscan/internal/pipeline"
)

// Command creates the process command
func Command(settings *conf.Settings) *cobra.Command {
	var opts analysis.ProcessOptions

	cmd := &cobra.Command{
		Use:   "process [image|dir]...",
		Short: "Detect icons in screenshots and read their values",
		Long: `Process matches every registered template against each screenshot, reads
the number next to every accepted detection and stores the results.
Directories are expanded to supported image files in lexical order.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.OutOrStdout(), settings, args, opts)
		},
	}

	setupFlags(cmd, &opts)

	return cmd
}

func setupFlags(cmd *cobra.Command, opts *analysis.ProcessOptions) {
	cmd.Flags().BoolVarP(&opts.Recursive, "recursive", "r", false, "Recursively process subdirectories")
	cmd.Flags().BoolVar(&opts.NoVisualization, "no-viz", false, "Do not write detection overlay images")
	cmd.Flags().StringVar(&opts.Note, "note", "", "Free text stored with every detection of this run")
}

func run(out io.Writer, settings *conf.Settings, inputs []string, opts analysis.ProcessOptions) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return analysis.With(ctx, settings, func(ctx context.Context, app *analysis.App) error {
		batch, err := app.Process(ctx, inputs, opts)
		if batch != nil {
			PrintReport(out, batch, templateNames(ctx, app))
		}
		if err != nil {
			return err
		}
		if failed := batch.Failed(); failed > 0 {
			return fmt.Errorf("%d of %d images failed", failed, len(batch.Images))
		}
		return nil
	})
}

// templateNames maps template ids to names for the report. Lookup errors
// only degrade the report to ids.
func templateNames(ctx context.Context, app *analysis.App) map[uint]string {
	names := make(map[uint]string)
	templates, err := app.Store.GetAllTemplates(context.WithoutCancel(ctx))
	if err != nil {
		return names
	}
	for _, t := range templates {
		names[t.ID] = t.Name
	}
	return names
}

// PrintReport writes a human readable summary of a batch run
func PrintReport(out io.Writer, batch *pipeline.BatchReport, names map[uint]string) {
	for _, r := range batch.Images {
		if r.Failed() {
			fmt.Fprintf(out, "✗ %s: %v\n", r.Path, r.Err)
			continue
		}

		fmt.Fprintf(out, "✓ %s (%dx%d, %d detections, %s)\n",
			r.Path, r.Width, r.Height, r.Persisted(), r.Duration.Round(time.Millisecond))
		for i := range r.Detections {
			d := &r.Detections[i]
			name, ok := names[d.TemplateID]
			if !ok {
				name = fmt.Sprintf("#%d", d.TemplateID)
			}
			value := "-"
			if d.Value != nil {
				value = fmt.Sprintf("%d", *d.Value)
			}
			fmt.Fprintf(out, "    %-24s at (%d,%d) %dx%d  similarity %.3f  value %s\n",
				name, d.X, d.Y, d.Width, d.Height, d.Similarity, value)
		}
		if r.OCRFailures > 0 || r.EmptyRegions > 0 {
			fmt.Fprintf(out, "    OCR failures: %d, empty search regions: %d\n", r.OCRFailures, r.EmptyRegions)
		}
		if r.OverlayPath != "" {
			fmt.Fprintf(out, "    overlay: %s\n", r.OverlayPath)
		}
	}

	fmt.Fprintf(out, "\nRun %s: %d images processed, %d failed, %d detections in %s\n",
		batch.RunID, batch.Processed(), batch.Failed(), batch.Detections(), batch.Duration.Round(time.Millisecond))
}

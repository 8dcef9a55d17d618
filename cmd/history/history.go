// Package history provides the detection history command
package history

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/tphakala/iconscan/internal/analysis"
	"github.com/tphakala/iconscan/internal/conf"
	"github.com/tphakala/iconscan/internal/datastore"
)

// Command creates the history command
func Command(settings *conf.Settings) *cobra.Command {
	var name string
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent detections, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return analysis.With(context.Background(), settings, func(ctx context.Context, app *analysis.App) error {
				detections, err := query(ctx, app.Store, name, limit)
				if err != nil {
					return err
				}
				Print(cmd.OutOrStdout(), detections)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&name, "template", "", "Only show detections of this template")
	cmd.Flags().IntVarP(&limit, "limit", "l", 0, fmt.Sprintf("Maximum rows, default %d or %d with --template",
		datastore.DefaultRecentLimit, datastore.DefaultTemplateLimit))

	return cmd
}

func query(ctx context.Context, store datastore.Interface, name string, limit int) ([]datastore.Detection, error) {
	if name == "" {
		return store.GetRecentDetections(ctx, limit)
	}
	tmpl, err := store.GetTemplateByName(ctx, name)
	if err != nil {
		return nil, err
	}
	return store.GetDetectionsByTemplate(ctx, tmpl.ID, limit)
}

// Print writes one line per detection
func Print(out io.Writer, detections []datastore.Detection) {
	if len(detections) == 0 {
		fmt.Fprintln(out, "No detections")
		return
	}
	for i := range detections {
		d := &detections[i]
		value := "-"
		if d.Value != nil {
			value = fmt.Sprintf("%d", *d.Value)
		}
		fmt.Fprintf(out, "%s  %-24s %-10s %.3f  (%d,%d)  %s",
			d.Timestamp.In(time.Local).Format(time.DateTime), d.Template.Name, value, d.Similarity, d.X, d.Y, d.SourcePath)
		if d.Note != "" {
			fmt.Fprintf(out, "  [%s]", d.Note)
		}
		fmt.Fprintln(out)
	}
}

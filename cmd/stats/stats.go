// Package stats provides the store statistics command
package stats

import (
	"context"
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/tphakala/iconscan/internal/analysis"
	"github.com/tphakala/iconscan/internal/conf"
	"github.com/tphakala/iconscan/internal/datastore"
)

// Command creates the stats command
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show template and detection statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return analysis.With(context.Background(), settings, func(ctx context.Context, app *analysis.App) error {
				stats, err := app.Store.GetStatistics(ctx)
				if err != nil {
					return err
				}
				Print(cmd.OutOrStdout(), stats)
				return nil
			})
		},
	}

	return cmd
}

// Print writes the statistics as plain text
func Print(out io.Writer, stats *datastore.Statistics) {
	fmt.Fprintf(out, "Templates:  %d\n", stats.Templates)
	fmt.Fprintf(out, "Detections: %d\n", stats.Detections)
	fmt.Fprintf(out, "Categories: %d\n", stats.Categories)

	if len(stats.ByCategory) > 0 {
		fmt.Fprintln(out, "\nTemplates per category:")
		title := cases.Title(language.English)
		categories := make([]string, 0, len(stats.ByCategory))
		for c := range stats.ByCategory {
			categories = append(categories, c)
		}
		slices.Sort(categories)
		for _, c := range categories {
			fmt.Fprintf(out, "  %-20s %d\n", title.String(c), stats.ByCategory[c])
		}
	}

	if len(stats.PerTemplate) > 0 {
		fmt.Fprintln(out, "\nPer template:")
		for _, t := range stats.PerTemplate {
			last := "-"
			if t.LastValue != nil {
				last = fmt.Sprintf("%d", *t.LastValue)
			}
			seen := "never"
			if t.LastSeen != nil {
				seen = t.LastSeen.Format(time.DateTime)
			}
			fmt.Fprintf(out, "  %-24s %-12s %6d detections  last value %-10s %s\n",
				t.Name, t.Category, t.Detections, last, seen)
		}
	}
}

// Package template provides the template management commands
package template

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/tphakala/iconscan/internal/analysis"
	"github.com/tphakala/iconscan/internal/conf"
	"github.com/tphakala/iconscan/internal/datastore"
	"github.com/tphakala/iconscan/internal/templates"
)

// fingerprintPrefix is the number of fingerprint characters shown in listings
const fingerprintPrefix = 12

// Command creates the template command and its subcommands
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "template",
		Short: "Manage reference icon templates",
	}

	cmd.AddCommand(addCommand(settings), listCommand(settings), importCommand(settings))

	return cmd
}

func addCommand(settings *conf.Settings) *cobra.Command {
	var opts templates.RegisterOptions

	cmd := &cobra.Command{
		Use:   "add [image]",
		Short: "Register an icon image as a template",
		Long: `Add decodes the image, copies it into the template directory under its
category and stores the template. Registering the same image again updates
its name, category and threshold. The acceptance threshold defaults to
--threshold.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return analysis.With(context.Background(), settings, func(ctx context.Context, app *analysis.App) error {
				tmpl, created, err := app.Templates.RegisterFile(ctx, args[0], opts)
				if err != nil {
					return err
				}
				action := "Updated"
				if created {
					action = "Added"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s template %q (id %d, category %s, %dx%d, threshold %.2f)\n",
					action, tmpl.Name, tmpl.ID, tmpl.Category, tmpl.Width, tmpl.Height, tmpl.Threshold)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&opts.Name, "name", "n", "", "Template name, defaults to the file name")
	cmd.Flags().StringVar(&opts.Category, "category", "", "Template category, defaults to "+templates.DefaultCategory)

	return cmd
}

func listCommand(settings *conf.Settings) *cobra.Command {
	var category string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List registered templates grouped by category",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return analysis.With(context.Background(), settings, func(ctx context.Context, app *analysis.App) error {
				var list []datastore.Template
				var err error
				if category != "" {
					list, err = app.Store.GetTemplatesByCategory(ctx, category)
				} else {
					list, err = app.Store.GetAllTemplates(ctx)
				}
				if err != nil {
					return err
				}
				PrintTemplates(cmd.OutOrStdout(), list)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&category, "category", "", "Only list templates of this category")

	return cmd
}

func importCommand(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import [dir]",
		Short: "Register every image in a directory",
		Long: `Import registers each supported image under the directory. The category is
the immediate subdirectory name and the name is the file stem. A
templates.yaml manifest in the directory may override name, category and
threshold per file. Without an argument the configured template directory
is imported.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := settings.Templates.Dir
			if len(args) == 1 {
				dir = args[0]
			}
			return analysis.With(context.Background(), settings, func(ctx context.Context, app *analysis.App) error {
				res, err := app.Templates.ImportDir(ctx, dir, settings.Templates.Manifest)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Imported %s: %d added, %d updated, %d failed\n",
					dir, res.Created, res.Updated, len(res.Failed))
				for _, f := range res.Failed {
					fmt.Fprintf(out, "  failed: %s\n", f)
				}
				return nil
			})
		},
	}

	return cmd
}

// PrintTemplates writes templates grouped under a heading per category.
// The input is expected in category, name order.
func PrintTemplates(out io.Writer, list []datastore.Template) {
	if len(list) == 0 {
		fmt.Fprintln(out, "No templates registered")
		return
	}

	title := cases.Title(language.English)
	current := ""
	for i, t := range list {
		if i == 0 || t.Category != current {
			if i > 0 {
				fmt.Fprintln(out)
			}
			current = t.Category
			fmt.Fprintf(out, "%s\n", title.String(current))
		}
		fp := t.Fingerprint
		if len(fp) > fingerprintPrefix {
			fp = fp[:fingerprintPrefix]
		}
		fmt.Fprintf(out, "  %4d  %-24s %4dx%-4d  threshold %.2f  %s\n",
			t.ID, t.Name, t.Width, t.Height, t.Threshold, fp)
	}
}

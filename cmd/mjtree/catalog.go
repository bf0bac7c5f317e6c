package main

import (
	"fmt"

	"github.com/aretw0/mjtree/internal/cli"
	"github.com/aretw0/mjtree/internal/presentation/tui"
	"github.com/aretw0/mjtree/pkg/catalog"
	"github.com/spf13/cobra"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog [tag]",
	Short: "Browse the component catalog",
	Long: `Lists the MJML components known to mjtree, or documents a single one
when a tag is given: where it may be placed, what it may contain and which
attributes it edits.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		category, _ := cmd.Flags().GetString("category")
		query, _ := cmd.Flags().GetString("search")
		asJSON, _ := cmd.Flags().GetBool("json")

		cat := catalog.Default()
		var (
			payload any
			doc     string
		)
		switch {
		case len(args) == 1:
			t, ok := cat.Lookup(args[0])
			if !ok {
				return fmt.Errorf("unknown component %q", args[0])
			}
			payload, doc = t, tui.NodeTypeMarkdown(t)
		case category != "":
			types := cat.ListByCategory(category)
			if len(types) == 0 {
				return fmt.Errorf("unknown category %q: want one of %v", category, cat.ListCategories())
			}
			payload, doc = types, tui.CatalogMarkdown(types)
		default:
			types := cat.Search(query)
			payload, doc = types, tui.CatalogMarkdown(types)
		}

		out := cmd.OutOrStdout()
		if asJSON {
			return printJSON(cmd, payload)
		}
		if cli.IsTerminal(out) {
			if rendered, err := tui.NewRenderer()(doc); err == nil {
				doc = rendered
			}
		}
		fmt.Fprint(out, doc)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(catalogCmd)
	catalogCmd.Flags().StringP("category", "c", "", "Only list components of this category")
	catalogCmd.Flags().StringP("search", "s", "", "Filter by tag, name or description")
	catalogCmd.Flags().Bool("json", false, "Print as JSON")
}

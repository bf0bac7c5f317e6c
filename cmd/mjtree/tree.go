package main

import (
	"fmt"

	"github.com/aretw0/mjtree/internal/cli"
	"github.com/aretw0/mjtree/internal/presentation/graph"
	"github.com/aretw0/mjtree/internal/presentation/tui"
	"github.com/aretw0/mjtree/pkg/validate"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"
)

var treeCmd = &cobra.Command{
	Use:   "tree [file]",
	Short: "Show the component tree of the markup",
	Long: `Parses the markup and prints its component tree.

Formats:
- outline (default): indented tree with attributes and content excerpts
- mermaid: a Mermaid flowchart (graph TD)
- json: the tree as JSON

Nodes that break the nesting rules are marked in outline and mermaid output.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := ""
		if len(args) > 0 {
			path = args[0]
		}
		scope, _ := cmd.Flags().GetString("scope")
		format, _ := cmd.Flags().GetString("format")
		showIDs, _ := cmd.Flags().GetBool("ids")
		selected, _ := cmd.Flags().GetString("select")

		text, err := cli.ReadInput(path, cmd.InOrStdin())
		if err != nil {
			return err
		}

		rt, err := newRuntime(cmd)
		if err != nil {
			return err
		}
		defer rt.Close()

		tree, err := parseScope(cmd.Context(), rt, scope, text)
		if err != nil {
			return err
		}

		var res validate.Result
		if scope == "body" {
			res = rt.Engine.ValidateBody(cmd.Context(), tree)
		} else {
			res = rt.Engine.Validate(cmd.Context(), tree)
		}
		invalid := make([]string, 0, len(res.Errors))
		for _, e := range res.Errors {
			invalid = append(invalid, e.NodeID)
		}

		out := cmd.OutOrStdout()
		switch format {
		case "outline":
			o := tui.NewOutline()
			if !cli.IsTerminal(out) {
				o.Profile = termenv.Ascii
			}
			o.ShowIDs = showIDs
			o.Selected = selected
			o.Invalid = make(map[string]bool, len(invalid))
			for _, id := range invalid {
				o.Invalid[id] = true
			}
			fmt.Fprintln(out, o.Render(tree))
		case "mermaid":
			fmt.Fprint(out, graph.GenerateMermaid(tree, rt.Engine.Catalog(), &graph.Overlay{
				Selected: selected,
				Invalid:  invalid,
			}))
		case "json":
			return printJSON(cmd, tree)
		default:
			return fmt.Errorf("unknown format %q: want outline, mermaid or json", format)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(treeCmd)
	treeCmd.Flags().String("scope", "body", "Parse scope: body, fragment or document")
	treeCmd.Flags().StringP("format", "f", "outline", "Output format: outline, mermaid or json")
	treeCmd.Flags().Bool("ids", false, "Show node ids")
	treeCmd.Flags().String("select", "", "Highlight the node with this id")
}

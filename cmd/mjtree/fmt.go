package main

import (
	"fmt"
	"os"

	"github.com/aretw0/mjtree/internal/cli"
	"github.com/spf13/cobra"
)

var fmtCmd = &cobra.Command{
	Use:   "fmt [file]",
	Short: "Rewrite markup in canonical layout",
	Long: `Parses the markup and writes it back with two-space indentation,
self-closing empty elements and inline single-line content.
Reads stdin when no file is given. Use --document to wrap the result in
<mjml><mj-body>.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := ""
		if len(args) > 0 {
			path = args[0]
		}
		scope, _ := cmd.Flags().GetString("scope")
		document, _ := cmd.Flags().GetBool("document")
		write, _ := cmd.Flags().GetBool("write")

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
		var out string
		if document {
			out = rt.Engine.WrapAsDocument(cmd.Context(), tree)
		} else {
			out = rt.Engine.Serialize(cmd.Context(), tree)
		}

		if write && path != "" && path != "-" {
			if err := os.WriteFile(path, []byte(out+"\n"), 0644); err != nil {
				return fmt.Errorf("failed to write %s: %w", path, err)
			}
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), out)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(fmtCmd)
	fmtCmd.Flags().String("scope", "fragment", "Parse scope: body, fragment or document")
	fmtCmd.Flags().Bool("document", false, "Wrap the output as a complete document")
	fmtCmd.Flags().BoolP("write", "w", false, "Overwrite the input file instead of printing")
}

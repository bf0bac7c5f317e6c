package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/aretw0/mjtree"
	"github.com/aretw0/mjtree/internal/cli"
	"github.com/spf13/cobra"
)

var renderCmd = &cobra.Command{
	Use:   "render [file]",
	Short: "Convert markup to HTML through the MJML render API",
	Long: `Sends the markup to the configured render service and prints the HTML.
Credentials come from render.app_id and render.secret_key, or the
MJTREE_RENDER_APP_ID and MJTREE_RENDER_SECRET_KEY environment variables.
Markup problems reported by the service are printed to stderr.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := ""
		if len(args) > 0 {
			path = args[0]
		}
		output, _ := cmd.Flags().GetString("output")

		text, err := cli.ReadInput(path, cmd.InOrStdin())
		if err != nil {
			return err
		}

		rt, err := newRuntime(cmd)
		if err != nil {
			return err
		}
		defer rt.Close()

		res, err := rt.Engine.Render(cmd.Context(), text)
		if errors.Is(err, mjtree.ErrNoRenderer) {
			return fmt.Errorf("%w: set render.app_id and render.secret_key", err)
		}
		if err != nil {
			return err
		}

		for _, msg := range res.Errors {
			fmt.Fprintln(cmd.ErrOrStderr(), "warning:", msg)
		}
		if output != "" {
			if err := os.WriteFile(output, []byte(res.HTML), 0644); err != nil {
				return fmt.Errorf("failed to write %s: %w", output, err)
			}
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), res.HTML)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(renderCmd)
	renderCmd.Flags().StringP("output", "o", "", "Write the HTML to this file")
	renderCmd.Flags().Bool("minify", false, "Minify the HTML")
	renderCmd.Flags().Bool("sanitize", false, "Strip scripts and unsafe attributes from the HTML")
	_ = v.BindPFlag("render.minify", renderCmd.Flags().Lookup("minify"))
	_ = v.BindPFlag("render.sanitize", renderCmd.Flags().Lookup("sanitize"))
}

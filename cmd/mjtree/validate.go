package main

import (
	"errors"
	"fmt"

	"github.com/aretw0/mjtree/internal/cli"
	"github.com/aretw0/mjtree/pkg/validate"
	"github.com/spf13/cobra"
)

// errInvalid makes the command exit non-zero after the report is printed.
var errInvalid = errors.New("markup has violations")

type validateReport struct {
	validate.Result
	Attributes []validate.AttributeIssue `json:"attributes,omitempty"`
}

var validateCmd = &cobra.Command{
	Use:   "validate [file]",
	Short: "Check markup against the component nesting rules",
	Long: `Parses the markup and reports every child placed where the catalog does
not allow it, plus attribute values that do not match their declared kind.
Body scope checks top-level elements as children of mj-body; fragment scope
assumes no parent. Exits with status 1 when a violation is found.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := ""
		if len(args) > 0 {
			path = args[0]
		}
		scope, _ := cmd.Flags().GetString("scope")
		asJSON, _ := cmd.Flags().GetBool("json")

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

		var report validateReport
		if scope == "body" {
			report.Result = rt.Engine.ValidateBody(cmd.Context(), tree)
		} else {
			report.Result = rt.Engine.Validate(cmd.Context(), tree)
		}
		report.Attributes = rt.Engine.ValidateAttributes(tree)

		out := cmd.OutOrStdout()
		if asJSON {
			if err := printJSON(cmd, report); err != nil {
				return err
			}
		} else {
			for _, e := range report.Errors {
				fmt.Fprintf(out, "✗ %s [%s] %s\n", e.Tag, e.Kind, e.Message)
			}
			for _, a := range report.Attributes {
				fmt.Fprintf(out, "! %s %s=%q: %s\n", a.Tag, a.Key, a.Value, a.Reason)
			}
			if report.Valid && len(report.Attributes) == 0 {
				fmt.Fprintln(out, "✓ valid")
			}
		}

		if !report.Valid {
			cmd.SilenceErrors = true
			return errInvalid
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.Flags().String("scope", "body", "Parse scope: body, fragment or document")
	validateCmd.Flags().Bool("json", false, "Print the report as JSON")
}

package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/aretw0/mjtree/internal/cli"
	"github.com/aretw0/mjtree/pkg/domain"
	"github.com/spf13/cobra"
)

var templatesCmd = &cobra.Command{
	Use:     "templates",
	Aliases: []string{"tpl"},
	Short:   "Manage the saved template library",
	Long: `Lists, reads, saves and deletes named templates in the configured store
(memory, a directory of JSON files, or redis). Seed installs the premade
templates that ship with mjtree.`,
}

var templatesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List templates, most recently edited first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")
		return withRuntime(cmd, func(rt *cli.Runtime) error {
			list, err := rt.Engine.ListTemplates(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(cmd, list)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tMODE\tEDITED")
			for _, t := range list {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", t.Name, t.Mode, t.LastEditedAt.Local().Format(time.DateTime))
			}
			return tw.Flush()
		})
	},
}

var templatesGetCmd = &cobra.Command{
	Use:   "get NAME",
	Short: "Print the markup of a template",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")
		return withRuntime(cmd, func(rt *cli.Runtime) error {
			t, err := rt.Engine.GetTemplate(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(cmd, t)
			}
			fmt.Fprintln(cmd.OutOrStdout(), t.Markup)
			return nil
		})
	},
}

var templatesSaveCmd = &cobra.Command{
	Use:   "save NAME [file]",
	Short: "Save markup as a named template",
	Long: `Saves the markup read from file (or stdin) under NAME, replacing any
template with the same name. The markup must parse; its body tree is stored
alongside it.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		mode, _ := cmd.Flags().GetString("mode")
		path := ""
		if len(args) > 1 {
			path = args[1]
		}
		text, err := cli.ReadInput(path, cmd.InOrStdin())
		if err != nil {
			return err
		}
		return withRuntime(cmd, func(rt *cli.Runtime) error {
			saved, err := rt.Engine.SaveTemplate(cmd.Context(), &domain.Template{
				Name:   args[0],
				Markup: text,
				Mode:   domain.Mode(mode),
			})
			if err != nil {
				return err
			}
			cmd.Printf("saved %s (%d nodes)\n", saved.Name, saved.Tree.Count())
			return nil
		})
	},
}

var templatesDeleteCmd = &cobra.Command{
	Use:     "delete NAME",
	Aliases: []string{"rm"},
	Short:   "Delete a template",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRuntime(cmd, func(rt *cli.Runtime) error {
			if err := rt.Engine.DeleteTemplate(cmd.Context(), args[0]); err != nil {
				return err
			}
			cmd.Printf("deleted %s\n", args[0])
			return nil
		})
	},
}

var templatesSeedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Install the premade templates missing from the store",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRuntime(cmd, func(rt *cli.Runtime) error {
			added, err := rt.Engine.SeedTemplates(cmd.Context())
			if err != nil {
				return err
			}
			if len(added) == 0 {
				cmd.Println("library already seeded")
				return nil
			}
			for _, name := range added {
				cmd.Printf("added %s\n", name)
			}
			return nil
		})
	},
}

var templatesWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print template changes as they happen",
	Long:  `Streams saves and deletions in the file store, including files edited by hand, until interrupted.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRuntime(cmd, func(rt *cli.Runtime) error {
			sigCtx := cli.NewSignalContext(cmd.Context())
			defer sigCtx.Cancel()
			return cli.RunWatch(sigCtx, rt.Engine, cmd.OutOrStdout(), rt.Logger)
		})
	},
}

func withRuntime(cmd *cobra.Command, fn func(rt *cli.Runtime) error) error {
	rt, err := newRuntime(cmd)
	if err != nil {
		return err
	}
	defer rt.Close()
	return fn(rt)
}

func printJSON(cmd *cobra.Command, data any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

func init() {
	rootCmd.AddCommand(templatesCmd)
	templatesCmd.AddCommand(templatesListCmd, templatesGetCmd, templatesSaveCmd,
		templatesDeleteCmd, templatesSeedCmd, templatesWatchCmd)

	templatesListCmd.Flags().Bool("json", false, "Print as JSON")
	templatesGetCmd.Flags().Bool("json", false, "Print the stored template as JSON")
	templatesSaveCmd.Flags().String("mode", "", "Editor mode: visual, code or split (default code)")
}

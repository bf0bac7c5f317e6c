package main

import (
	"context"
	"fmt"
	"os"

	"github.com/aretw0/mjtree/internal/cli"
	"github.com/aretw0/mjtree/internal/config"
	"github.com/aretw0/mjtree/pkg/domain"
	"github.com/spf13/cobra"
)

var (
	v   = config.New()
	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "mjtree",
	Short: "mjtree edits MJML email templates as component trees",
	Long: `mjtree parses MJML markup into a component tree, checks it against the
component catalog, writes it back in canonical form and manages a library of
saved templates. It can also serve the same operations over HTTP and MCP.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("config")
		loaded, err := config.Load(v, path)
		if err != nil {
			return err
		}
		cfg = loaded
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		if !cli.IsInterrupted(err) {
			os.Exit(1)
		}
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "Config file (default ./mjtree.yaml)")
	flags.Bool("debug", false, "Enable debug logging")
	flags.String("log-level", "warn", "Log level: debug, info, warn or error")
	flags.String("store", "file", "Template store: memory, file or redis")
	flags.String("store-dir", ".mjtree/templates", "Directory of the file store")
	flags.String("redis-addr", "localhost:6379", "Address of the redis store")
	flags.Bool("read-only", false, "Reject template saves and deletions")

	_ = v.BindPFlag("log.level", flags.Lookup("log-level"))
	_ = v.BindPFlag("store.kind", flags.Lookup("store"))
	_ = v.BindPFlag("store.dir", flags.Lookup("store-dir"))
	_ = v.BindPFlag("store.redis.addr", flags.Lookup("redis-addr"))
	_ = v.BindPFlag("store.read_only", flags.Lookup("read-only"))
}

// newRuntime wires an engine from the loaded configuration.
func newRuntime(cmd *cobra.Command) (*cli.Runtime, error) {
	debug, _ := cmd.Flags().GetBool("debug")
	logger := cli.NewLogger(cfg.Log, debug)
	return cli.NewRuntime(cfg, logger)
}

// parseScope parses text as a document body, a bare fragment or a whole
// document. Document scope returns the root as a one-node forest.
func parseScope(ctx context.Context, rt *cli.Runtime, scope, text string) (domain.Forest, error) {
	switch scope {
	case "body":
		return rt.Engine.ParseBody(ctx, text)
	case "fragment":
		return rt.Engine.ParseFragment(ctx, text)
	case "document":
		root, err := rt.Engine.ParseDocument(ctx, text)
		if err != nil {
			return nil, err
		}
		return domain.Forest{root}, nil
	default:
		return nil, fmt.Errorf("unknown scope %q: want body, fragment or document", scope)
	}
}

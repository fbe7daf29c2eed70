package command

// root.go defines the node binary. Without a subcommand it runs the
// placeholder node; `serve` runs a real cluster member.

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"raftlab/internal/config"
	"raftlab/internal/logging"
	"raftlab/internal/node"
)

// app carries what every subcommand needs once flags and config are loaded
type app struct {
	cfg    *config.Config
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "node",
		Short: "node - a member of the leader-election cluster",
		Long: `node starts, stays up for its lifetime and shuts down again.

Use "node serve" to run a cluster member that gossips with its peers and
streams its status to connected UI clients.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			// stdout belongs to the node's own output
			a.cfg = cfg
			a.logger = logging.Setup(cmd.ErrOrStderr(), cfg.LogFormat, cfg.LogLevel)
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			lifetime := a.cfg.NodeLifetime
			if cmd.Flags().Changed("lifetime") {
				lifetime, _ = cmd.Flags().GetDuration("lifetime")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a.logger.Debug("node_stub_started", "lifetime", lifetime)
			return node.RunStub(ctx, cmd.OutOrStdout(), lifetime)
		},
	}

	rootCmd.Flags().Duration("lifetime", node.DefaultLifetime, "how long the node stays up (overrides NODE_LIFETIME)")
	rootCmd.AddCommand(newServeCmd(a))
	return rootCmd
}

// Execute runs the root command. This is called by main.main().
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// Package cli implements the awsgate command-line interface using Cobra.
// It provides the stdio tool server plus one-shot commands for listing
// profiles, selecting a profile, and running a script.
package cli

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/awsgate/awsgate/internal/config"
	"github.com/awsgate/awsgate/internal/log"
)

var (
	verbose bool
	jsonOut bool

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "awsgate",
	Short: "awsgate - scoped AWS access for AI agents",
	Long: `Awsgate gives an agent scoped access to AWS accounts.
It resolves credentials from AWS profiles (SSO first, then the legacy
provider chain) and executes agent-supplied scripts against them in an
embedded sandbox, returning a single JSON result per run.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.LoadDefault()
		if err != nil {
			return err
		}

		debugDir := filepath.Join(config.Dir(), "debug")
		if err := log.Init(log.Options{
			Verbose:       verbose,
			JSONFormat:    jsonOut,
			DebugDir:      debugDir,
			RetentionDays: cfg.Debug.RetentionDays,
		}); err != nil {
			// Log init failure is non-fatal; fall back to the default logger.
			cmd.PrintErrf("Warning: failed to initialize debug logging: %v\n", err)
		}
		return nil
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "output in JSON format")
}

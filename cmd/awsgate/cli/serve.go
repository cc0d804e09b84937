package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/awsgate/awsgate/internal/log"
	"github.com/awsgate/awsgate/internal/server"
	"github.com/awsgate/awsgate/internal/session"
	"github.com/awsgate/awsgate/internal/tools"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve tool requests over stdio",
	Long: `Serve reads line-delimited JSON tool requests from stdin and writes
one response per request to stdout. The session (selected profile and its
credentials) lives for the lifetime of the process and is never persisted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		handler := tools.New(cfg, session.New())
		srv := server.New(handler)

		log.Info("awsgate serving on stdio", "version", Version())
		return srv.Serve(ctx, os.Stdin, os.Stdout)
	},
}

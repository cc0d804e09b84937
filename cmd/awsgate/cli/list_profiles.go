package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/awsgate/awsgate/internal/awsconfig"
	"github.com/awsgate/awsgate/internal/session"
	"github.com/awsgate/awsgate/internal/tools"
)

func init() {
	rootCmd.AddCommand(listProfilesCmd)
}

var listProfilesCmd = &cobra.Command{
	Use:   "list-profiles",
	Short: "List AWS profiles from the shared configuration files",
	RunE: func(cmd *cobra.Command, args []string) error {
		handler := tools.New(cfg, session.New())

		if jsonOut {
			fmt.Println(handler.ListProfiles(cmd.Context()))
			return nil
		}

		store := awsconfig.Load(awsconfig.Options{})
		names := store.Names()
		if len(names) == 0 {
			fmt.Println("No profiles found.")
		}
		for _, name := range names {
			line := name
			if p, ok := store.Profile(name); ok && p.Region != "" {
				line = fmt.Sprintf("%s\t%s", name, p.Region)
			}
			fmt.Println(line)
		}
		if err := store.Err(); err != nil {
			cmd.PrintErrf("Warning: %v\n", err)
		}
		return nil
	},
}

package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/awsgate/awsgate/internal/session"
	"github.com/awsgate/awsgate/internal/tools"
)

var selectRegion string

func init() {
	selectProfileCmd.Flags().StringVar(&selectRegion, "region", "", "region override for this selection")
	rootCmd.AddCommand(selectProfileCmd)
}

var selectProfileCmd = &cobra.Command{
	Use:   "select-profile <profile>",
	Short: "Resolve credentials for a profile and print the caller identity",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		handler := tools.New(cfg, session.New())

		resp := handler.SelectProfile(cmd.Context(), tools.SelectProfileArgs{
			Profile: args[0],
			Region:  selectRegion,
		})
		fmt.Println(resp)

		// The session is per-process, so the real check is whether the
		// credentials work. Identity fetch failure is worth seeing but
		// should not mask a successful resolution.
		if handler.Session.Selected() {
			identity := handler.RunScript(cmd.Context(), tools.RunScriptArgs{
				Code: "return aws.sts.getCallerIdentity()",
			})
			fmt.Println(identity)
		}
		return nil
	},
}

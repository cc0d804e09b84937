package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/awsgate/awsgate/internal/session"
	"github.com/awsgate/awsgate/internal/tools"
)

var (
	runProfile string
	runRegion  string
	runFile    string
)

func init() {
	runCmd.Flags().StringVar(&runProfile, "profile", "", "profile to resolve before running")
	runCmd.Flags().StringVar(&runRegion, "region", "", "region override for this run")
	runCmd.Flags().StringVarP(&runFile, "file", "f", "", "read the script from a file (\"-\" for stdin)")
	rootCmd.AddCommand(runCmd)
}

var runCmd = &cobra.Command{
	Use:   "run [script]",
	Short: "Run one script and print its JSON result",
	Long: `Run executes a single script against the resolved credentials and
prints its JSON result. The script comes from the argument, --file, or stdin.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		code, err := scriptSource(args)
		if err != nil {
			return err
		}

		handler := tools.New(cfg, session.New())
		fmt.Println(handler.RunScript(cmd.Context(), tools.RunScriptArgs{
			Code:        code,
			ProfileName: runProfile,
			Region:      runRegion,
		}))
		return nil
	},
}

func scriptSource(args []string) (string, error) {
	if len(args) == 1 && runFile != "" {
		return "", fmt.Errorf("pass the script as an argument or via --file, not both")
	}
	if len(args) == 1 {
		return args[0], nil
	}
	if runFile == "" || runFile == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("reading script from stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(runFile)
	if err != nil {
		return "", fmt.Errorf("reading script: %w", err)
	}
	return string(data), nil
}

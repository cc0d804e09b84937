package main

import (
	"os"

	"github.com/awsgate/awsgate/cmd/awsgate/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}

package main

import (
	"os"

	"github.com/Polaris-EcoSystems/polaris-rfp-sub002/internal/cli"
)

func main() {
	if err := cli.RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

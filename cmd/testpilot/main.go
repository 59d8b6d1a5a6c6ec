package main

import (
	"fmt"
	"os"

	"github.com/runnerr0/testpilot/internal/cli"
	"github.com/runnerr0/testpilot/internal/config"
)

var version = "dev"

func main() {
	if err := config.LoadDotEnv(".env"); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}

	if err := cli.Run(version); err != nil {
		os.Exit(1)
	}
}

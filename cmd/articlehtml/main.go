package main

import (
	"os"

	"github.com/roboco-io/articlehtml/internal/cli"
)

// Set by the build: -ldflags "-X main.version=..."
var version = "dev"

func main() {
	cli.SetVersion(version)
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}

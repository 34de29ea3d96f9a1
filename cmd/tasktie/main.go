package main

import (
	"os"

	"managehub/internal/cli"
)

var Version = "dev"

func main() {
	if err := cli.Execute(Version); err != nil {
		os.Exit(1)
	}
}

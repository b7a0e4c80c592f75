package main

import (
	"os"

	"cryptic-hunt/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}

package main

import (
	"os"

	"github.com/ecoloop/ecoloop/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

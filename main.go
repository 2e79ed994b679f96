package main

import (
	"os"

	"github.com/philiporange/orac-sub000/cli/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

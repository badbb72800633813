package main

import (
	"fmt"
	"os"

	"romm-autosync/cmd"
)

// version is stamped at release time via -ldflags.
var version = "dev"

func main() {
	cmd.SetVersion(version)
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

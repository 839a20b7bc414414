package main

import (
	"fmt"
	"os"

	"github.com/dive-federation/pdp/pkg/bundlecli"
)

func main() {
	rootCmd := bundlecli.NewRootCommand()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

package main

import (
	"os"
)

// Set via ldflags: -X main.version=1.0.0
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

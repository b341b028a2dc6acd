package main

import (
	"fmt"
	"os"

	"github.com/tebeka/atexit"

	"github.com/psantana5/slowdown/cmd/slowdown/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		atexit.Exit(1)
	}
	atexit.Exit(0)
}

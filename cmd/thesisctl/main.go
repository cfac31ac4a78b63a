package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"thesiscert/internal/cli"
)

func main() {
	if err := cli.Run(os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
		os.Exit(1)
	}
}

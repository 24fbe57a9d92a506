package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"oracletom/internal/services"
)

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	if code := services.ExitCode(err); code != 0 {
		return code
	}
	return 1
}

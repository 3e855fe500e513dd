// Package main is the task tracker console client. It logs a user in,
// keeps live task and user lists in sync with other running clients
// through the notification hub, and accepts commands on stdin.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout); err != nil {
		if errors.Is(err, pflag.ErrHelp) || errors.Is(err, context.Canceled) {
			return
		}
		fmt.Fprintf(os.Stderr, "taskmanager: %v\n", err)
		os.Exit(1)
	}
}

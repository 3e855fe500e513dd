// Package main runs the standalone notification hub that relays task and
// user change signals between console clients.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "taskhub: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags(args []string) (*pflag.FlagSet, error) {
	flags := pflag.NewFlagSet("taskhub", pflag.ContinueOnError)
	registerFlags(flags)
	if err := flags.Parse(args); err != nil {
		return nil, err
	}
	return flags, nil
}

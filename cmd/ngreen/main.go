package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
)

// Version information (set by build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := newRoot().Command()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	if c, err := cmd.ExecuteContextC(ctx); err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		if _, ok := err.(usageError); ok {
			fmt.Fprintln(stderr)
			fmt.Fprintln(stderr, c.UsageString())
		}
		return exitCode(err)
	}
	return ExitSuccess
}

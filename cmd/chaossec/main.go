// Package main provides the chaossec CLI entrypoint.
//
// The CLI is the only execution entrypoint. All commands except `run`
// are read-only.
//
// Usage:
//
//	chaossec <command> [subcommand] [options]
//
// Exit codes for `run`:
//   - 0: success (validation cycle completed)
//   - 1: run failed (safety violation, step failure or cancellation)
//   - 2: invalid input or setup failure
//   - 3: persistence failure (history journal or snapshot archive)
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/chaossec-io/chaossec/cli/cmd"
	"github.com/chaossec-io/chaossec/types"
)

// Commit is set via ldflags at build time.
var commit = "unknown"

func main() {
	app := &cli.App{
		Name:           "chaossec",
		Usage:          "Autonomous cloud security validation CLI",
		Version:        fmt.Sprintf("%s (commit: %s)", types.Version, commit),
		ExitErrHandler: exitErrHandler,
		Commands: []*cli.Command{
			cmd.RunCommand(),
			cmd.HistoryCommand(),
			cmd.InspectCommand(),
			cmd.EvidenceCommand(),
			cmd.ActionsCommand(),
			cmd.VersionCommand(commit),
		},
	}

	if err := app.Run(os.Args); err != nil {
		// ExitErrHandler already handled the exit for cli.ExitCoder errors.
		// This branch handles unexpected errors that weren't wrapped.
		os.Exit(1)
	}
}

// exitErrHandler handles errors from the CLI, preserving exit codes from
// cli.Exit() so the run command's exit codes reach schedulers intact.
func exitErrHandler(_ *cli.Context, err error) {
	if err == nil {
		return
	}

	// Check for ExitCoder (from cli.Exit), handles wrapped errors
	var exitCoder cli.ExitCoder
	if errors.As(err, &exitCoder) {
		code := exitCoder.ExitCode()
		msg := exitCoder.Error()

		// cli.Exit("", N).Error() returns "exit status N", so skip those
		if msg != "" && msg != fmt.Sprintf("exit status %d", code) {
			fmt.Fprintln(os.Stderr, msg)
		}
		os.Exit(code)
	}

	// Unexpected error - print and exit with code 1
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

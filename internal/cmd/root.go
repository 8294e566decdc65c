package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

// Version is injected at build time via -ldflags
var Version = "dev"

// ExitError carries a process exit code out of a command
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("exit status %d", e.Code)
}

func (e *ExitError) Unwrap() error { return e.Err }

// ExitCode extracts the exit code from an error returned by Execute
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return 1
}

// Execute runs c and returns the process exit code. Errors other than a
// bare exit code are printed to c's error stream.
func Execute(c *cobra.Command) int {
	err := c.Execute()
	if err == nil {
		return 0
	}
	var exitErr *ExitError
	if !errors.As(err, &exitErr) || exitErr.Err != nil {
		fmt.Fprintf(c.ErrOrStderr(), "Error: %v\n", err)
	}
	return ExitCode(err)
}

// NewRootCommand creates and returns the root cobra command
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "preflight",
		Short: "SharePoint Online migration preflight scanner",
		Long: `Preflight audits a directory tree against SharePoint Online, OneDrive and
Teams limits before migration: reserved names, invalid characters, path and
name lengths, blocked extensions, file sizes, folder depth and
case-insensitive name collisions.

It never modifies the scanned tree and never contacts the tenant; every
finding is streamed to a CSV report.`,
		Version: Version,
		// Silence usage on errors to avoid duplicate help text
		SilenceUsage: true,
		// Execute prints errors; a bare exit code is not an error message
		SilenceErrors: true,
	}

	cmd.AddCommand(NewScanCommand())
	cmd.AddCommand(NewHistoryCommand())
	cmd.AddCommand(NewServeCommand())

	return cmd
}

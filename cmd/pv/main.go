// Command pv is a terminal client for the PromptVault marketplace.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/and161185/promptvault/internal/errs"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run executes one command line and returns the process exit code.
func run(ctx context.Context, args []string, in io.Reader, out, errOut io.Writer) int {
	return execute(ctx, newApp(in, out, errOut), args)
}

func execute(ctx context.Context, a *app, args []string) int {
	defer a.close()

	root := a.rootCmd()
	root.SetArgs(args)
	root.SetIn(a.in)
	root.SetOut(a.out)
	root.SetErr(a.errOut)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(a.errOut, "error:", err)
		return exitCode(err)
	}
	return 0
}

// exitCode maps the error taxonomy onto stable exit codes.
func exitCode(err error) int {
	switch {
	case errors.Is(err, errs.ErrInvalidInput):
		return 2
	case errors.Is(err, errs.ErrNotAuthenticated):
		return 3
	case errors.Is(err, errs.ErrUnauthorized):
		return 4
	case errors.Is(err, errs.ErrNotFound):
		return 5
	case errors.Is(err, errs.ErrRemoteUnavailable):
		return 6
	case errors.Is(err, errs.ErrBusy):
		return 7
	default:
		return 1
	}
}

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/and161185/promptvault/internal/errs"
	"github.com/and161185/promptvault/internal/service"
)

// terminal asks the user for input. Prompts go to out so stdout stays clean.
type terminal struct {
	in  *bufio.Reader
	out io.Writer
	fd  int // -1 unless in is an interactive terminal
}

var _ service.Onboarding = (*terminal)(nil)

func newTerminal(in io.Reader, out io.Writer) *terminal {
	fd := -1
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fd = int(f.Fd())
	}
	return &terminal{in: bufio.NewReader(in), out: out, fd: fd}
}

func (t *terminal) readLine(ctx context.Context, label string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	fmt.Fprintf(t.out, "%s: ", label)
	line, err := t.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// readSecret reads without echo when attached to a terminal.
func (t *terminal) readSecret(ctx context.Context, label string) (string, error) {
	if t.fd < 0 {
		return t.readLine(ctx, label)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	fmt.Fprintf(t.out, "%s: ", label)
	b, err := term.ReadPassword(t.fd)
	fmt.Fprintln(t.out)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// PromptNonEmpty reads one answer. End of input cancels.
func (t *terminal) PromptNonEmpty(ctx context.Context, label string) (string, error) {
	s, err := t.readLine(ctx, label)
	if err != nil {
		return "", errs.ErrCancelled
	}
	return strings.TrimSpace(s), nil
}

// PromptOptional reads one answer; blank or end of input means absent.
func (t *terminal) PromptOptional(ctx context.Context, label string) (string, bool) {
	s, err := t.readLine(ctx, label)
	s = strings.TrimSpace(s)
	if err != nil || s == "" {
		return "", false
	}
	return s, true
}

// Package output renders operator-facing terminal messages with
// optional color.
package output

import (
	"fmt"
	"io"
	"os"

	"github.com/logrusorgru/aurora"
)

// Formatter writes styled status lines. Quiet mode suppresses
// everything except errors.
type Formatter struct {
	out   io.Writer
	err   io.Writer
	quiet bool
	au    aurora.Aurora
}

// Option configures a Formatter.
type Option func(*Formatter)

// WithWriters overrides the output streams (stdout/stderr by default).
func WithWriters(out, err io.Writer) Option {
	return func(f *Formatter) {
		f.out = out
		f.err = err
	}
}

// New builds a Formatter. Colors are disabled when noColor is set.
func New(quiet, noColor bool, opts ...Option) *Formatter {
	f := &Formatter{
		out:   os.Stdout,
		err:   os.Stderr,
		quiet: quiet,
		au:    aurora.NewAurora(!noColor),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Header prints a bold section header.
func (f *Formatter) Header(format string, args ...any) {
	if f.quiet {
		return
	}
	fmt.Fprintf(f.out, "%s\n", f.au.Bold(fmt.Sprintf(format, args...)))
}

// Info prints an informational line.
func (f *Formatter) Info(format string, args ...any) {
	if f.quiet {
		return
	}
	fmt.Fprintf(f.out, "%s %s\n", f.au.Cyan("•"), fmt.Sprintf(format, args...))
}

// Step prints an in-progress step.
func (f *Formatter) Step(format string, args ...any) {
	if f.quiet {
		return
	}
	fmt.Fprintf(f.out, "%s %s\n", f.au.Blue("→"), fmt.Sprintf(format, args...))
}

// Success prints a completed-step line.
func (f *Formatter) Success(format string, args ...any) {
	if f.quiet {
		return
	}
	fmt.Fprintf(f.out, "%s %s\n", f.au.Green("✓"), fmt.Sprintf(format, args...))
}

// Warn prints a warning line.
func (f *Formatter) Warn(format string, args ...any) {
	if f.quiet {
		return
	}
	fmt.Fprintf(f.out, "%s %s\n", f.au.Yellow("!"), fmt.Sprintf(format, args...))
}

// Error prints an error line. Errors are never suppressed.
func (f *Formatter) Error(format string, args ...any) {
	fmt.Fprintf(f.err, "%s %s\n", f.au.Red("✗"), fmt.Sprintf(format, args...))
}

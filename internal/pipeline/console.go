package pipeline

import (
	"fmt"
	"io"
	"strings"

	"clipstitch/internal/types"
)

// Console prints the operator-facing progress of a run. Diagnostics go
// through slog instead.
type Console struct {
	out  io.Writer
	errw io.Writer
}

func NewConsole(out, errw io.Writer) *Console {
	return &Console{out: out, errw: errw}
}

func (c *Console) Banner(version string) {
	fmt.Fprintln(c.out, "╔═══════════════════════════════════════════════════════════╗")
	fmt.Fprintf(c.out, "║  %-57s║\n", "clipstitch "+version+" - clipboard half-swap stitcher")
	fmt.Fprintln(c.out, "╚═══════════════════════════════════════════════════════════╝")
}

func (c *Console) Separator() {
	fmt.Fprintln(c.out, strings.Repeat("=", 60))
}

func (c *Console) Step(n int, title string) {
	c.Separator()
	fmt.Fprintf(c.out, "[step %d] %s\n", n, title)
	c.Separator()
}

func (c *Console) Instructions(lines ...string) {
	fmt.Fprintln(c.out, "Please do the following:")
	for i, line := range lines {
		fmt.Fprintf(c.out, "  %d. %s\n", i+1, line)
	}
	fmt.Fprintln(c.out, "\nWatching the clipboard...")
}

func (c *Console) Info(format string, args ...any) {
	fmt.Fprintf(c.out, format+"\n", args...)
}

func (c *Console) Success(format string, args ...any) {
	fmt.Fprintf(c.out, "✓ "+format+"\n", args...)
}

func (c *Console) Warn(format string, args ...any) {
	fmt.Fprintf(c.errw, "warning: "+format+"\n", args...)
}

func (c *Console) Fail(err error) {
	fmt.Fprintf(c.errw, "✗ %v\n", err)
}

func (c *Console) Summary(saved types.SavedArtifact) {
	c.Separator()
	fmt.Fprintln(c.out, "Done.")
	fmt.Fprintf(c.out, "Final image size: %dx%d\n", saved.Width, saved.Height)
	fmt.Fprintf(c.out, "Saved to: %s\n", saved.Path)
	c.Separator()
}

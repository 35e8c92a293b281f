// Package iostreams provides testable access to standard input/output
// streams, following the GitHub CLI pattern the rest of the command tree is
// built around.
package iostreams

import (
	"bytes"
	"io"
	"os"

	"golang.org/x/term"
)

// IOStreams bundles the three standard streams together with TTY and color
// state. Commands never touch os.Stdout directly; tests swap in buffers.
type IOStreams struct {
	In     io.Reader
	Out    io.Writer
	ErrOut io.Writer

	// cached TTY checks: -1 unchecked, 0 false, 1 true
	isOutputTTY int
	isStderrTTY int

	// colorEnabled: -1 auto-detect, 0 off, 1 on
	colorEnabled int
}

// System creates an IOStreams connected to the process streams. Color is
// auto-detected from TTY state and NO_COLOR.
func System() *IOStreams {
	return &IOStreams{
		In:           os.Stdin,
		Out:          os.Stdout,
		ErrOut:       os.Stderr,
		isOutputTTY:  -1,
		isStderrTTY:  -1,
		colorEnabled: -1,
	}
}

// Test creates an IOStreams backed by in-memory buffers and returns them for
// assertions.
func Test() (ios *IOStreams, in *bytes.Buffer, out *bytes.Buffer, errOut *bytes.Buffer) {
	in = &bytes.Buffer{}
	out = &bytes.Buffer{}
	errOut = &bytes.Buffer{}
	return &IOStreams{In: in, Out: out, ErrOut: errOut}, in, out, errOut
}

// IsOutputTTY reports whether stdout is a terminal.
func (s *IOStreams) IsOutputTTY() bool {
	if s.isOutputTTY == -1 {
		s.isOutputTTY = boolToInt(isTerminal(s.Out))
	}
	return s.isOutputTTY == 1
}

// IsStderrTTY reports whether stderr is a terminal.
func (s *IOStreams) IsStderrTTY() bool {
	if s.isStderrTTY == -1 {
		s.isStderrTTY = boolToInt(isTerminal(s.ErrOut))
	}
	return s.isStderrTTY == 1
}

// ColorEnabled reports whether output may use ANSI color.
func (s *IOStreams) ColorEnabled() bool {
	if s.colorEnabled == -1 {
		if os.Getenv("NO_COLOR") != "" {
			s.colorEnabled = 0
		} else {
			s.colorEnabled = boolToInt(s.IsOutputTTY())
		}
	}
	return s.colorEnabled == 1
}

// SetColorEnabled overrides color auto-detection.
func (s *IOStreams) SetColorEnabled(enabled bool) {
	s.colorEnabled = boolToInt(enabled)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

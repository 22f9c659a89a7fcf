// Package diag implements the diagnostic context and sink: an explicit
// struct threaded as the first parameter to every analyzer/emitter error
// helper, replacing a process-scoped "current file/function/line/column"
// global with something safe to carry across translation units.
//
// The accumulator shape — a slice of (position, message) pairs whose
// Error() joins them line by line — is grounded on db47h-ngaro's
// asm/parser.go ErrAsm type, generalized from a single text/scanner
// position to the (file, line, column, function) requires.
package diag

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"cairn/internal/token"
)

// Severity distinguishes hard failures from informational notes; the error
// taxonomy itself only has hard failures, but the sink format allows for
// warnings the surrounding driver may choose to emit.
type Severity int

const (
	Error Severity = iota
	Warning
)

func (s Severity) String() string {
	if s == Warning {
		return "warning"
	}
	return "error"
}

// Diagnostic is one reported failure, carrying its own position: line,
// column, file, and the enclosing function name when there is one.
type Diagnostic struct {
	Pos      token.Pos
	Function string // "" if outside any function
	Severity Severity
	Message  string
}

func (d Diagnostic) String() string {
	if d.Function != "" {
		return fmt.Sprintf("%s: %s: %s: %s", d.Pos, d.Function, d.Severity, d.Message)
	}
	return fmt.Sprintf("%s: %s: %s", d.Pos, d.Severity, d.Message)
}

// Context is the explicit diagnostic context threaded through the
// analyzer and emitter. It is not safe for concurrent use across
// translation units.
type Context struct {
	File        string
	Function    string // current function name, "" at file scope
	diagnostics []Diagnostic
}

func NewContext(file string) *Context {
	return &Context{File: file}
}

// Errorf records a hard failure at pos and returns an error value so
// callers can both accumulate into the sink and propagate an abort signal
// up the call stack.
func (c *Context) Errorf(pos token.Pos, format string, args ...interface{}) error {
	msg := fmt.Sprintf(format, args...)
	c.diagnostics = append(c.diagnostics, Diagnostic{Pos: pos, Function: c.Function, Severity: Error, Message: msg})
	return errors.Errorf("%s: %s", pos, msg)
}

func (c *Context) Warnf(pos token.Pos, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	c.diagnostics = append(c.diagnostics, Diagnostic{Pos: pos, Function: c.Function, Severity: Warning, Message: msg})
}

func (c *Context) HasErrors() bool {
	for _, d := range c.diagnostics {
		if d.Severity == Error {
			return true
		}
	}
	return false
}

func (c *Context) Diagnostics() []Diagnostic { return c.diagnostics }

// Error implements the error interface by joining every recorded
// diagnostic as "file:line:column[: function]: severity: message", one per
// line.
func (c *Context) Error() string {
	lines := make([]string, 0, len(c.diagnostics))
	for _, d := range c.diagnostics {
		lines = append(lines, d.String())
	}
	return strings.Join(lines, "\n")
}

// Wrap annotates an underlying (I/O, allocation) failure with context,
// mirroring db47h-ngaro's errors.Wrap usage in vm/core.go and vm/io.go.
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return errors.Wrap(err, msg)
}

func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return errors.Wrapf(err, format, args...)
}

// OutOfMemory reports an allocation failure as a diagnostic rather than
// exiting the process.
func OutOfMemory(pos token.Pos) error {
	return errors.Errorf("%s: out of memory", pos)
}

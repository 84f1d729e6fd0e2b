// Package diag implements the linker's error taxonomy and colored
// diagnostic formatting.
//
// Generalizes the teacher's errors.go (ErrorLevel, ErrorCategory,
// CompilerError, hand-rolled ANSI escapes in Format) from compiler
// diagnostics (syntax/semantic/codegen errors with source locations)
// to the linker's ErrorKind taxonomy from spec §7, each carrying the
// offending path and/or address the way CompilerError carries a
// SourceLocation. Color is now github.com/fatih/color rather than
// raw escape sequences.
package diag

import (
	"fmt"

	"github.com/fatih/color"
)

// Kind is the linker's error taxonomy, per spec §7.
type Kind int

const (
	// Truncated: EOF encountered inside a fixed-width field or a
	// NUL-terminated string.
	Truncated Kind = iota
	// MalformedObject: invalid field tag (field ∉ {0,1,2}) or
	// inconsistent lengths in the on-disk format.
	MalformedObject
	// OversizedSymbol: a symbol name exceeded the safety cap.
	OversizedSymbol
	// ImageOverflow: total mem_size exceeds MEM_WORDS.
	ImageOverflow
	// UnresolvedSymbol: an import lacks a matching export when
	// producing an executable.
	UnresolvedSymbol
	// IO: open/read/write failure, path-annotated.
	IO
)

func (k Kind) String() string {
	switch k {
	case Truncated:
		return "truncated"
	case MalformedObject:
		return "malformed object"
	case OversizedSymbol:
		return "oversized symbol"
	case ImageOverflow:
		return "image overflow"
	case UnresolvedSymbol:
		return "unresolved symbol"
	case IO:
		return "I/O error"
	default:
		return "unknown error"
	}
}

// LinkError is the single error type this linker returns. All errors
// are fatal to the link (spec §7): there is no retry and no partial
// output.
type LinkError struct {
	Kind    Kind
	Path    string // object or output file this error concerns, if any
	Symbol  string // symbol name this error concerns, if any
	Address uint64 // local or global address this error concerns, if meaningful
	HasAddr bool
	Detail  string
	Cause   error
}

func (e *LinkError) Error() string {
	return e.Format(false)
}

func (e *LinkError) Unwrap() error {
	return e.Cause
}

// Format renders the error as a single line, optionally colorized the
// way the teacher's CompilerError.Format(useColor bool) does for
// compiler diagnostics.
func (e *LinkError) Format(useColor bool) string {
	kindLabel := e.Kind.String()
	if useColor {
		kindLabel = color.New(color.FgRed, color.Bold).Sprint(kindLabel)
	}

	msg := kindLabel
	if e.Path != "" {
		msg += fmt.Sprintf(": %s", e.Path)
	}
	if e.Symbol != "" {
		msg += fmt.Sprintf(" (symbol %q)", e.Symbol)
	}
	if e.HasAddr {
		msg += fmt.Sprintf(" (addr 0x%08x)", e.Address)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Cause != nil {
		msg += fmt.Sprintf(": %v", e.Cause)
	}
	return msg
}

// Truncatedf builds a Truncated error.
func Truncatedf(path, detail string, cause error) *LinkError {
	return &LinkError{Kind: Truncated, Path: path, Detail: detail, Cause: cause}
}

// Malformedf builds a MalformedObject error.
func Malformedf(path, detail string) *LinkError {
	return &LinkError{Kind: MalformedObject, Path: path, Detail: detail}
}

// Oversizedf builds an OversizedSymbol error.
func Oversizedf(path string, limit int) *LinkError {
	return &LinkError{Kind: OversizedSymbol, Path: path, Detail: fmt.Sprintf("symbol exceeds %d-byte safety limit", limit)}
}

// Overflowf builds an ImageOverflow error.
func Overflowf(total, memWords uint64) *LinkError {
	return &LinkError{Kind: ImageOverflow, Detail: fmt.Sprintf("linked image is %d words, exceeds MEM_WORDS=%d", total, memWords)}
}

// Unresolvedf builds an UnresolvedSymbol error.
func Unresolvedf(symbol string) *LinkError {
	return &LinkError{Kind: UnresolvedSymbol, Symbol: symbol}
}

// IOf builds an IO error, path-annotated per spec §5.
func IOf(path string, cause error) *LinkError {
	return &LinkError{Kind: IO, Path: path, Cause: cause}
}

// Warnf formats a non-fatal warning line, with a colorized "warning: "
// prefix like the teacher's "help"/"note" annotations, and returns it;
// the caller decides where to print it.
// Duplicate-symbol overwrite (spec §4.4 Phase 3, §7) is the canonical
// use: surfaced via this warning channel, never an error.
func Warnf(format string, args ...any) string {
	return color.New(color.FgYellow, color.Bold).Sprint("warning: ") + fmt.Sprintf(format, args...)
}

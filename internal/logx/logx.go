// Package logx wires up the linker's diagnostic logger: a human
// readable stderr stream always, fanned out to a second structured
// handler in verbose mode.
//
// Grounded in the teacher's cli.go, which writes progress lines
// directly to os.Stderr with fmt.Fprintf under a Verbose flag; this
// generalizes that into a slog.Logger so the driver can log structured
// fields (file path, symbol name, phase) instead of hand-formatted
// strings, fanned out with slogmulti.Fanout the way other tools in the
// same stack wire a second sink onto the default handler.
package logx

import (
	"io"
	"log/slog"
	"time"

	"github.com/fatih/color"
	slogmulti "github.com/samber/slog-multi"
)

// New builds the linker's logger. w receives the always-on human
// readable stream; when verbose is true a second, fully structured
// JSON handler is fanned out alongside it (useful for capturing a
// machine-parseable trace of a link while still printing the short
// form to the terminal).
func New(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}

	human := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level:     level,
		ReplaceAttr: replaceAttr,
	})

	if !verbose {
		return slog.New(human)
	}

	structured := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug})
	return slog.New(slogmulti.Fanout(human, structured))
}

// replaceAttr trims slog's default timestamp precision and colors the
// level name (red for errors, yellow for warnings), the way the
// teacher's CLI colors its error/success status lines.
func replaceAttr(groups []string, a slog.Attr) slog.Attr {
	switch a.Key {
	case slog.TimeKey:
		if t, ok := a.Value.Any().(time.Time); ok {
			a.Value = slog.StringValue(t.Format(time.RFC3339))
		}
	case slog.LevelKey:
		level, ok := a.Value.Any().(slog.Level)
		if !ok {
			return a
		}
		a.Value = slog.StringValue(colorLevel(level))
	}
	return a
}

func colorLevel(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return color.RedString(level.String())
	case level >= slog.LevelWarn:
		return color.YellowString(level.String())
	default:
		return level.String()
	}
}

// Discard returns a logger that drops everything, used by callers
// (tests, library consumers) that don't want the driver's log output.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

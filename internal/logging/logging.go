// Package logging defines the leveled log callback threaded through the
// interpreter. The core never writes to stdout itself; every recoverable
// condition is reported through a Func supplied by the host (CLI, tests, UI).
package logging

// Level classifies a log line for the host's sink.
type Level string

const (
	Debug   Level = "DEBUG"
	Info    Level = "INFO"
	Success Level = "SUCCESS"
	Warning Level = "WARNING"
	Error   Level = "ERROR"
)

// Func receives one leveled log line. Implementations must be safe to call
// from the playback goroutine.
type Func func(level Level, msg string)

// Nop discards everything.
func Nop(Level, string) {}

// Safe returns fn, or Nop when fn is nil, so callers never nil-check.
func Safe(fn Func) Func {
	if fn == nil {
		return Nop
	}
	return fn
}

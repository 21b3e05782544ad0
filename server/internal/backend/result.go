package backend

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"
)

// Outcome tags which variant of Result holds.
type Outcome int

const (
	Success Outcome = iota
	Unavailable
	NonZeroExit
	Timeout
	MalformedOutput
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case Unavailable:
		return "unavailable"
	case NonZeroExit:
		return "nonzero_exit"
	case Timeout:
		return "timeout"
	case MalformedOutput:
		return "malformed_output"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Result is the outcome of one backend run. Only the fields belonging to
// Outcome are set:
//
//	Success         Stdout, Payload (Payload is nil for Reprocess)
//	Unavailable     Path, Cause
//	NonZeroExit     ExitCode, Stderr
//	Timeout         Timeout
//	MalformedOutput Stdout, Cause
type Result struct {
	Op      string
	Outcome Outcome

	Payload json.RawMessage
	Stdout  string

	ExitCode int
	Stderr   string

	Path    string
	Cause   error
	Timeout time.Duration

	Duration time.Duration
}

// OK reports whether the run succeeded.
func (r Result) OK() bool { return r.Outcome == Success }

// Err converts a failed Result into an *Error, or nil on success.
func (r Result) Err() error {
	if r.Outcome == Success {
		return nil
	}
	return &Error{Op: r.Op, Kind: r.Outcome, result: r}
}

// Error is a failed backend run. Error() is safe to show to clients: it never
// contains stderr or raw stdout. Diagnostics returns those for server logs.
type Error struct {
	Op   string
	Kind Outcome

	result Result
}

func (e *Error) Error() string {
	r := e.result
	switch e.Kind {
	case Unavailable:
		return fmt.Sprintf("backend %s: %s not available", e.Op, filepath.Base(r.Path))
	case NonZeroExit:
		return fmt.Sprintf("backend %s: exited with code %d", e.Op, r.ExitCode)
	case Timeout:
		return fmt.Sprintf("backend %s: took longer than %s", e.Op, r.Timeout)
	case MalformedOutput:
		return fmt.Sprintf("backend %s: invalid JSON response", e.Op)
	default:
		return fmt.Sprintf("backend %s: %s", e.Op, e.Kind)
	}
}

// Unwrap exposes the underlying cause, if any.
func (e *Error) Unwrap() error { return e.result.Cause }

// Diagnostics returns slog key/value pairs with the raw details of the
// failure. They are meant for server-side logs only.
func (e *Error) Diagnostics() []any {
	r := e.result
	attrs := []any{"op", e.Op, "outcome", e.Kind.String()}
	switch e.Kind {
	case Unavailable:
		attrs = append(attrs, "path", r.Path)
	case NonZeroExit:
		attrs = append(attrs, "exit_code", r.ExitCode, "stderr", r.Stderr)
	case Timeout:
		attrs = append(attrs, "timeout", r.Timeout)
	case MalformedOutput:
		attrs = append(attrs, "stdout", r.Stdout)
	}
	if r.Cause != nil {
		attrs = append(attrs, "err", r.Cause)
	}
	return attrs
}

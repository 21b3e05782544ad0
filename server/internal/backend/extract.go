package backend

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// DefaultMarkers are the line prefixes the backend's logger emits: bracketed
// tags ("[info]"), indented continuation lines, status glyphs and ANSI
// colour escapes.
var DefaultMarkers = []string{"[", " ", "\t", "✓", "⚠", "✗", "ℹ", "\x1b"}

var (
	// ErrNoPayload means every stdout line looked like logging.
	ErrNoPayload = errors.New("no JSON line in backend output")

	// ErrNotObject means the candidate line was valid JSON but not an object.
	ErrNotObject = errors.New("backend payload is not a JSON object")
)

// IsLogLine reports whether line is backend logging rather than payload.
func IsLogLine(line string, markers []string) bool {
	if line == "" {
		return true
	}
	for _, m := range markers {
		if strings.HasPrefix(line, m) {
			return true
		}
	}
	return false
}

// ExtractJSON returns the first non-log line of stdout, compacted. The line
// must decode as a JSON object; anything else is an error and the caller
// reports MalformedOutput. A nil markers slice means DefaultMarkers.
func ExtractJSON(stdout string, markers []string) (json.RawMessage, error) {
	if markers == nil {
		markers = DefaultMarkers
	}
	for _, line := range strings.Split(strings.TrimSpace(stdout), "\n") {
		line = strings.TrimSuffix(line, "\r")
		if IsLogLine(line, markers) {
			continue
		}
		var buf bytes.Buffer
		if err := json.Compact(&buf, []byte(line)); err != nil {
			return nil, fmt.Errorf("decode backend payload: %w", err)
		}
		if buf.Len() == 0 || buf.Bytes()[0] != '{' {
			return nil, ErrNotObject
		}
		return json.RawMessage(buf.Bytes()), nil
	}
	return nil, ErrNoPayload
}

package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
)

// DefaultTeam is used when no Default is supplied to New.
const DefaultTeam = "coding"

// ErrInvalidTeam is returned by Set for identifiers that cannot survive the
// comma-joined raw form.
var ErrInvalidTeam = errors.New("invalid team identifier")

// Selection is the current team selection. Teams is never empty.
type Selection struct {
	Teams []string `json:"teams"`
	Raw   string   `json:"raw"`
}

// Reprocessor regenerates the visualization data for a set of teams.
// A non-nil error means the data was not regenerated.
type Reprocessor interface {
	Reprocess(ctx context.Context, teams []string) error
}

// ReprocessorFunc adapts a function to Reprocessor.
type ReprocessorFunc func(ctx context.Context, teams []string) error

func (f ReprocessorFunc) Reprocess(ctx context.Context, teams []string) error { return f(ctx, teams) }

// Options configures a Store.
type Options struct {
	// Default replaces an empty selection (default "coding").
	Default string

	// Initial is the raw selection at startup, e.g. "coding,ui" or "{coding,ui}".
	Initial string

	// ArtifactPath is removed before every reprocess. Empty disables removal.
	ArtifactPath string

	// Reprocessor is run synchronously by Set. Nil skips reprocessing.
	Reprocessor Reprocessor
}

// Store is the process-wide team selection.
type Store struct {
	def       string
	artifact  string
	reprocess Reprocessor

	cur atomic.Pointer[Selection]

	setMu sync.Mutex // serializes Set end to end

	subMu sync.RWMutex
	subs  []func(Selection)
}

// New creates a Store seeded from opts.Initial.
func New(opts Options) *Store {
	def := opts.Default
	if def == "" {
		def = DefaultTeam
	}
	s := &Store{def: def, artifact: opts.ArtifactPath, reprocess: opts.Reprocessor}
	sel := ParseRaw(opts.Initial, def)
	s.cur.Store(&sel)
	return s
}

// Get returns the current selection.
func (s *Store) Get() Selection {
	sel := s.cur.Load()
	return Selection{Teams: append([]string(nil), sel.Teams...), Raw: sel.Raw}
}

// Set replaces the selection with requested. Empty input selects the default
// team. The previous selection stays in place if reprocessing fails; the
// returned error then wraps the reprocessor's error.
func (s *Store) Set(ctx context.Context, requested []string) (Selection, error) {
	teams := make([]string, 0, len(requested))
	for _, t := range requested {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if strings.ContainsAny(t, ",{}") {
			return Selection{}, fmt.Errorf("%w: %q", ErrInvalidTeam, t)
		}
		teams = append(teams, t)
	}
	if len(teams) == 0 {
		teams = []string{s.def}
	}
	next := Selection{Teams: teams, Raw: strings.Join(teams, ",")}

	s.setMu.Lock()
	defer s.setMu.Unlock()

	if s.artifact != "" {
		if err := os.Remove(s.artifact); err != nil && !errors.Is(err, os.ErrNotExist) {
			slog.Warn("store: could not remove artifact", "path", s.artifact, "err", err)
		}
	}

	if s.reprocess != nil {
		if err := s.reprocess.Reprocess(ctx, teams); err != nil {
			return Selection{}, fmt.Errorf("switch to %s: %w", next.Raw, err)
		}
	}

	s.cur.Store(&next)
	slog.Info("store: team selection changed", "teams", next.Raw)
	s.notify(next)
	return s.Get(), nil
}

// Subscribe registers fn to be called after every successful Set. fn runs
// while Set still holds its lock and must not call Set.
func (s *Store) Subscribe(fn func(Selection)) {
	s.subMu.Lock()
	s.subs = append(s.subs, fn)
	s.subMu.Unlock()
}

func (s *Store) notify(sel Selection) {
	s.subMu.RLock()
	subs := slices.Clone(s.subs)
	s.subMu.RUnlock()
	for _, fn := range subs {
		fn(Selection{Teams: append([]string(nil), sel.Teams...), Raw: sel.Raw})
	}
}

// ParseRaw parses the environment form of a selection. Braces are ignored,
// entries are comma separated and trimmed, empties are dropped, and an empty
// result becomes def. Raw keeps the input unless it was blank.
func ParseRaw(raw, def string) Selection {
	cleaned := strings.NewReplacer("{", "", "}", "").Replace(raw)
	var teams []string
	for _, t := range strings.Split(cleaned, ",") {
		if t = strings.TrimSpace(t); t != "" {
			teams = append(teams, t)
		}
	}
	if len(teams) == 0 {
		teams = []string{def}
	}
	if strings.TrimSpace(raw) == "" {
		raw = strings.Join(teams, ",")
	}
	return Selection{Teams: teams, Raw: raw}
}

package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/memviz/memviz/server/internal/backend"
)

// Listing strategies.
const (
	ModeOnline    = "online"
	ModeLocalScan = "local-scan"
)

// File naming convention of per-team exports.
const (
	filePrefix = "shared-memory-"
	fileSuffix = ".json"
)

// Querier runs a backend query. *backend.Proxy satisfies it.
type Querier interface {
	Query(ctx context.Context, queryType string, params map[string]any) backend.Result
}

// Options configures a Resolver.
type Options struct {
	// Mode is ModeOnline or ModeLocalScan.
	Mode string

	// ExportDir holds shared-memory-<team>.json files (local-scan).
	ExportDir string

	// Default is listed first and used for the fallback record.
	Default string

	// InsightTypes overrides DefaultInsightTypes.
	InsightTypes []string

	// Querier answers the "teams" query (online).
	Querier Querier
}

// Resolver lists available teams.
type Resolver struct {
	mode     string
	dir      string
	def      string
	insights map[string]bool
	querier  Querier

	watching atomic.Bool

	mu     sync.Mutex
	gen    uint64
	cached []Team
}

// New creates a Resolver. An unknown mode falls back to local-scan.
func New(opts Options) *Resolver {
	types := opts.InsightTypes
	if len(types) == 0 {
		types = DefaultInsightTypes
	}
	insights := make(map[string]bool, len(types))
	for _, t := range types {
		insights[t] = true
	}
	mode := opts.Mode
	if mode != ModeOnline {
		mode = ModeLocalScan
	}
	def := opts.Default
	if def == "" {
		def = "coding"
	}
	return &Resolver{
		mode:     mode,
		dir:      opts.ExportDir,
		def:      def,
		insights: insights,
		querier:  opts.Querier,
	}
}

// Mode returns the active listing strategy.
func (r *Resolver) Mode() string { return r.mode }

// List returns the available teams. Online errors are *backend.Error values
// or decode failures; local-scan never fails.
func (r *Resolver) List(ctx context.Context) ([]Team, error) {
	if r.mode == ModeOnline {
		return r.online(ctx)
	}
	return r.local(), nil
}

// --- online -----------------------------------------------------------------

type onlineTeam struct {
	Name         string  `json:"name"`
	DisplayName  string  `json:"displayName"`
	EntityCount  float64 `json:"entityCount"`
	LastActivity any     `json:"lastActivity"`
}

func (r *Resolver) online(ctx context.Context) ([]Team, error) {
	if r.querier == nil {
		return nil, fmt.Errorf("directory: no backend configured for online listing")
	}
	res := r.querier.Query(ctx, "teams", map[string]any{})
	if !res.OK() {
		return nil, res.Err()
	}

	var payload struct {
		Available []onlineTeam `json:"available"`
	}
	if err := json.Unmarshal(res.Payload, &payload); err != nil {
		return nil, fmt.Errorf("directory: decode teams response: %w", err)
	}

	teams := make([]Team, 0, len(payload.Available))
	for _, t := range payload.Available {
		if t.Name == "" {
			continue
		}
		display := t.DisplayName
		if display == "" {
			display = Title(t.Name)
		}
		teams = append(teams, Team{
			Name:         t.Name,
			DisplayName:  display,
			Description:  display + " knowledge from GraphDB",
			Entities:     int(t.EntityCount),
			LastActivity: activity(t.LastActivity),
		})
	}
	if len(teams) == 0 {
		slog.Warn("directory: backend listed no teams, using default team")
		return []Team{fallback(r.def)}, nil
	}
	return teams, nil
}

// activity normalizes the backend's lastActivity, which is either an
// ISO-8601 string or epoch milliseconds.
func activity(v any) string {
	switch v := v.(type) {
	case string:
		return v
	case float64:
		return time.UnixMilli(int64(v)).UTC().Format(time.RFC3339)
	default:
		return ""
	}
}

// --- local-scan -------------------------------------------------------------

func (r *Resolver) local() []Team {
	if !r.watching.Load() {
		return r.scan()
	}

	r.mu.Lock()
	if r.cached != nil {
		out := append([]Team(nil), r.cached...)
		r.mu.Unlock()
		return out
	}
	gen := r.gen
	r.mu.Unlock()

	teams := r.scan()

	r.mu.Lock()
	if r.gen == gen && r.watching.Load() {
		r.cached = append([]Team(nil), teams...)
	}
	r.mu.Unlock()
	return teams
}

func (r *Resolver) invalidate() {
	r.mu.Lock()
	r.gen++
	r.cached = nil
	r.mu.Unlock()
}

func (r *Resolver) scan() []Team {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		slog.Warn("directory: cannot list export directory, using default team",
			"dir", r.dir, "err", err)
		return []Team{fallback(r.def)}
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if name, ok := TeamFromFile(e.Name()); ok {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return []Team{fallback(r.def)}
	}

	sort.Slice(names, func(i, j int) bool {
		if (names[i] == r.def) != (names[j] == r.def) {
			return names[i] == r.def
		}
		return names[i] < names[j]
	})

	teams := make([]Team, 0, len(names))
	for _, name := range names {
		teams = append(teams, r.readTeam(name))
	}
	return teams
}

// TeamFromFile extracts the team identifier from an export file name.
// Legacy backups (shared-memory-x-backup.json, shared-memory-x.backup.json)
// are not teams.
func TeamFromFile(file string) (string, bool) {
	if !strings.HasPrefix(file, filePrefix) || !strings.HasSuffix(file, fileSuffix) {
		return "", false
	}
	if strings.HasSuffix(file, "-backup"+fileSuffix) || strings.HasSuffix(file, ".backup"+fileSuffix) {
		return "", false
	}
	name := strings.TrimSuffix(strings.TrimPrefix(file, filePrefix), fileSuffix)
	if name == "" {
		return "", false
	}
	return name, true
}

type exportFile struct {
	Entities []struct {
		EntityType string `json:"entityType"`
	} `json:"entities"`
	Metadata struct {
		Description string `json:"description"`
		LastUpdated string `json:"last_updated"`
	} `json:"metadata"`
}

func (r *Resolver) readTeam(name string) Team {
	t := fallback(name)
	path := filepath.Join(r.dir, filePrefix+name+fileSuffix)

	if info, err := os.Stat(path); err == nil {
		t.LastActivity = info.ModTime().UTC().Format(time.RFC3339)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		slog.Warn("directory: read team file", "team", name, "err", err)
		return t
	}
	var f exportFile
	if err := json.Unmarshal(data, &f); err != nil {
		slog.Warn("directory: parse team file", "team", name, "err", err)
		return t
	}

	for _, e := range f.Entities {
		if r.insights[e.EntityType] {
			t.Entities++
		}
	}
	if f.Metadata.Description != "" {
		t.Description = f.Metadata.Description
	}
	if f.Metadata.LastUpdated != "" {
		t.LastActivity = f.Metadata.LastUpdated
	}
	return t
}

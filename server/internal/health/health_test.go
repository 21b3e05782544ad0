package health

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

type fixedSampler struct {
	cpu, mem float64
	err      error
}

func (f fixedSampler) Sample(context.Context) (float64, float64, error) { return f.cpu, f.mem, f.err }

func newReporter(t *testing.T, exportDir string, s Sampler) *Reporter {
	t.Helper()
	r := New(Options{Port: 9090, KBPath: "/kb", ExportDir: exportDir, Sampler: s})
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	r.started = start
	r.now = func() time.Time { return start.Add(90 * time.Second) }
	return r
}

func TestSnapshot_Basics(t *testing.T) {
	r := newReporter(t, t.TempDir(), fixedSampler{cpu: 12.5, mem: 40})
	s := r.Snapshot(context.Background())

	if s.Status != "healthy" {
		t.Errorf("Status: got %q", s.Status)
	}
	if s.Server.Port != 9090 {
		t.Errorf("Port: got %d", s.Server.Port)
	}
	if s.Server.PID != os.Getpid() {
		t.Errorf("PID: got %d", s.Server.PID)
	}
	if s.Server.Uptime != 90 {
		t.Errorf("Uptime: got %v, want 90", s.Server.Uptime)
	}
	if s.Timestamp != 1735689690 {
		t.Errorf("Timestamp: got %v", s.Timestamp)
	}
	if s.System.CPUPercent != 12.5 || s.System.MemoryPercent != 40 {
		t.Errorf("System: got %+v", s.System)
	}
	if s.KnowledgeBase.Path != "/kb" {
		t.Errorf("KnowledgeBase.Path: got %q", s.KnowledgeBase.Path)
	}
	if s.Warning != "" {
		t.Errorf("Warning: got %q", s.Warning)
	}
}

func TestSnapshot_ListsJSONFiles(t *testing.T) {
	dir := t.TempDir()
	for name, body := range map[string]string{
		"shared-memory-ui.json":     `{"a":1}`,
		"shared-memory-coding.json": `{}`,
		"README.md":                 `# export`,
	} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o600); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "archive.json"), 0o700); err != nil {
		t.Fatal(err)
	}

	s := newReporter(t, dir, nil).Snapshot(context.Background())
	files := s.KnowledgeBase.Files
	if len(files) != 2 {
		t.Fatalf("Files: got %+v, want 2", files)
	}
	if files[0].Name != "shared-memory-coding.json" || files[1].Name != "shared-memory-ui.json" {
		t.Errorf("order: got %s, %s", files[0].Name, files[1].Name)
	}
	if files[1].Size != 7 {
		t.Errorf("Size: got %d, want 7", files[1].Size)
	}
	if files[1].LastModified <= 0 {
		t.Errorf("LastModified: got %v", files[1].LastModified)
	}
}

func TestSnapshot_SamplerFailureZeroes(t *testing.T) {
	s := newReporter(t, t.TempDir(), fixedSampler{cpu: 99, err: errors.New("no /proc")}).Snapshot(context.Background())
	if s.System.CPUPercent != 0 || s.System.MemoryPercent != 0 {
		t.Errorf("System: got %+v, want zeros", s.System)
	}
	if s.Status != "healthy" {
		t.Errorf("Status: got %q", s.Status)
	}
}

func TestSnapshot_MissingExportDirWarns(t *testing.T) {
	s := newReporter(t, filepath.Join(t.TempDir(), "missing"), nil).Snapshot(context.Background())
	if !strings.HasPrefix(s.Warning, "Could not check knowledge base files") {
		t.Errorf("Warning: got %q", s.Warning)
	}
	if s.KnowledgeBase.Files == nil {
		t.Error("Files must encode as [] not null")
	}
}

func TestSnapshot_JSONShape(t *testing.T) {
	s := newReporter(t, t.TempDir(), nil).Snapshot(context.Background())
	data, err := json.Marshal(s)
	if err != nil {
		t.Fatal(err)
	}
	var m map[string]any
	json.Unmarshal(data, &m) //nolint:errcheck
	for _, key := range []string{"status", "timestamp", "server", "system", "knowledge_base"} {
		if _, ok := m[key]; !ok {
			t.Errorf("missing key %q in %s", key, data)
		}
	}
	if _, ok := m["warning"]; ok {
		t.Error("warning should be omitted when empty")
	}
	if files := m["knowledge_base"].(map[string]any)["files"]; files == nil {
		t.Error("files: got null")
	}
}

func TestHostSampler_DoesNotPanic(t *testing.T) {
	cpu, mem, err := HostSampler{}.Sample(context.Background())
	if err != nil {
		t.Skipf("host metrics unavailable: %v", err)
	}
	if cpu < 0 || mem < 0 || mem > 100 {
		t.Errorf("out of range: cpu=%v mem=%v", cpu, mem)
	}
}

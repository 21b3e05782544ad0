package health

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"time"
)

// StatusHealthy is the only status the server reports about itself.
const StatusHealthy = "healthy"

// Snapshot is the health document.
type Snapshot struct {
	Status        string        `json:"status"`
	Timestamp     float64       `json:"timestamp"`
	Server        ServerInfo    `json:"server"`
	System        SystemInfo    `json:"system"`
	KnowledgeBase KnowledgeBase `json:"knowledge_base"`
	Warning       string        `json:"warning,omitempty"`
}

// ServerInfo describes this process.
type ServerInfo struct {
	Port   int     `json:"port"`
	PID    int     `json:"pid"`
	Uptime float64 `json:"uptime"`
}

// SystemInfo holds host utilisation, zero when unavailable.
type SystemInfo struct {
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryPercent float64 `json:"memory_percent"`
}

// KnowledgeBase lists the exported knowledge files.
type KnowledgeBase struct {
	Path  string `json:"path"`
	Files []File `json:"files"`
}

// File is one exported knowledge file. LastModified is in Unix seconds.
type File struct {
	Name         string  `json:"name"`
	Size         int64   `json:"size"`
	LastModified float64 `json:"last_modified"`
}

// Sampler reports host CPU and memory utilisation in percent.
type Sampler interface {
	Sample(ctx context.Context) (cpuPercent, memPercent float64, err error)
}

// Options configures a Reporter.
type Options struct {
	Port      int
	KBPath    string
	ExportDir string
	Sampler   Sampler // nil reports zeros
}

// Reporter assembles Snapshots.
type Reporter struct {
	port      int
	kbPath    string
	exportDir string
	sampler   Sampler
	started   time.Time
	now       func() time.Time // injectable for tests
}

// New creates a Reporter; uptime is measured from this call.
func New(opts Options) *Reporter {
	return &Reporter{
		port:      opts.Port,
		kbPath:    opts.KBPath,
		exportDir: opts.ExportDir,
		sampler:   opts.Sampler,
		started:   time.Now(),
		now:       time.Now,
	}
}

// Snapshot builds a new health document.
func (r *Reporter) Snapshot(ctx context.Context) Snapshot {
	now := r.now()
	s := Snapshot{
		Status:    StatusHealthy,
		Timestamp: unixSeconds(now),
		Server: ServerInfo{
			Port:   r.port,
			PID:    os.Getpid(),
			Uptime: now.Sub(r.started).Seconds(),
		},
		KnowledgeBase: KnowledgeBase{Path: r.kbPath, Files: []File{}},
	}

	if r.sampler != nil {
		cpu, mem, err := r.sampler.Sample(ctx)
		if err != nil {
			slog.Debug("health: system metrics unavailable", "err", err)
		} else {
			s.System = SystemInfo{CPUPercent: cpu, MemoryPercent: mem}
		}
	}

	files, err := listFiles(r.exportDir)
	if err != nil {
		s.Warning = fmt.Sprintf("Could not check knowledge base files: %v", err)
	} else {
		s.KnowledgeBase.Files = files
	}
	return s
}

func listFiles(dir string) ([]File, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	files := []File{}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			// Removed between ReadDir and Info.
			continue
		}
		files = append(files, File{
			Name:         e.Name(),
			Size:         info.Size(),
			LastModified: unixSeconds(info.ModTime()),
		})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, nil
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

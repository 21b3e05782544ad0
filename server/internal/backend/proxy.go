package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"sort"
	"strings"
	"time"
)

const (
	// waitDelay bounds how long Wait keeps reading pipes after the child is
	// killed, in case a stray descendant still holds them open.
	waitDelay = 2 * time.Second

	unknownError = "Unknown error"
)

// Invocation fully describes one subprocess call.
type Invocation struct {
	Command string
	Args    []string
	Dir     string
	Env     map[string]string
	Timeout time.Duration
}

// Options configures a Proxy.
type Options struct {
	Interpreter    string
	QueryScript    string
	ProcessCLI     string
	ProjectRoot    string
	ExportDir      string
	QueryTimeout   time.Duration
	ProcessTimeout time.Duration

	// Markers is the log-line prefix set passed to ExtractJSON.
	// Nil means DefaultMarkers.
	Markers []string

	// Observe, if set, is called once per Query or Reprocess.
	Observe func(op string, outcome Outcome)
}

// Proxy invokes the backend executables.
type Proxy struct {
	opts Options
}

// New returns a Proxy for the given options.
func New(opts Options) *Proxy {
	return &Proxy{opts: opts}
}

// Query asks the backend for queryType, passing params as a JSON object.
// Values are strings or string slices, as produced from a URL query.
func (p *Proxy) Query(ctx context.Context, queryType string, params map[string]any) Result {
	op := queryType
	if !exists(p.opts.QueryScript) {
		return p.finish(Result{Op: op, Outcome: Unavailable, Path: p.opts.QueryScript})
	}

	if params == nil {
		params = map[string]any{}
	}
	encoded, err := json.Marshal(params)
	if err != nil {
		return p.finish(Result{Op: op, Outcome: MalformedOutput, Cause: fmt.Errorf("encode params: %w", err)})
	}

	res := Run(ctx, Invocation{
		Command: p.opts.Interpreter,
		Args:    []string{p.opts.QueryScript, queryType, string(encoded)},
		Dir:     p.opts.ProjectRoot,
		Env:     map[string]string{"KNOWLEDGE_EXPORT_DIR": p.opts.ExportDir},
		Timeout: p.opts.QueryTimeout,
	})
	res.Op = op
	if res.Outcome == Success {
		payload, err := ExtractJSON(res.Stdout, p.opts.Markers)
		if err != nil {
			res.Outcome = MalformedOutput
			res.Cause = err
		} else {
			res.Payload = payload
		}
	}
	return p.finish(res)
}

// Reprocess regenerates the visualization data for teams. Success only
// depends on the exit code; stdout is not parsed.
func (p *Proxy) Reprocess(ctx context.Context, teams []string) Result {
	const op = "reprocess"
	if !exists(p.opts.ProcessCLI) {
		return p.finish(Result{Op: op, Outcome: Unavailable, Path: p.opts.ProcessCLI})
	}
	res := Run(ctx, Invocation{
		Command: p.opts.Interpreter,
		Args:    []string{p.opts.ProcessCLI, "data", "process"},
		Dir:     p.opts.ProjectRoot,
		Env: map[string]string{
			"KNOWLEDGE_VIEW":       strings.Join(teams, ","),
			"KNOWLEDGE_EXPORT_DIR": p.opts.ExportDir,
		},
		Timeout: p.opts.ProcessTimeout,
	})
	res.Op = op
	return p.finish(res)
}

func (p *Proxy) finish(res Result) Result {
	if err, ok := res.Err().(*Error); ok {
		slog.Warn("backend: run failed", err.Diagnostics()...)
	} else {
		slog.Debug("backend: run finished", "op", res.Op, "duration", res.Duration)
	}
	if p.opts.Observe != nil {
		p.opts.Observe(res.Op, res.Outcome)
	}
	return res
}

// Run executes inv and classifies the outcome. It never returns
// MalformedOutput; payload extraction is the caller's job. The run is
// detached from ctx cancellation but keeps its values.
func Run(ctx context.Context, inv Invocation) Result {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), inv.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, inv.Command, append([]string(nil), inv.Args...)...)
	cmd.Dir = inv.Dir
	cmd.Env = mergeEnv(os.Environ(), inv.Env)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = waitDelay
	setProcessGroup(cmd)

	start := time.Now()
	err := cmd.Run()
	res := Result{Duration: time.Since(start)}

	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		res.Outcome = Timeout
		res.Timeout = inv.Timeout
		return res
	}
	if errors.Is(err, exec.ErrWaitDelay) && cmd.ProcessState != nil && cmd.ProcessState.Success() {
		err = nil
	}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		res.Outcome = Success
		res.Stdout = stdout.String()
	case errors.As(err, &exitErr):
		res.Outcome = NonZeroExit
		res.ExitCode = exitErr.ExitCode()
		res.Stderr = strings.TrimSpace(stderr.String())
		if res.Stderr == "" {
			res.Stderr = unknownError
		}
	default:
		// The interpreter itself could not be started.
		res.Outcome = Unavailable
		res.Path = inv.Command
		res.Cause = err
	}
	return res
}

func exists(path string) bool {
	st, err := os.Stat(path)
	return err == nil && !st.IsDir()
}

// mergeEnv returns base with overrides applied. Overridden keys are removed
// from base so the child sees exactly one value.
func mergeEnv(base []string, overrides map[string]string) []string {
	if len(overrides) == 0 {
		return base
	}
	out := make([]string, 0, len(base)+len(overrides))
	for _, kv := range base {
		k, _, _ := strings.Cut(kv, "=")
		if _, ok := overrides[k]; ok {
			continue
		}
		out = append(out, kv)
	}
	keys := make([]string, 0, len(overrides))
	for k := range overrides {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		out = append(out, k+"="+overrides[k])
	}
	return out
}

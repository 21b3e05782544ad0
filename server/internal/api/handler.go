package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/memviz/memviz/server/internal/backend"
	"github.com/memviz/memviz/server/internal/directory"
	"github.com/memviz/memviz/server/internal/health"
	"github.com/memviz/memviz/server/internal/metrics"
	"github.com/memviz/memviz/server/internal/store"
)

// maxBodyBytes bounds POST bodies.
const maxBodyBytes = 1 << 20

// Querier runs a backend query. *backend.Proxy satisfies it.
type Querier interface {
	Query(ctx context.Context, queryType string, params map[string]any) backend.Result
}

// TeamLister lists selectable teams. *directory.Resolver satisfies it.
type TeamLister interface {
	List(ctx context.Context) ([]directory.Team, error)
}

// HealthReporter builds health snapshots. *health.Reporter satisfies it.
type HealthReporter interface {
	Snapshot(ctx context.Context) health.Snapshot
}

// Options wires the handler to its collaborators. Store, Backend, Teams and
// Health are required.
type Options struct {
	Store   *store.Store
	Backend Querier
	Teams   TeamLister
	Health  HealthReporter

	// Metrics counts requests and serves /metrics when set.
	Metrics *metrics.Registry

	// Push is mounted at /ws/teams when set.
	Push http.Handler

	// DataSource is reported by GET /api/config.
	DataSource string

	// ServeDir is the root of the static file fallback.
	ServeDir string

	// ProjectRoot is the root /knowledge-management/* files are served from.
	ProjectRoot string
}

// Handler routes every request of the server.
type Handler struct {
	opts   Options
	static http.Handler
	router chi.Router
}

// New creates the Handler and registers all routes.
func New(opts Options) *Handler {
	h := &Handler{
		opts:   opts,
		static: http.FileServer(http.Dir(opts.ServeDir)),
	}

	r := chi.NewRouter()
	r.Use(cors, middleware.GetHead, requestID, h.observe, recoverer)

	r.Get("/api/config", h.config)
	r.Get("/api/current-teams", h.currentTeams)
	r.Get("/api/available-teams", h.availableTeams)
	r.Get("/api/teams", h.availableTeams)
	r.Post("/api/teams", h.setTeams)
	for _, q := range []string{"entities", "relations", "stats"} {
		r.Get("/api/"+q, h.query(q))
	}
	r.Get("/health", h.health)
	r.Get("/api/health", h.health)
	r.Get("/knowledge-management/*", h.knowledgeFile)
	if opts.Metrics != nil {
		r.Get("/metrics", opts.Metrics.ServeHTTP)
	}
	if opts.Push != nil {
		r.Get("/ws/teams", opts.Push.ServeHTTP)
	}

	r.NotFound(h.fallback)
	r.MethodNotAllowed(h.fallback)

	h.router = r
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

// --- route handlers ---------------------------------------------------------

// config returns GET /api/config.
func (h *Handler) config(w http.ResponseWriter, r *http.Request) {
	jsonResp(w, http.StatusOK, ConfigResponse{
		DataSource:    h.opts.DataSource,
		KnowledgeView: h.opts.Store.Get().Raw,
	})
}

// currentTeams returns GET /api/current-teams.
func (h *Handler) currentTeams(w http.ResponseWriter, r *http.Request) {
	jsonResp(w, http.StatusOK, h.opts.Store.Get())
}

// availableTeams returns GET /api/available-teams and GET /api/teams.
func (h *Handler) availableTeams(w http.ResponseWriter, r *http.Request) {
	teams, err := h.opts.Teams.List(r.Context())
	if err != nil {
		writeError(w, r, err, nil)
		return
	}
	if teams == nil {
		teams = []directory.Team{}
	}
	jsonResp(w, http.StatusOK, AvailableTeamsResponse{Available: teams})
}

// setTeams handles POST /api/teams. It blocks until the backend has
// regenerated the visualization data.
func (h *Handler) setTeams(w http.ResponseWriter, r *http.Request) {
	failed := false

	var req SetTeamsRequest
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		jsonResp(w, http.StatusBadRequest, errorResponse{
			Success: &failed,
			Error:   "Invalid request body",
			Message: err.Error(),
		})
		return
	}

	sel, err := h.opts.Store.Set(r.Context(), req.Teams)
	if err != nil {
		writeError(w, r, err, &failed)
		return
	}
	jsonResp(w, http.StatusOK, SetTeamsResponse{
		Success: true,
		Teams:   sel.Teams,
		Message: "Switched to teams: " + sel.Raw,
	})
}

// query proxies GET /api/<queryType> to the backend. The backend's JSON
// object is written through unchanged.
func (h *Handler) query(queryType string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res := h.opts.Backend.Query(r.Context(), queryType, queryParams(r.URL.Query()))
		if err := res.Err(); err != nil {
			writeError(w, r, err, nil)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write(res.Payload) //nolint:errcheck
	}
}

// health returns GET /health. It always answers 200.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	jsonResp(w, http.StatusOK, h.opts.Health.Snapshot(r.Context()))
}

// fallback serves static files for GET and HEAD; anything else is 404.
func (h *Handler) fallback(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet || r.Method == http.MethodHead {
		h.static.ServeHTTP(w, r)
		return
	}
	jsonResp(w, http.StatusNotFound, errorResponse{
		Error:   "Not Found",
		Message: "no route for " + r.Method + " " + r.URL.Path,
	})
}

// --- helpers ----------------------------------------------------------------

// queryParams converts a URL query to backend params: a key given once maps
// to a string, a repeated key to a list of strings.
func queryParams(q url.Values) map[string]any {
	params := make(map[string]any, len(q))
	for k, v := range q {
		if len(v) == 1 {
			params[k] = v[0]
		} else {
			params[k] = v
		}
	}
	return params
}

// writeError maps err to a status code and writes the error envelope.
// success is included in the body when non-nil.
func writeError(w http.ResponseWriter, r *http.Request, err error, success *bool) {
	code, title, msg := classify(err)
	if code == http.StatusInternalServerError {
		slog.Error("api: request failed", "path", r.URL.Path, "request_id", RequestID(r.Context()), "err", err)
	}
	jsonResp(w, code, errorResponse{Success: success, Error: title, Message: msg})
}

func classify(err error) (code int, title, msg string) {
	var be *backend.Error
	switch {
	case errors.As(err, &be):
		switch be.Kind {
		case backend.Unavailable:
			return http.StatusServiceUnavailable, "Backend not available", err.Error()
		case backend.Timeout:
			return http.StatusGatewayTimeout, "Backend timed out", err.Error()
		case backend.MalformedOutput:
			return http.StatusInternalServerError, "Invalid JSON response from backend", err.Error()
		default:
			return http.StatusInternalServerError, "Backend command failed", err.Error()
		}
	case errors.Is(err, store.ErrInvalidTeam):
		return http.StatusBadRequest, "Invalid team", err.Error()
	default:
		return http.StatusInternalServerError, "Internal server error", "the request could not be completed"
	}
}

func jsonResp(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, title, msg string) {
	jsonResp(w, code, errorResponse{Error: title, Message: msg})
}

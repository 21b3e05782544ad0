package metrics

import (
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"sync"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"google.golang.org/protobuf/proto"
)

// Family names.
const (
	RequestsTotal = "memviz_http_requests_total"
	BackendTotal  = "memviz_backend_invocations_total"
)

type labelPair struct{ a, b string }

// Registry holds the server's counters. The zero value is not usable; call New.
type Registry struct {
	mu       sync.Mutex
	requests map[labelPair]float64
	backend  map[labelPair]float64
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{
		requests: make(map[labelPair]float64),
		backend:  make(map[labelPair]float64),
	}
}

// ObserveRequest counts one HTTP response. route is the matched route
// pattern, not the raw path, to keep label cardinality bounded.
func (r *Registry) ObserveRequest(route string, code int) {
	r.mu.Lock()
	r.requests[labelPair{route, strconv.Itoa(code)}]++
	r.mu.Unlock()
}

// ObserveBackend counts one backend invocation.
func (r *Registry) ObserveBackend(operation, outcome string) {
	r.mu.Lock()
	r.backend[labelPair{operation, outcome}]++
	r.mu.Unlock()
}

// Families returns a point-in-time copy of all counters.
func (r *Registry) Families() []*dto.MetricFamily {
	r.mu.Lock()
	defer r.mu.Unlock()
	return []*dto.MetricFamily{
		counterFamily(RequestsTotal, "HTTP responses by route and status code.", "route", "code", r.requests),
		counterFamily(BackendTotal, "Backend executable runs by operation and outcome.", "operation", "outcome", r.backend),
	}
}

// ServeHTTP writes the text exposition.
func (r *Registry) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	format := expfmt.NewFormat(expfmt.TypeTextPlain)
	w.Header().Set("Content-Type", string(format))
	enc := expfmt.NewEncoder(w, format)
	for _, mf := range r.Families() {
		if len(mf.GetMetric()) == 0 {
			continue
		}
		if err := enc.Encode(mf); err != nil {
			slog.Error("metrics: encode family", "family", mf.GetName(), "err", err)
			return
		}
	}
}

func counterFamily(name, help, keyA, keyB string, values map[labelPair]float64) *dto.MetricFamily {
	keys := make([]labelPair, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].a != keys[j].a {
			return keys[i].a < keys[j].a
		}
		return keys[i].b < keys[j].b
	})

	mf := &dto.MetricFamily{
		Name: proto.String(name),
		Help: proto.String(help),
		Type: dto.MetricType_COUNTER.Enum(),
	}
	for _, k := range keys {
		mf.Metric = append(mf.Metric, &dto.Metric{
			Label: []*dto.LabelPair{
				{Name: proto.String(keyA), Value: proto.String(k.a)},
				{Name: proto.String(keyB), Value: proto.String(k.b)},
			},
			Counter: &dto.Counter{Value: proto.Float64(values[k])},
		})
	}
	return mf
}

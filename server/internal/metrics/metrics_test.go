package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
)

func scrape(t *testing.T, r *Registry) map[string]*dto.MetricFamily {
	t.Helper()
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("Content-Type: got %q", ct)
	}
	var parser expfmt.TextParser
	mfs, err := parser.TextToMetricFamilies(rec.Body)
	if err != nil {
		t.Fatalf("parse exposition: %v", err)
	}
	return mfs
}

// sum adds up all counter values in mf. A nil family sums to 0.
func sum(mf *dto.MetricFamily) float64 {
	if mf == nil {
		return 0
	}
	var total float64
	for _, m := range mf.GetMetric() {
		total += m.GetCounter().GetValue()
	}
	return total
}

func label(m *dto.Metric, name string) string {
	for _, lp := range m.GetLabel() {
		if lp.GetName() == name {
			return lp.GetValue()
		}
	}
	return ""
}

func TestRegistry_Empty(t *testing.T) {
	if mfs := scrape(t, New()); len(mfs) != 0 {
		t.Errorf("families: got %d, want 0", len(mfs))
	}
}

func TestRegistry_CountsRequests(t *testing.T) {
	r := New()
	r.ObserveRequest("/api/teams", 200)
	r.ObserveRequest("/api/teams", 200)
	r.ObserveRequest("/api/teams", 500)
	r.ObserveRequest("/health", 200)

	mf := scrape(t, r)[RequestsTotal]
	if mf == nil {
		t.Fatal("requests family missing")
	}
	if mf.GetType() != dto.MetricType_COUNTER {
		t.Errorf("type: got %v", mf.GetType())
	}
	if sum(mf) != 4 {
		t.Errorf("sum: got %v, want 4", sum(mf))
	}
	if len(mf.GetMetric()) != 3 {
		t.Fatalf("series: got %d, want 3", len(mf.GetMetric()))
	}
	first := mf.GetMetric()[0]
	if label(first, "route") != "/api/teams" || label(first, "code") != "200" || first.GetCounter().GetValue() != 2 {
		t.Errorf("first series: got %v", first)
	}
}

func TestRegistry_CountsBackend(t *testing.T) {
	r := New()
	r.ObserveBackend("entities", "success")
	r.ObserveBackend("reprocess", "timeout")

	mf := scrape(t, r)[BackendTotal]
	if sum(mf) != 2 {
		t.Fatalf("sum: got %v, want 2", sum(mf))
	}
	got := map[string]string{}
	for _, m := range mf.GetMetric() {
		got[label(m, "operation")] = label(m, "outcome")
	}
	if got["entities"] != "success" || got["reprocess"] != "timeout" {
		t.Errorf("labels: got %v", got)
	}
}

func TestRegistry_ConcurrentObserve(t *testing.T) {
	r := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.ObserveRequest("/health", 200)
		}()
	}
	wg.Wait()
	if got := sum(r.Families()[0]); got != 50 {
		t.Errorf("sum: got %v, want 50", got)
	}
}

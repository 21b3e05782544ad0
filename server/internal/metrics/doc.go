// Package metrics counts HTTP requests and backend invocations and exposes
// them in the Prometheus text format at GET /metrics.
//
// Exposed families:
//
//	memviz_http_requests_total{route,code}
//	memviz_backend_invocations_total{operation,outcome}
package metrics

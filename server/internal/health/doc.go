// Package health builds the snapshot served by GET /health.
//
// A snapshot is assembled fresh for every call and never fails: an
// unavailable CPU/memory source yields zeros, and an unreadable export
// directory is reported in the Warning field.
package health

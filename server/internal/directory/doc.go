// Package directory lists the teams a client can select.
//
// Two strategies exist and one is picked by configuration:
//
//   - online asks the backend executable for a "teams" query.
//   - local-scan lists shared-memory-<team>.json files in the export
//     directory and counts each team's insight entities.
//
// A local-scan listing never comes back empty: when the export directory
// cannot be read, a single record for the default team is returned instead.
//
// Watch keeps a cached local-scan listing for as long as the export directory
// is being watched with fsnotify, and drops it on every change.
package directory

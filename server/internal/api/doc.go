// Package api is the HTTP front door of memviz.
//
// New(opts) returns a Handler that routes with exact paths:
//
//	GET  /api/config                   {dataSource, knowledgeView}
//	GET  /api/current-teams            {teams, raw}
//	GET  /api/available-teams          {available: [Team]} (also /api/teams)
//	POST /api/teams                    {teams} -> {success, teams, message}
//	GET  /api/entities|relations|stats backend query; query string -> params
//	GET  /health, /api/health          health snapshot, always 200
//	GET  /knowledge-management/*       file under the project root
//	GET  /metrics                      Prometheus text exposition
//	GET  /ws/teams                     WebSocket selection push
//
// Any other GET is served from the static directory; any other method is a
// 404 JSON error. OPTIONS on any path answers 200 with no body, and every
// response carries permissive CORS headers.
//
// Failures use the envelope {error, message}. Backend failures map to 503
// (script missing), 504 (timeout) or 500 (non-zero exit, unparseable
// output); their stderr and raw stdout are only logged.
package api

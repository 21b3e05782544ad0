// Package backend runs the external knowledge backend as a one-shot
// subprocess and turns its output into a Result.
//
// Two operations exist:
//
//	Query(ctx, queryType, params)  <interpreter> <queryScript> <queryType> <json>
//	Reprocess(ctx, teams)          <interpreter> <processCLI> data process
//
// Every run is bounded by a timeout. On expiry the child's whole process group
// is killed and the result is Timeout. Runs are detached from the caller's
// cancellation, so a client that hangs up does not abort an in-flight run.
//
// The backend prints logging and exactly one JSON line on stdout. ExtractJSON
// picks that line out with a forward scan: lines that are empty or start with
// one of the log markers are skipped, and the first remaining line must be a
// JSON object. The marker set is a parameter; DefaultMarkers matches the
// backend's own logger.
package backend

// Package store holds the active team selection shared by all handlers.
//
// Reads are lock-free. Set is serialized: it clears the cached visualization
// artifact, runs the reprocessor and only then publishes the new selection,
// so the stored selection always describes the regenerated artifact.
package store

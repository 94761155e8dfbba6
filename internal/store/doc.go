// Package store persists sources, revisions, branch policies, sequence
// counters, and deferred PDF jobs in SQLite. It is the single writer for
// pipeline state; object blobs and fossil repositories live elsewhere and
// are referenced by key.
package store

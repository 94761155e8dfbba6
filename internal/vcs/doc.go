// Package vcs manages the per-source Fossil repositories that hold revision
// history. Each (work, source) pair gets its own repository file; commits go
// through short-lived checkouts that are always removed afterwards, so the
// repository file is the only durable state.
package vcs

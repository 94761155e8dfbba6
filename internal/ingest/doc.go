// Package ingest orchestrates one revision upload end to end: validation,
// raw storage, classification, sequence allocation, the conversion cascade,
// the version-control commit, the branch policy gate, and persistence.
//
// Failure handling follows a strict split. Hard failures (oversize payload,
// unsupported format, policy violations) reject the upload before a revision
// record exists. Everything else degrades: tool failures become manifest
// notes, a failed commit leaves the revision pending, and the caller always
// gets a persisted revision back.
package ingest

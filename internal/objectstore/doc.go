// Package objectstore stores immutable byte blobs keyed by (bucket, key).
//
// Three bucket classes exist: raw uploads, derivative artifacts, and
// auxiliary blobs (reference PDFs, cached diff output). Put returns a
// Locator describing the written blob; locators are immutable and embedded
// verbatim into manifests and revision records. Two backends are provided:
// a filesystem store for self-hosted deployments and an Azure Blob store,
// selected by configuration.
package objectstore

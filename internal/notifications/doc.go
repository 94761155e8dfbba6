// Package notifications delivers fire-and-forget push notifications via
// ntfy.
//
// The ingestion pipeline only enqueues approval requests here; delivery
// mechanics stay out of the pipeline's failure semantics: a failed send is
// logged by the caller and never affects a revision. With no topic
// configured a noop implementation is returned.
package notifications

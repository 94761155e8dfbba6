// Package imslp fetches the file inventory of an IMSLP work page so the
// pipeline can verify generated PDFs against known-good reference files.
//
// Only the MediaWiki imageinfo surface is consumed: page title in, PDF file
// descriptors (URL, size, SHA-1, MIME) out. Lookups are best-effort with
// bounded retries; a failed lookup never affects an ingestion run beyond a
// missing reference note.
package imslp

// Package manifest models the structured record of one pipeline run: the
// artifacts produced, the tooling that produced them, and an append-only
// note log of step outcomes.
//
// Notes are tagged entries rather than free text so tests and the MuseScore
// rejection guard can match on step and outcome exactly. The manifest is
// serialized to JSON and stored as its own blob; pending=true means the run
// ended without a canonical XML document.
package manifest

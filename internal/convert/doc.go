// Package convert runs the conversion cascade that turns one uploaded score
// file into derivative artifacts.
//
// External tools are invoked through a fallback runner: an ordered list of
// candidate binary names is tried until one succeeds, each invocation
// bounded by a timeout that kills the whole process group on expiry. Every
// step records its outcome as a manifest note and the cascade continues with
// whatever inputs remain; only the absence of canonical XML at the end marks
// the run pending. Tool version lookups are memoized for the lifetime of
// the engine.
package convert

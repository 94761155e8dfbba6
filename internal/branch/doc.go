// Package branch defines branch records, branch-name normalization, and the
// policy decision that gates new revisions.
//
// The default branch ("trunk", matching Fossil's) always logically exists:
// resolving a (work, source, name) without an explicit record yields the
// public policy. Normalization is applied on every read and write of a
// branch name and is idempotent under repeated application.
package branch

// Package services defines the error taxonomy shared by pipeline components.
//
// Components tag failures with one of the exported sentinel markers via Wrap
// so callers can classify outcomes with errors.Is without string matching.
// Validation and policy errors reject a request before any mutation; tool and
// commit errors are absorbed by the pipeline and recorded as manifest notes.
package services

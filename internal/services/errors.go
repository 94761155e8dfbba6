package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrValidation marks requests rejected before any storage write:
	// missing file, oversize payload, unsupported format.
	ErrValidation = errors.New("validation error")
	// ErrPayloadTooLarge marks uploads exceeding the configured size limit.
	ErrPayloadTooLarge = errors.New("payload too large")
	// ErrUnsupportedFormat marks uploads whose format cannot be classified.
	ErrUnsupportedFormat = errors.New("unsupported format")
	// ErrExternalTool marks non-zero exits from converter subprocesses.
	ErrExternalTool = errors.New("external tool error")
	// ErrNoCanonicalDocument marks containers holding no canonical XML entry.
	ErrNoCanonicalDocument = errors.New("no canonical document")
	// ErrTimeout marks subprocess invocations killed at their deadline.
	ErrTimeout = errors.New("timeout")
	// ErrCommit marks failures from the version-control commit manager.
	ErrCommit = errors.New("commit error")
	// ErrPolicy marks submissions an actor is not allowed to make.
	ErrPolicy = errors.New("policy error")
	// ErrNotFound marks lookups for records or blobs that do not exist.
	ErrNotFound = errors.New("not found")
	// ErrConfiguration marks invalid or missing configuration.
	ErrConfiguration = errors.New("configuration error")
)

// Wrap builds an error message carrying component context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrExternalTool
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// IsHardFailure reports whether an error must abort an ingestion request
// rather than degrade it to a pending revision.
func IsHardFailure(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrPayloadTooLarge) ||
		errors.Is(err, ErrUnsupportedFormat) ||
		errors.Is(err, ErrPolicy)
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}

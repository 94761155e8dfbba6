package services_test

import (
	"errors"
	"strings"
	"testing"

	"partita/internal/services"
)

func TestWrapTagsMarker(t *testing.T) {
	base := errors.New("exit status 1")
	err := services.Wrap(services.ErrExternalTool, "convert", "export", "mscore failed", base)
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool marker, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatal("expected wrapped cause to be preserved")
	}
	for _, fragment := range []string{"convert", "export", "mscore failed"} {
		if !strings.Contains(err.Error(), fragment) {
			t.Fatalf("error %q missing fragment %q", err, fragment)
		}
	}
}

func TestWrapDefaultsMarker(t *testing.T) {
	err := services.Wrap(nil, "convert", "", "", nil)
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected default marker, got %v", err)
	}
}

func TestIsHardFailure(t *testing.T) {
	cases := []struct {
		err  error
		hard bool
	}{
		{services.Wrap(services.ErrValidation, "ingest", "validate", "empty upload", nil), true},
		{services.Wrap(services.ErrPayloadTooLarge, "ingest", "validate", "too big", nil), true},
		{services.Wrap(services.ErrUnsupportedFormat, "format", "resolve", "no match", nil), true},
		{services.Wrap(services.ErrPolicy, "branch", "gate", "anonymous actor", nil), true},
		{services.Wrap(services.ErrCommit, "vcs", "commit", "fossil failed", nil), false},
		{services.Wrap(services.ErrExternalTool, "convert", "pdf", "no binary", nil), false},
		{services.Wrap(services.ErrTimeout, "convert", "export", "killed", nil), false},
	}
	for _, tc := range cases {
		if got := services.IsHardFailure(tc.err); got != tc.hard {
			t.Fatalf("IsHardFailure(%v) = %v, want %v", tc.err, got, tc.hard)
		}
	}
}

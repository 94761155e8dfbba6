package notifications_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"partita/internal/config"
	"partita/internal/notifications"
)

func TestNoopWhenUnconfigured(t *testing.T) {
	cfg := config.Default()
	service := notifications.NewService(&cfg)
	if err := service.NotifyApprovalRequested(context.Background(), "w", "s", "trunk", "owner", "rev"); err != nil {
		t.Fatalf("noop service returned error: %v", err)
	}
}

func TestNtfyApprovalRequest(t *testing.T) {
	var gotTitle, gotBody, gotPriority string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotTitle = r.Header.Get("Title")
		gotPriority = r.Header.Get("Priority")
		buf := make([]byte, r.ContentLength)
		_, _ = r.Body.Read(buf)
		gotBody = string(buf)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	service := notifications.NewService(&cfg)

	err := service.NotifyApprovalRequested(context.Background(), "work-1", "source-1", "edition", "owner-1", "rev-9")
	if err != nil {
		t.Fatalf("NotifyApprovalRequested: %v", err)
	}
	if !strings.Contains(gotTitle, "Approval Requested") {
		t.Fatalf("unexpected title %q", gotTitle)
	}
	if gotPriority != "high" {
		t.Fatalf("expected high priority, got %q", gotPriority)
	}
	for _, fragment := range []string{"rev-9", "work-1", "source-1", "edition", "owner-1"} {
		if !strings.Contains(gotBody, fragment) {
			t.Fatalf("body %q missing %q", gotBody, fragment)
		}
	}
}

func TestNtfyErrorStatusSurfaces(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	service := notifications.NewService(&cfg)

	if err := service.TestNotification(context.Background()); err == nil {
		t.Fatal("expected error for non-2xx response")
	}
}

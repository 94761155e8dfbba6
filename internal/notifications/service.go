package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"partita/internal/config"
)

const userAgent = "Partita/0.1.0"

// Service defines the notification surface exposed to pipeline components.
type Service interface {
	// NotifyApprovalRequested enqueues an approval request for the branch owner.
	NotifyApprovalRequested(ctx context.Context, workID, sourceID, branchName, ownerUserID, revisionID string) error
	// NotifyRevisionApproved announces an approval decision.
	NotifyRevisionApproved(ctx context.Context, workID, sourceID, revisionID, decidedBy string) error
	// NotifyIngestCompleted announces a finished ingestion run.
	NotifyIngestCompleted(ctx context.Context, workID, sourceID string, seq int, pending bool) error
	// NotifyError announces a pipeline error.
	NotifyError(ctx context.Context, err error, contextLabel string) error
	// TestNotification sends a connectivity probe.
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}
	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
}

func (n *ntfyService) NotifyApprovalRequested(ctx context.Context, workID, sourceID, branchName, ownerUserID, revisionID string) error {
	data := payload{
		title: "Partita - Approval Requested",
		message: fmt.Sprintf("Revision %s on %s/%s branch %s awaits approval by %s",
			revisionID, workID, sourceID, branchName, ownerUserID),
		tags:     []string{"partita", "approval", "requested"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyRevisionApproved(ctx context.Context, workID, sourceID, revisionID, decidedBy string) error {
	data := payload{
		title:   "Partita - Revision Approved",
		message: fmt.Sprintf("Revision %s on %s/%s approved by %s", revisionID, workID, sourceID, decidedBy),
		tags:    []string{"partita", "approval", "decided"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyIngestCompleted(ctx context.Context, workID, sourceID string, seq int, pending bool) error {
	state := "accepted"
	if pending {
		state = "pending"
	}
	data := payload{
		title:   "Partita - Ingest Complete",
		message: fmt.Sprintf("Revision %d of %s/%s: %s", seq, workID, sourceID, state),
		tags:    []string{"partita", "ingest", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyError(ctx context.Context, err error, contextLabel string) error {
	var builder strings.Builder
	builder.WriteString("Error")
	if contextLabel = strings.TrimSpace(contextLabel); contextLabel != "" {
		builder.WriteString(" with ")
		builder.WriteString(contextLabel)
	}
	builder.WriteString(": ")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown")
	}
	data := payload{
		title:    "Partita - Error",
		message:  builder.String(),
		tags:     []string{"partita", "error", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "Partita - Test",
		message:  "Notification system test",
		tags:     []string{"partita", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifyApprovalRequested(context.Context, string, string, string, string, string) error {
	return nil
}
func (noopService) NotifyRevisionApproved(context.Context, string, string, string, string) error {
	return nil
}
func (noopService) NotifyIngestCompleted(context.Context, string, string, int, bool) error {
	return nil
}
func (noopService) NotifyError(context.Context, error, string) error { return nil }
func (noopService) TestNotification(context.Context) error           { return nil }

package reconcile

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/bobarin/reelforge/internal/models"
)

const notifyTimeout = 15 * time.Second

// maxErrorLen truncates a task's error message before it goes out in a
// notification payload, per §4.8.
const maxErrorLen = 200

// FailureEvent is one task entry in a grouped failure/stuck notification.
type FailureEvent struct {
	TaskID    string    `json:"task_id"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	Error     string    `json:"error"`
	LogURL    string    `json:"log_url"`
}

// Notifier posts grouped notifications to an external webhook. A zero-value
// webhook URL makes every call a no-op, which keeps the reconciler usable in
// environments with no notification channel configured.
type Notifier struct {
	webhookURL string
	client     *http.Client
}

func NewNotifier(webhookURL string) *Notifier {
	return &Notifier{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: notifyTimeout},
	}
}

// NotifyFailures sends one grouped notification for the given batch of
// events. It is a no-op when there is nothing to report or no webhook is
// configured.
func (n *Notifier) NotifyFailures(ctx context.Context, kind string, events []FailureEvent) error {
	if len(events) == 0 || n.webhookURL == "" {
		return nil
	}

	payload, err := json.Marshal(map[string]interface{}{
		"kind":   kind,
		"events": events,
	})
	if err != nil {
		return fmt.Errorf("notifier: marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("notifier: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("notifier: send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("notifier: webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// taskToEvent builds a notification event from a task, truncating its error
// message to maxErrorLen and building a log URL from the task ID.
func taskToEvent(t models.Task, logURLBase string) FailureEvent {
	errMsg := ""
	if t.Error != nil {
		errMsg = truncate(*t.Error, maxErrorLen)
	}
	return FailureEvent{
		TaskID:    t.ID,
		Status:    string(t.Status),
		CreatedAt: t.CreatedAt,
		Error:     errMsg,
		LogURL:    logURLFor(logURLBase, t.ID),
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func logURLFor(base, taskID string) string {
	if base == "" {
		return ""
	}
	return fmt.Sprintf("%s/%s", base, taskID)
}

package reconcile

import (
	"strings"
	"testing"
	"time"

	"github.com/bobarin/reelforge/internal/models"
)

func TestTruncateLeavesShortStringsUntouched(t *testing.T) {
	if got := truncate("short", 200); got != "short" {
		t.Errorf("expected unchanged short string, got %q", got)
	}
}

func TestTruncateCutsLongStringsToLimit(t *testing.T) {
	long := strings.Repeat("x", 300)
	got := truncate(long, maxErrorLen)
	if len(got) != maxErrorLen {
		t.Errorf("expected truncated length %d, got %d", maxErrorLen, len(got))
	}
}

func TestLogURLForEmptyBaseReturnsEmpty(t *testing.T) {
	if got := logURLFor("", "task-1"); got != "" {
		t.Errorf("expected empty log url with no base configured, got %q", got)
	}
}

func TestLogURLForJoinsBaseAndTaskID(t *testing.T) {
	got := logURLFor("https://logs.example.com", "task-1")
	want := "https://logs.example.com/task-1"
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestTaskToEventTruncatesErrorAndBuildsLogURL(t *testing.T) {
	errMsg := strings.Repeat("e", 250)
	task := models.Task{
		ID:        "task-1",
		Status:    models.TaskStatusFailed,
		Error:     &errMsg,
		CreatedAt: time.Unix(0, 0).UTC(),
	}

	ev := taskToEvent(task, "https://logs.example.com")

	if ev.TaskID != "task-1" {
		t.Errorf("expected task id carried through, got %q", ev.TaskID)
	}
	if len(ev.Error) != maxErrorLen {
		t.Errorf("expected error truncated to %d chars, got %d", maxErrorLen, len(ev.Error))
	}
	if ev.LogURL != "https://logs.example.com/task-1" {
		t.Errorf("unexpected log url: %q", ev.LogURL)
	}
}

func TestTaskToEventHandlesNilError(t *testing.T) {
	task := models.Task{ID: "task-2", Status: models.TaskStatusFailed}
	ev := taskToEvent(task, "")
	if ev.Error != "" {
		t.Errorf("expected empty error string for nil Error field, got %q", ev.Error)
	}
}

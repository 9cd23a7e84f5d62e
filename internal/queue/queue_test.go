package queue

import (
	"encoding/json"
	"testing"
	"time"
)

func TestTaskJobRoundTripsThroughJSON(t *testing.T) {
	job := TaskJob{TaskID: "abc123", CreatedAt: time.Now().Truncate(time.Second)}

	data, err := json.Marshal(job)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded TaskJob
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if decoded.TaskID != job.TaskID {
		t.Errorf("expected task id %q, got %q", job.TaskID, decoded.TaskID)
	}
	if !decoded.CreatedAt.Equal(job.CreatedAt) {
		t.Errorf("expected created_at %v, got %v", job.CreatedAt, decoded.CreatedAt)
	}
}

func TestNewRejectsInvalidRedisURL(t *testing.T) {
	if _, err := New("not-a-valid-url://"); err == nil {
		t.Error("expected an error for an unparseable redis URL")
	}
}

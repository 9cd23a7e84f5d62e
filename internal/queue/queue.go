// Package queue dispatches queued task ids over Redis, for deployments that
// want an external submitter and a long-running worker pool decoupled by a
// durable queue rather than one task-runner invocation per task.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// TaskQueueName is the single list key holding task ids ready to run.
const TaskQueueName = "queue:tasks"

type Queue struct {
	client *redis.Client
}

// TaskJob names one task ready for a worker to pick up.
type TaskJob struct {
	TaskID    string    `json:"task_id"`
	CreatedAt time.Time `json:"created_at"`
}

func New(redisURL string) (*Queue, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Queue{client: client}, nil
}

func (q *Queue) Close() error {
	return q.client.Close()
}

// EnqueueTask appends a task id to the queue for a worker to dequeue.
func (q *Queue) EnqueueTask(ctx context.Context, taskID string) error {
	job := TaskJob{TaskID: taskID, CreatedAt: time.Now()}

	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal task job: %w", err)
	}

	return q.client.RPush(ctx, TaskQueueName, data).Err()
}

// DequeueTask blocks up to timeout for the next task id, returning nil if
// none arrived in that window.
func (q *Queue) DequeueTask(ctx context.Context, timeout time.Duration) (*TaskJob, error) {
	result, err := q.client.BLPop(ctx, timeout, TaskQueueName).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to dequeue task: %w", err)
	}
	if len(result) != 2 {
		return nil, fmt.Errorf("unexpected redis response")
	}

	var job TaskJob
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal task job: %w", err)
	}
	return &job, nil
}

// Length reports how many task ids are currently queued.
func (q *Queue) Length(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, TaskQueueName).Result()
}

// Package queue implements a durable at-least-once job queue. Producers
// enqueue named jobs with a JSON payload; a separate worker process claims
// one job at a time, runs the registered handler and acknowledges only after
// completion. Jobs claimed by a crashed worker are re-enqueued by the reaper,
// bounded retries send repeatedly failing jobs to a dead-letter list.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/medivision/medivision/internal/platform/apperr"
)

// Job statuses reported through the result store.
const (
	StatusQueued    = "queued"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Job is a unit of work on the queue.
type Job struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	Attempts   int             `json:"attempts"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
}

// Result is the stored outcome of a job, fetchable by job ID.
type Result struct {
	JobID       string          `json:"job_id"`
	Name        string          `json:"name"`
	Status      string          `json:"status"`
	Value       json.RawMessage `json:"result,omitempty"`
	Error       string          `json:"error,omitempty"`
	Attempts    int             `json:"attempts"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
}

// Broker is the durable transport behind the queue. The redis implementation
// is used in production, tests substitute an in-memory one.
type Broker interface {
	// Enqueue pushes a job onto the pending queue.
	Enqueue(ctx context.Context, job *Job) error
	// Claim atomically moves one job from pending to the consumer's
	// processing list, blocking up to block. Returns (nil, nil) on timeout.
	Claim(ctx context.Context, consumer string, block time.Duration) (*Job, error)
	// Ack removes a completed job from the consumer's processing list.
	Ack(ctx context.Context, consumer string, job *Job) error
	// Requeue moves a failed job from the processing list back to pending.
	Requeue(ctx context.Context, consumer string, job *Job) error
	// Bury moves an exhausted job from the processing list to dead-letter.
	Bury(ctx context.Context, consumer string, job *Job) error
	// Heartbeat marks the consumer alive for ttl.
	Heartbeat(ctx context.Context, consumer string, ttl time.Duration) error
	// ReapStale re-enqueues jobs held by consumers whose heartbeat expired.
	// Returns the number of jobs recovered.
	ReapStale(ctx context.Context, maxAttempts int) (int, error)
	// StoreResult persists a job result with the given TTL.
	StoreResult(ctx context.Context, res *Result, ttl time.Duration) error
	// GetResult fetches a stored result, or a not-found error.
	GetResult(ctx context.Context, jobID string) (*Result, error)
}

// Client is the producer-side API.
type Client struct {
	broker    Broker
	resultTTL time.Duration
}

func NewClient(broker Broker, resultTTL time.Duration) *Client {
	return &Client{broker: broker, resultTTL: resultTTL}
}

// Enqueue marshals the payload, records a queued result and pushes the job.
// The returned job ID is immediately usable to poll the result.
func (c *Client) Enqueue(ctx context.Context, name string, payload interface{}) (string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload for %s: %w", name, err)
	}

	job := &Job{
		ID:         uuid.New().String(),
		Name:       name,
		Payload:    raw,
		EnqueuedAt: time.Now().UTC(),
	}

	if err := c.broker.StoreResult(ctx, &Result{JobID: job.ID, Name: name, Status: StatusQueued}, c.resultTTL); err != nil {
		return "", err
	}
	if err := c.broker.Enqueue(ctx, job); err != nil {
		return "", err
	}
	return job.ID, nil
}

// Result fetches the stored outcome for a job ID.
func (c *Client) Result(ctx context.Context, jobID string) (*Result, error) {
	res, err := c.broker.GetResult(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, apperr.NotFound("task not found")
	}
	return res, nil
}

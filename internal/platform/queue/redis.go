package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/medivision/medivision/internal/platform/apperr"
)

const (
	pendingKey    = "medivision:jobs:pending"
	deadKey       = "medivision:jobs:dead"
	consumersKey  = "medivision:jobs:consumers"
	processingFmt = "medivision:jobs:processing:%s"
	heartbeatFmt  = "medivision:jobs:heartbeat:%s"
	resultFmt     = "medivision:jobs:result:%s"
)

// RedisBroker stores pending jobs in a list and claimed jobs in a
// per-consumer processing list, so an unacknowledged job survives a worker
// crash and can be recovered by ReapStale.
type RedisBroker struct {
	rdb *redis.Client
}

func NewRedisBroker(redisURL string) (*RedisBroker, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return &RedisBroker{rdb: redis.NewClient(opts)}, nil
}

// Ping verifies broker connectivity.
func (b *RedisBroker) Ping(ctx context.Context) error {
	return b.rdb.Ping(ctx).Err()
}

func (b *RedisBroker) Close() error {
	return b.rdb.Close()
}

func processingKey(consumer string) string {
	return fmt.Sprintf(processingFmt, consumer)
}

func heartbeatKey(consumer string) string {
	return fmt.Sprintf(heartbeatFmt, consumer)
}

func resultKey(jobID string) string {
	return fmt.Sprintf(resultFmt, jobID)
}

func (b *RedisBroker) Enqueue(ctx context.Context, job *Job) error {
	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	if err := b.rdb.LPush(ctx, pendingKey, raw).Err(); err != nil {
		return fmt.Errorf("enqueue job %s: %w", job.ID, err)
	}
	return nil
}

func (b *RedisBroker) Claim(ctx context.Context, consumer string, block time.Duration) (*Job, error) {
	if err := b.rdb.SAdd(ctx, consumersKey, consumer).Err(); err != nil {
		return nil, fmt.Errorf("register consumer %s: %w", consumer, err)
	}

	raw, err := b.rdb.BLMove(ctx, pendingKey, processingKey(consumer), "RIGHT", "LEFT", block).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claim job: %w", err)
	}

	var job Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		// Drop the malformed entry so it does not wedge the queue.
		b.rdb.LRem(ctx, processingKey(consumer), 1, raw)
		return nil, fmt.Errorf("decode claimed job: %w", err)
	}
	return &job, nil
}

func (b *RedisBroker) remove(ctx context.Context, consumer string, job *Job) (string, error) {
	raw, err := json.Marshal(job)
	if err != nil {
		return "", fmt.Errorf("marshal job: %w", err)
	}
	if err := b.rdb.LRem(ctx, processingKey(consumer), 1, string(raw)).Err(); err != nil {
		return "", fmt.Errorf("remove job %s from processing: %w", job.ID, err)
	}
	return string(raw), nil
}

func (b *RedisBroker) Ack(ctx context.Context, consumer string, job *Job) error {
	_, err := b.remove(ctx, consumer, job)
	return err
}

// Requeue removes the job as claimed, then pushes it back onto pending with
// the attempt count incremented. The job must not be mutated between Claim
// and Requeue or the removal will not match the stored entry.
func (b *RedisBroker) Requeue(ctx context.Context, consumer string, job *Job) error {
	if _, err := b.remove(ctx, consumer, job); err != nil {
		return err
	}
	job.Attempts++
	return b.Enqueue(ctx, job)
}

func (b *RedisBroker) Bury(ctx context.Context, consumer string, job *Job) error {
	raw, err := b.remove(ctx, consumer, job)
	if err != nil {
		return err
	}
	if err := b.rdb.LPush(ctx, deadKey, raw).Err(); err != nil {
		return fmt.Errorf("bury job %s: %w", job.ID, err)
	}
	return nil
}

func (b *RedisBroker) Heartbeat(ctx context.Context, consumer string, ttl time.Duration) error {
	return b.rdb.Set(ctx, heartbeatKey(consumer), time.Now().UTC().Format(time.RFC3339), ttl).Err()
}

// ReapStale scans registered consumers and recovers jobs stuck in the
// processing list of any consumer whose heartbeat key has expired. Each
// recovered job has its attempt count incremented; jobs past maxAttempts go
// to the dead-letter list instead of back to pending.
func (b *RedisBroker) ReapStale(ctx context.Context, maxAttempts int) (int, error) {
	consumers, err := b.rdb.SMembers(ctx, consumersKey).Result()
	if err != nil {
		return 0, fmt.Errorf("list consumers: %w", err)
	}

	recovered := 0
	for _, consumer := range consumers {
		alive, err := b.rdb.Exists(ctx, heartbeatKey(consumer)).Result()
		if err != nil {
			return recovered, fmt.Errorf("check heartbeat for %s: %w", consumer, err)
		}
		if alive > 0 {
			continue
		}

		for {
			raw, err := b.rdb.RPop(ctx, processingKey(consumer)).Result()
			if errors.Is(err, redis.Nil) {
				break
			}
			if err != nil {
				return recovered, fmt.Errorf("drain processing for %s: %w", consumer, err)
			}

			var job Job
			if err := json.Unmarshal([]byte(raw), &job); err != nil {
				b.rdb.LPush(ctx, deadKey, raw)
				continue
			}
			job.Attempts++

			dest := pendingKey
			if job.Attempts > maxAttempts {
				dest = deadKey
			}
			out, err := json.Marshal(&job)
			if err != nil {
				return recovered, fmt.Errorf("marshal recovered job: %w", err)
			}
			if err := b.rdb.LPush(ctx, dest, out).Err(); err != nil {
				return recovered, fmt.Errorf("requeue recovered job %s: %w", job.ID, err)
			}
			recovered++
		}

		b.rdb.SRem(ctx, consumersKey, consumer)
	}

	return recovered, nil
}

func (b *RedisBroker) StoreResult(ctx context.Context, res *Result, ttl time.Duration) error {
	raw, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	if err := b.rdb.Set(ctx, resultKey(res.JobID), raw, ttl).Err(); err != nil {
		return fmt.Errorf("store result for %s: %w", res.JobID, err)
	}
	return nil
}

func (b *RedisBroker) GetResult(ctx context.Context, jobID string) (*Result, error) {
	raw, err := b.rdb.Get(ctx, resultKey(jobID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, apperr.NotFound("task not found")
	}
	if err != nil {
		return nil, fmt.Errorf("get result for %s: %w", jobID, err)
	}

	var res Result
	if err := json.Unmarshal([]byte(raw), &res); err != nil {
		return nil, fmt.Errorf("decode result for %s: %w", jobID, err)
	}
	return &res, nil
}

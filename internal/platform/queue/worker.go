package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// HandlerFunc executes a job. The returned value is marshalled into the
// stored result. The context is cancelled at the hard time limit, so
// handlers that respect it never outlive it.
type HandlerFunc func(ctx context.Context, payload json.RawMessage) (interface{}, error)

// FailureFunc runs once a job has exhausted its retries and is being moved
// to the dead-letter list, so owners can settle whatever state the job left
// half-done. A returned error is logged; the job is dead-lettered either way.
type FailureFunc func(ctx context.Context, payload json.RawMessage, jobErr error) error

// WorkerOptions tune the worker pool. Zero values fall back to safe defaults.
type WorkerOptions struct {
	Concurrency   int
	SoftTimeLimit time.Duration
	HardTimeLimit time.Duration
	MaxRetries    int
	ResultTTL     time.Duration
	ClaimBlock    time.Duration
	HeartbeatTTL  time.Duration
	ReapInterval  time.Duration
}

func (o *WorkerOptions) withDefaults() {
	if o.Concurrency <= 0 {
		o.Concurrency = 1
	}
	if o.SoftTimeLimit <= 0 {
		o.SoftTimeLimit = 25 * time.Minute
	}
	if o.HardTimeLimit <= 0 {
		o.HardTimeLimit = 30 * time.Minute
	}
	if o.SoftTimeLimit > o.HardTimeLimit {
		o.SoftTimeLimit = o.HardTimeLimit
	}
	if o.ResultTTL <= 0 {
		o.ResultTTL = 24 * time.Hour
	}
	if o.ClaimBlock <= 0 {
		o.ClaimBlock = 5 * time.Second
	}
	if o.HeartbeatTTL <= 0 {
		o.HeartbeatTTL = 30 * time.Second
	}
	if o.ReapInterval <= 0 {
		o.ReapInterval = o.HeartbeatTTL
	}
}

// Worker runs a pool of consumers against the broker. Each consumer claims
// one job at a time and acknowledges only after the handler returns, which
// is what makes delivery at-least-once.
type Worker struct {
	broker    Broker
	logger    zerolog.Logger
	opts      WorkerOptions
	mu        sync.RWMutex
	handlers  map[string]HandlerFunc
	onFailure map[string]FailureFunc
}

func NewWorker(broker Broker, logger zerolog.Logger, opts WorkerOptions) *Worker {
	opts.withDefaults()
	return &Worker{
		broker:    broker,
		logger:    logger,
		opts:      opts,
		handlers:  make(map[string]HandlerFunc),
		onFailure: make(map[string]FailureFunc),
	}
}

// Register binds a handler to a job name. Enqueued jobs with no registered
// handler fail immediately.
func (w *Worker) Register(name string, fn HandlerFunc) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers[name] = fn
}

// RegisterFailure binds a callback that runs when a job with this name is
// dead-lettered.
func (w *Worker) RegisterFailure(name string, fn FailureFunc) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onFailure[name] = fn
}

func (w *Worker) handler(name string) (HandlerFunc, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	fn, ok := w.handlers[name]
	return fn, ok
}

func (w *Worker) failureHandler(name string) (FailureFunc, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	fn, ok := w.onFailure[name]
	return fn, ok
}

// Run starts the consumer pool and the reaper and blocks until ctx is
// cancelled. In-flight jobs finish before Run returns.
func (w *Worker) Run(ctx context.Context) error {
	var wg sync.WaitGroup

	for i := 0; i < w.opts.Concurrency; i++ {
		consumer := fmt.Sprintf("worker-%s-%d", uuid.New().String()[:8], i)
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.consumeLoop(ctx, consumer)
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		w.reapLoop(ctx)
	}()

	wg.Wait()
	return ctx.Err()
}

func (w *Worker) consumeLoop(ctx context.Context, consumer string) {
	log := w.logger.With().Str("consumer", consumer).Logger()
	log.Info().Msg("consumer started")

	for {
		if ctx.Err() != nil {
			log.Info().Msg("consumer stopped")
			return
		}

		if err := w.broker.Heartbeat(ctx, consumer, w.opts.HeartbeatTTL); err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Error().Err(err).Msg("heartbeat failed")
			time.Sleep(time.Second)
			continue
		}

		job, err := w.broker.Claim(ctx, consumer, w.opts.ClaimBlock)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Error().Err(err).Msg("claim failed")
			time.Sleep(time.Second)
			continue
		}
		if job == nil {
			continue
		}

		w.process(ctx, log, consumer, job)
	}
}

func (w *Worker) process(ctx context.Context, log zerolog.Logger, consumer string, job *Job) {
	log = log.With().Str("job_id", job.ID).Str("job", job.Name).Int("attempt", job.Attempts+1).Logger()
	log.Info().Msg("job started")

	// Keep the heartbeat fresh while the handler runs. Without this, any
	// job slower than the heartbeat TTL would look like a crashed consumer
	// to the reaper and be redelivered while still in flight.
	hbCtx, stopHeartbeat := context.WithCancel(ctx)
	defer stopHeartbeat()
	go w.keepAlive(hbCtx, log, consumer)

	_ = w.broker.StoreResult(ctx, &Result{
		JobID:    job.ID,
		Name:     job.Name,
		Status:   StatusRunning,
		Attempts: job.Attempts + 1,
	}, w.opts.ResultTTL)

	value, err := w.execute(ctx, log, job)
	if err != nil {
		w.fail(ctx, log, consumer, job, err)
		return
	}

	raw, merr := json.Marshal(value)
	if merr != nil {
		w.fail(ctx, log, consumer, job, fmt.Errorf("marshal result: %w", merr))
		return
	}

	now := time.Now().UTC()
	_ = w.broker.StoreResult(ctx, &Result{
		JobID:       job.ID,
		Name:        job.Name,
		Status:      StatusCompleted,
		Value:       raw,
		Attempts:    job.Attempts + 1,
		CompletedAt: &now,
	}, w.opts.ResultTTL)

	// Acknowledge only after the result is durable.
	if err := w.broker.Ack(ctx, consumer, job); err != nil {
		log.Error().Err(err).Msg("ack failed, job may be redelivered")
		return
	}
	log.Info().Msg("job completed")
}

// keepAlive refreshes the consumer's heartbeat until ctx is cancelled. It
// refreshes well inside the TTL so a single missed write does not expire
// the key.
func (w *Worker) keepAlive(ctx context.Context, log zerolog.Logger, consumer string) {
	interval := w.opts.HeartbeatTTL / 3
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.broker.Heartbeat(ctx, consumer, w.opts.HeartbeatTTL); err != nil && ctx.Err() == nil {
				log.Error().Err(err).Msg("heartbeat refresh failed")
			}
		}
	}
}

// execute runs the handler under the hard time limit, logging when the soft
// limit passes so slow jobs are visible before they are killed.
func (w *Worker) execute(ctx context.Context, log zerolog.Logger, job *Job) (interface{}, error) {
	fn, ok := w.handler(job.Name)
	if !ok {
		return nil, fmt.Errorf("no handler registered for job %q", job.Name)
	}

	runCtx, cancel := context.WithTimeout(ctx, w.opts.HardTimeLimit)
	defer cancel()

	soft := time.AfterFunc(w.opts.SoftTimeLimit, func() {
		log.Warn().
			Dur("soft_limit", w.opts.SoftTimeLimit).
			Dur("hard_limit", w.opts.HardTimeLimit).
			Msg("job exceeded soft time limit")
	})
	defer soft.Stop()

	type outcome struct {
		value interface{}
		err   error
	}
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("handler panic: %v", r)}
			}
		}()
		v, err := fn(runCtx, job.Payload)
		done <- outcome{value: v, err: err}
	}()

	select {
	case out := <-done:
		return out.value, out.err
	case <-runCtx.Done():
		return nil, fmt.Errorf("job exceeded hard time limit of %s", w.opts.HardTimeLimit)
	}
}

func (w *Worker) fail(ctx context.Context, log zerolog.Logger, consumer string, job *Job, jobErr error) {
	attempts := job.Attempts + 1
	log.Error().Err(jobErr).Int("attempts", attempts).Msg("job failed")

	if attempts > w.opts.MaxRetries {
		now := time.Now().UTC()
		_ = w.broker.StoreResult(ctx, &Result{
			JobID:       job.ID,
			Name:        job.Name,
			Status:      StatusFailed,
			Error:       jobErr.Error(),
			Attempts:    attempts,
			CompletedAt: &now,
		}, w.opts.ResultTTL)
		if err := w.broker.Bury(ctx, consumer, job); err != nil {
			log.Error().Err(err).Msg("bury failed")
		}
		log.Warn().Msg("job moved to dead-letter")
		if fn, ok := w.failureHandler(job.Name); ok {
			if err := fn(ctx, job.Payload, jobErr); err != nil {
				log.Error().Err(err).Msg("dead-letter callback failed")
			}
		}
		return
	}

	_ = w.broker.StoreResult(ctx, &Result{
		JobID:    job.ID,
		Name:     job.Name,
		Status:   StatusQueued,
		Error:    jobErr.Error(),
		Attempts: attempts,
	}, w.opts.ResultTTL)
	if err := w.broker.Requeue(ctx, consumer, job); err != nil {
		log.Error().Err(err).Msg("requeue failed")
	}
}

func (w *Worker) reapLoop(ctx context.Context) {
	ticker := time.NewTicker(w.opts.ReapInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := w.broker.ReapStale(ctx, w.opts.MaxRetries)
			if err != nil {
				if ctx.Err() == nil {
					w.logger.Error().Err(err).Msg("reap stale jobs failed")
				}
				continue
			}
			if n > 0 {
				w.logger.Warn().Int("recovered", n).Msg("re-enqueued jobs from dead consumers")
			}
		}
	}
}

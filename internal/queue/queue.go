package queue

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	log "github.com/sirupsen/logrus"
	"go.uber.org/ratelimit"
)

// Task is one unit of outbound work.
type Task func(ctx context.Context) (any, error)

// Handle reports the outcome of one submitted task to its submitter.
type Handle struct {
	done   chan struct{}
	result any
	err    error
}

// Wait blocks until the task finishes and returns its result or failure.
func (h *Handle) Wait(ctx context.Context) (any, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-h.done:
		return h.result, h.err
	}
}

type submission struct {
	ctx    context.Context
	task   Task
	handle *Handle
}

// TaskQueue is the single gate for all catalog page requests, across every
// concurrent session. It admits tasks in FIFO order, runs at most
// maxConcurrent at once and never starts two tasks closer together than the
// spacing interval, even when a concurrency slot is free.
type TaskQueue struct {
	submissions chan *submission
	sem         chan struct{}
	rl          ratelimit.Limiter
}

// New builds a queue and starts its dispatcher. The clock is injectable so
// tests can shorten the spacing.
func New(maxConcurrent int, spacing time.Duration, clk clock.Clock) *TaskQueue {
	q := &TaskQueue{
		submissions: make(chan *submission),
		sem:         make(chan struct{}, maxConcurrent),
		rl: ratelimit.New(1,
			ratelimit.Per(spacing),
			ratelimit.WithoutSlack,
			ratelimit.WithClock(clk),
		),
	}
	go q.dispatch()
	return q
}

func (q *TaskQueue) dispatch() {
	for sub := range q.submissions {
		// Slot first, then pacing, so the spacing clock does not tick
		// while we are stuck at the concurrency limit.
		q.sem <- struct{}{}
		q.rl.Take()
		go q.run(sub)
	}
}

func (q *TaskQueue) run(sub *submission) {
	defer func() { <-q.sem }()

	sub.handle.result, sub.handle.err = sub.task(sub.ctx)
	close(sub.handle.done)
}

// Submit queues task for admission and returns immediately. Handles resolve
// in work-completion order, not submission order.
func (q *TaskQueue) Submit(ctx context.Context, task Task) *Handle {
	h := &Handle{done: make(chan struct{})}
	q.submissions <- &submission{ctx: ctx, task: task, handle: h}
	return h
}

// Close stops the dispatcher. Tasks already admitted keep running; Submit
// after Close panics.
func (q *TaskQueue) Close() {
	close(q.submissions)
	log.Debug("task queue closed")
}

// Do submits fn and blocks until it finishes, returning its typed result.
func Do[T any](ctx context.Context, q *TaskQueue, fn func(ctx context.Context) (T, error)) (T, error) {
	h := q.Submit(ctx, func(ctx context.Context) (any, error) {
		return fn(ctx)
	})
	res, err := h.Wait(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	return res.(T), nil
}

package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Task is one unit of queued background work, such as a single
// enrollment recalculation.
type Task struct {
	ID         string
	Kind       string
	Payload    interface{}
	Attempt    int
	EnqueuedAt time.Time
}

// Handler processes a task. A non-nil error triggers a retry until the
// attempt budget is spent.
type Handler func(context.Context, Task) error

// Observer is notified once per task with its terminal outcome, after
// all retries are exhausted. err is nil on success.
type Observer func(kind string, err error)

// Config configures worker pool behaviour.
type Config struct {
	Workers    int
	Buffer     int
	MaxRetries int
	Backoff    time.Duration
	Logger     *zap.Logger
	Observer   Observer
}

// Queue is an in-memory task dispatcher backed by a fixed worker pool.
// Retries happen inside the worker with attempt-scaled backoff, so a
// failing task never re-enters the channel behind newer work.
type Queue struct {
	name    string
	handler Handler

	workers    int
	maxRetries int
	backoff    time.Duration
	logger     *zap.Logger
	observe    Observer

	tasks   chan Task
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	started bool
}

// NewQueue builds a queue with the provided handler.
func NewQueue(name string, handler Handler, cfg Config) *Queue {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = cfg.Workers * 4
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Observer == nil {
		cfg.Observer = func(string, error) {}
	}

	return &Queue{
		name:       name,
		handler:    handler,
		workers:    cfg.Workers,
		maxRetries: cfg.MaxRetries,
		backoff:    cfg.Backoff,
		logger:     cfg.Logger.With(zap.String("queue", name)),
		observe:    cfg.Observer,
		tasks:      make(chan Task, cfg.Buffer),
	}
}

// Start begins worker consumption. Safe to call once.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started {
		return
	}
	q.ctx, q.cancel = context.WithCancel(ctx)
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker()
	}
	q.started = true
	q.logger.Info("queue started", zap.Int("workers", q.workers))
}

// Stop cancels workers and waits for them to exit.
func (q *Queue) Stop() {
	q.mu.Lock()
	if !q.started {
		q.mu.Unlock()
		return
	}
	q.cancel()
	q.mu.Unlock()
	q.wg.Wait()
	q.logger.Info("queue stopped")
}

// Enqueue offers a task to the pool. Blocks while the buffer is full.
func (q *Queue) Enqueue(task Task) error {
	q.mu.Lock()
	ctx := q.ctx
	started := q.started
	q.mu.Unlock()

	if !started {
		return fmt.Errorf("queue %s not started", q.name)
	}
	if task.EnqueuedAt.IsZero() {
		task.EnqueuedAt = time.Now().UTC()
	}

	select {
	case <-ctx.Done():
		return fmt.Errorf("queue %s stopped: %w", q.name, ctx.Err())
	case q.tasks <- task:
		return nil
	}
}

// Depth reports how many tasks are waiting for a worker.
func (q *Queue) Depth() int {
	return len(q.tasks)
}

func (q *Queue) worker() {
	defer q.wg.Done()
	for {
		select {
		case <-q.ctx.Done():
			return
		case task := <-q.tasks:
			q.run(task)
		}
	}
}

// run drives a task through its attempt budget and reports the terminal
// outcome to the observer exactly once.
func (q *Queue) run(task Task) {
	var err error
	for task.Attempt = 1; task.Attempt <= q.maxRetries; task.Attempt++ {
		err = q.handler(q.ctx, task)
		if err == nil {
			q.observe(task.Kind, nil)
			return
		}
		if task.Attempt == q.maxRetries {
			break
		}
		q.logger.Warn("task failed, retrying",
			zap.String("task_id", task.ID),
			zap.String("kind", task.Kind),
			zap.Int("attempt", task.Attempt),
			zap.Error(err))

		timer := time.NewTimer(q.backoff * time.Duration(task.Attempt))
		select {
		case <-q.ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
	q.logger.Error("task exhausted retries",
		zap.String("task_id", task.ID),
		zap.String("kind", task.Kind),
		zap.Int("attempts", q.maxRetries),
		zap.Error(err))
	q.observe(task.Kind, err)
}

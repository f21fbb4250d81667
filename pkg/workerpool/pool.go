// Package workerpool runs a page's independent backend reads side by side
// on a fixed set of goroutines.
package workerpool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Job is the work carried by a task.
type Job func(ctx context.Context) (interface{}, error)

// Task is a named job.
type Task struct {
	ID  string
	Job Job

	ctx  context.Context
	done chan *Result
}

// Result is the outcome of one task.
type Result struct {
	TaskID   string
	Data     interface{}
	Error    error
	Duration time.Duration
}

// Config holds worker pool configuration
type Config struct {
	Workers   int
	QueueSize int
	// DrainTimeout bounds how long Stop waits for queued tasks
	DrainTimeout time.Duration
}

// DefaultConfig returns defaults sized for page loads of a few reads each.
func DefaultConfig() Config {
	return Config{Workers: 8, QueueSize: 256, DrainTimeout: 10 * time.Second}
}

var (
	// ErrStopped is returned for tasks offered after Stop.
	ErrStopped = errors.New("worker pool stopped")
	// ErrPanic wraps a panic raised by a job.
	ErrPanic = errors.New("job panicked")
)

// Pool is a fixed set of workers reading from a bounded queue.
type Pool struct {
	cfg    Config
	logger *zap.Logger

	tasks chan *Task
	quit  chan struct{}
	drain chan struct{}
	once  sync.Once
	wg    sync.WaitGroup

	// submitters hold mu for reading; Stop takes it for writing so no
	// task is queued once the workers start draining
	mu      sync.RWMutex
	stopped bool

	submitted atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64
	running   atomic.Int64
}

// New creates a pool. Zero config fields take their defaults.
func New(cfg Config, logger *zap.Logger) *Pool {
	if logger == nil {
		logger = zap.NewNop()
	}
	def := DefaultConfig()
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = def.QueueSize
	}
	if cfg.DrainTimeout <= 0 {
		cfg.DrainTimeout = def.DrainTimeout
	}
	return &Pool{
		cfg:    cfg,
		logger: logger,
		tasks:  make(chan *Task, cfg.QueueSize),
		quit:   make(chan struct{}),
		drain:  make(chan struct{}),
	}
}

// Start launches the workers
func (p *Pool) Start() {
	for i := 0; i < p.cfg.Workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	p.logger.Info("worker pool started",
		zap.Int("workers", p.cfg.Workers),
		zap.Int("queue_size", p.cfg.QueueSize))
}

// Submit queues task, waiting for room until ctx is done. The job runs
// with ctx and its result is delivered once on the returned channel.
func (p *Pool) Submit(ctx context.Context, task *Task) (<-chan *Result, error) {
	if task.Job == nil {
		return nil, fmt.Errorf("task %s has no job", task.ID)
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		return nil, ErrStopped
	}

	task.ctx = ctx
	task.done = make(chan *Result, 1)
	select {
	case p.tasks <- task:
		p.submitted.Add(1)
		return task.done, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-p.quit:
		return nil, ErrStopped
	}
}

// Do runs tasks and waits for all of them. Results come back in task
// order; a task that could not be queued gets a result carrying why.
func (p *Pool) Do(ctx context.Context, tasks ...*Task) []*Result {
	waits := make([]<-chan *Result, len(tasks))
	results := make([]*Result, len(tasks))

	for i, task := range tasks {
		done, err := p.Submit(ctx, task)
		if err != nil {
			results[i] = &Result{TaskID: task.ID, Error: err}
			continue
		}
		waits[i] = done
	}

	for i, done := range waits {
		if done == nil {
			continue
		}
		select {
		case r := <-done:
			results[i] = r
		case <-ctx.Done():
			results[i] = &Result{TaskID: tasks[i].ID, Error: ctx.Err()}
		}
	}
	return results
}

// Stop refuses new tasks, lets the workers finish what is queued and
// waits for them up to the drain timeout.
func (p *Pool) Stop() error {
	first := false
	p.once.Do(func() {
		first = true
		close(p.quit)
		p.mu.Lock()
		p.stopped = true
		p.mu.Unlock()
		close(p.drain)
	})
	if !first {
		return nil
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("worker pool stopped")
		return nil
	case <-time.After(p.cfg.DrainTimeout):
		return fmt.Errorf("worker pool did not drain within %s", p.cfg.DrainTimeout)
	}
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()
	for {
		select {
		case task := <-p.tasks:
			p.run(id, task)
		case <-p.drain:
			for {
				select {
				case task := <-p.tasks:
					p.run(id, task)
				default:
					return
				}
			}
		}
	}
}

func (p *Pool) run(workerID int, task *Task) {
	p.running.Add(1)
	defer p.running.Add(-1)

	start := time.Now()
	r := &Result{TaskID: task.ID}
	if err := task.ctx.Err(); err != nil {
		r.Error = err
	} else {
		r.Data, r.Error = call(task)
	}
	r.Duration = time.Since(start)

	if r.Error == nil {
		p.completed.Add(1)
	} else {
		p.failed.Add(1)
		p.logger.Debug("task failed",
			zap.String("task_id", task.ID),
			zap.Int("worker_id", workerID),
			zap.Error(r.Error))
	}
	task.done <- r
}

// call runs the job, turning a panic into an error so the worker survives.
func call(task *Task) (data interface{}, err error) {
	defer func() {
		if v := recover(); v != nil {
			data, err = nil, fmt.Errorf("%w: %s: %v", ErrPanic, task.ID, v)
		}
	}()
	return task.Job(task.ctx)
}

// Stats is a snapshot of the pool's counters.
type Stats struct {
	Submitted int64
	Completed int64
	Failed    int64
	Running   int64
	Queued    int
	Capacity  int
	Workers   int
}

// Stats returns current pool statistics
func (p *Pool) Stats() Stats {
	return Stats{
		Submitted: p.submitted.Load(),
		Completed: p.completed.Load(),
		Failed:    p.failed.Load(),
		Running:   p.running.Load(),
		Queued:    len(p.tasks),
		Capacity:  p.cfg.QueueSize,
		Workers:   p.cfg.Workers,
	}
}

// IsHealthy reports whether the pool is running and its queue has room.
func (p *Pool) IsHealthy() bool {
	p.mu.RLock()
	stopped := p.stopped
	p.mu.RUnlock()
	return !stopped && len(p.tasks)*10 < p.cfg.QueueSize*9
}

package blockwriter

import (
	"context"
	"errors"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/rzpsarthak13/blockwriter/internal/core"
)

// Executor runs operations in blocks. Writer implements it.
type Executor interface {
	Execute(ctx context.Context, ops []*core.WriteOperation) (*Result, error)
}

// DrainerConfig contains configuration for the drainer.
type DrainerConfig struct {
	// DrainRate is the maximum number of Execute calls per second.
	DrainRate int

	// DequeueSize is how many operations to dequeue at once. They may
	// span several blocks.
	DequeueSize int

	// PollInterval is how often to check for new items when queue is empty.
	PollInterval time.Duration

	// MaxRetries bounds how often a failing operation is re-enqueued.
	MaxRetries int
}

// DefaultDrainerConfig returns sensible defaults for the drainer.
func DefaultDrainerConfig() DrainerConfig {
	return DrainerConfig{
		DrainRate:    10,
		DequeueSize:  1000,
		PollInterval: 100 * time.Millisecond,
		MaxRetries:   5,
	}
}

// Drainer moves operations from a write-back queue into the database at
// a controlled rate.
type Drainer struct {
	mu      sync.RWMutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}

	queue    core.WriteBackQueue
	executor Executor
	config   DrainerConfig
	limiter  *rate.Limiter
}

// NewDrainer creates a new drainer instance. Zero config fields take
// their defaults; MaxRetries is used as given.
func NewDrainer(queue core.WriteBackQueue, executor Executor, config DrainerConfig) *Drainer {
	defaults := DefaultDrainerConfig()
	if config.DrainRate <= 0 {
		config.DrainRate = defaults.DrainRate
	}
	if config.DequeueSize <= 0 {
		config.DequeueSize = defaults.DequeueSize
	}
	if config.PollInterval <= 0 {
		config.PollInterval = defaults.PollInterval
	}
	if config.MaxRetries < 0 {
		config.MaxRetries = 0
	}

	return &Drainer{
		queue:    queue,
		executor: executor,
		config:   config,
		limiter:  rate.NewLimiter(rate.Limit(config.DrainRate), 1),
	}
}

// Start begins the drainer goroutine. It is non-blocking; call Stop to
// shut the drainer down.
func (d *Drainer) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running {
		return nil
	}
	d.running = true
	d.stopCh = make(chan struct{})
	d.doneCh = make(chan struct{})

	go d.run(ctx, d.stopCh, d.doneCh)
	log.Printf("[DRAINER] Started: %d block run(s)/sec, up to %d operation(s) per run", d.config.DrainRate, d.config.DequeueSize)
	return nil
}

// Stop gracefully stops the drainer and waits for the current run to
// finish.
func (d *Drainer) Stop() error {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return nil
	}
	d.running = false
	stopCh, doneCh := d.stopCh, d.doneCh
	d.mu.Unlock()

	close(stopCh)
	<-doneCh
	log.Printf("[DRAINER] Stopped")
	return nil
}

// IsRunning returns whether the drainer is currently running.
func (d *Drainer) IsRunning() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.running
}

// QueueSize returns the current size of the write-back queue.
func (d *Drainer) QueueSize() int {
	return d.queue.Size()
}

// Config returns the drainer configuration.
func (d *Drainer) Config() DrainerConfig {
	return d.config
}

func (d *Drainer) run(ctx context.Context, stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)

	ticker := time.NewTicker(d.config.PollInterval)
	defer ticker.Stop()

	total := 0
	start := time.Now()
	for {
		n, err := d.DrainOnce(ctx)
		total += n
		if err != nil && ctx.Err() == nil {
			log.Errorf("[DRAINER] %v", err)
		}

		if n > 0 && err == nil {
			select {
			case <-stopCh:
			case <-ctx.Done():
			default:
				continue
			}
		}

		select {
		case <-stopCh:
			log.Printf("[DRAINER] Stop requested, drained %d operation(s) in %v", total, time.Since(start))
			return
		case <-ctx.Done():
			log.Printf("[DRAINER] Context cancelled, drained %d operation(s) in %v", total, time.Since(start))
			return
		case <-ticker.C:
		}
	}
}

// DrainOnce dequeues one round of operations and executes them. It
// returns the number of operations dequeued. Failed operations are
// re-enqueued or dropped by handleFailure.
func (d *Drainer) DrainOnce(ctx context.Context) (int, error) {
	ops, err := d.queue.Dequeue(ctx, d.config.DequeueSize)
	if err != nil {
		return 0, err
	}
	if len(ops) == 0 {
		return 0, nil
	}

	if err := d.limiter.Wait(ctx); err != nil {
		d.requeue(ctx, ops)
		return 0, err
	}

	result, err := d.executor.Execute(ctx, ops)
	if result != nil && len(result.Committed) > 0 {
		log.Debugf("[DRAINER] Committed %d operation(s) in %d block(s), queue size %d",
			len(result.Committed), result.Blocks, d.queue.Size())
	}
	if err != nil {
		d.handleFailure(ctx, result, err)
	}
	return len(ops), err
}

// handleFailure re-enqueues the operations of a failed Execute call.
// Operations that were never sent go back unchanged. In the failed
// block, the operation of a ConcurrencyError and rejected operations are
// dropped; the operation named by an UpdateError, or every operation for
// any other failure, has its RetryCount raised and is dropped past
// MaxRetries.
func (d *Drainer) handleFailure(ctx context.Context, result *Result, err error) {
	if result == nil {
		return
	}

	var (
		conflict *ConcurrencyError
		update   *UpdateError
		rejected *RejectedError
	)
	var culprit *core.WriteOperation
	switch {
	case errors.As(err, &conflict):
		culprit = conflict.Operation
		log.Warnf("[DRAINER] Dropping %s: %v", culprit.ID, err)
	case errors.As(err, &rejected):
		culprit = rejected.Operation
		log.Errorf("[DRAINER] Dropping %s: %v", culprit.ID, err)
	case errors.As(err, &update):
		culprit = update.Operation
	}

	var retry []*core.WriteOperation
	for _, op := range result.Failed {
		if op == culprit && (conflict != nil || rejected != nil) {
			continue
		}
		if culprit == nil || op == culprit {
			op.RetryCount++
			if op.RetryCount > d.config.MaxRetries {
				log.Errorf("[DRAINER] Dropping %s after %d attempt(s): %v", op.ID, op.RetryCount, err)
				continue
			}
		}
		retry = append(retry, op)
	}
	retry = append(retry, result.Pending...)
	d.requeue(ctx, retry)
}

func (d *Drainer) requeue(ctx context.Context, ops []*core.WriteOperation) {
	ctx = context.WithoutCancel(ctx)
	for _, op := range ops {
		if err := d.queue.Enqueue(ctx, op); err != nil {
			log.Errorf("[DRAINER] Failed to re-enqueue %s, operation lost: %v", op.ID, err)
		}
	}
}

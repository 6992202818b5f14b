package scheduler

import (
	"log/slog"
	"sync"

	"github.com/panjf2000/ants/v2"
)

// Dispatcher fans a batch of retry tasks out over a bounded worker pool and
// waits for the batch to drain before the next scan starts.
type Dispatcher struct {
	pool   *ants.Pool
	logger *slog.Logger
}

// NewDispatcher creates a dispatcher backed by a worker pool of the given size
func NewDispatcher(size int, logger *slog.Logger) (*Dispatcher, error) {
	pool, err := ants.NewPool(size)
	if err != nil {
		return nil, err
	}
	return &Dispatcher{
		pool:   pool,
		logger: logger,
	}, nil
}

// Dispatch runs all tasks on the pool and blocks until every task finished.
// A task that cannot be submitted runs inline so no claimed row is dropped.
func (d *Dispatcher) Dispatch(tasks []func()) {
	var wg sync.WaitGroup
	for _, task := range tasks {
		task := task
		wg.Add(1)
		wrapped := func() {
			defer wg.Done()
			task()
		}
		if err := d.pool.Submit(wrapped); err != nil {
			d.logger.Error("Failed to submit retry task to worker pool, running inline", "error", err)
			wrapped()
		}
	}
	wg.Wait()
}

// Running returns the number of busy workers
func (d *Dispatcher) Running() int {
	return d.pool.Running()
}

// Shutdown releases the worker pool
func (d *Dispatcher) Shutdown() {
	d.logger.Info("Shutting down retry dispatcher", "running_workers", d.pool.Running())
	d.pool.Release()
}

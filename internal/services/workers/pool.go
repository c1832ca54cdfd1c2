// Package workers provides a bounded worker pool used to process funds in
// parallel when pipeline concurrency is above one.
package workers

import (
	"context"
	"errors"
	"sync"

	"github.com/ternarybob/arbor"
)

// ErrPoolClosed is returned by Submit once the pool context is done.
var ErrPoolClosed = errors.New("worker pool is shutting down")

// Job is one unit of work. A returned error is logged and counted.
type Job func(ctx context.Context) error

// Pool runs submitted jobs on a fixed number of goroutines.
type Pool struct {
	queue  chan Job
	size   int
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
	failed int
	mu     sync.Mutex
	logger arbor.ILogger
}

// NewPool creates a pool of size workers whose jobs run under a context
// derived from parent.
func NewPool(parent context.Context, size int, logger arbor.ILogger) *Pool {
	if size <= 0 {
		size = 1
	}
	ctx, cancel := context.WithCancel(parent)
	return &Pool{
		queue:  make(chan Job, size),
		size:   size,
		ctx:    ctx,
		cancel: cancel,
		logger: logger,
	}
}

// Start launches the workers.
func (p *Pool) Start() {
	p.logger.Debug().Int("workers", p.size).Msg("Worker pool started")
	for i := 0; i < p.size; i++ {
		p.wg.Add(1)
		go p.run(i)
	}
}

// Submit queues job, blocking while every worker is busy.
func (p *Pool) Submit(job Job) error {
	select {
	case <-p.ctx.Done():
		return ErrPoolClosed
	default:
	}

	select {
	case p.queue <- job:
		return nil
	case <-p.ctx.Done():
		return ErrPoolClosed
	}
}

// Wait closes the queue, waits for queued jobs to finish and returns the
// number of jobs that failed.
func (p *Pool) Wait() int {
	close(p.queue)
	p.wg.Wait()
	p.cancel()

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.failed
}

// run drains the queue. Jobs already queued still run after cancellation so
// each one can record its own outcome.
func (p *Pool) run(id int) {
	defer p.wg.Done()

	for job := range p.queue {
		if err := job(p.ctx); err != nil {
			p.mu.Lock()
			p.failed++
			p.mu.Unlock()

			p.logger.Debug().Err(err).Int("worker", id).Msg("Job failed")
		}
	}
}

package worker

import (
	"context"
	"sync"
)

// Job is a unit of work producing a result of type R
type Job[R any] func(ctx context.Context) R

type indexedJob[R any] struct {
	index int
	job   Job[R]
}

// Pool runs jobs on a fixed number of workers. Results are collected as
// they finish and returned in submission order.
type Pool[R any] struct {
	workers    int
	jobQueue   chan indexedJob[R]
	results    []R
	submitted  int
	mu         sync.Mutex
	wg         sync.WaitGroup
	ctx        context.Context
	cancelFunc context.CancelFunc
	closeOnce  sync.Once
}

// NewPool creates a pool bound to ctx; cancelling ctx stops pending jobs
func NewPool[R any](ctx context.Context, workers int) *Pool[R] {
	if workers <= 0 {
		workers = 1
	}

	ctx, cancel := context.WithCancel(ctx)

	return &Pool[R]{
		workers:    workers,
		jobQueue:   make(chan indexedJob[R], workers*2),
		ctx:        ctx,
		cancelFunc: cancel,
	}
}

// Start launches the workers. Call it before Submit.
func (p *Pool[R]) Start() {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

func (p *Pool[R]) worker() {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			return
		case item, ok := <-p.jobQueue:
			if !ok || p.ctx.Err() != nil {
				return
			}
			result := item.job(p.ctx)

			p.mu.Lock()
			p.results[item.index] = result
			p.mu.Unlock()
		}
	}
}

// Submit queues a job. It reports false when the pool was cancelled first;
// the job's slot then holds the zero result.
func (p *Pool[R]) Submit(job Job[R]) bool {
	p.mu.Lock()
	index := p.submitted
	p.submitted++
	var zero R
	p.results = append(p.results, zero)
	p.mu.Unlock()

	if p.ctx.Err() != nil {
		return false
	}
	select {
	case <-p.ctx.Done():
		return false
	case p.jobQueue <- indexedJob[R]{index: index, job: job}:
		return true
	}
}

// Wait closes the queue, waits for the workers and returns results in submission order
func (p *Pool[R]) Wait() []R {
	p.closeOnce.Do(func() { close(p.jobQueue) })
	p.wg.Wait()
	p.cancelFunc()

	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]R, len(p.results))
	copy(out, p.results)
	return out
}

// Shutdown cancels pending work and waits for running jobs to return
func (p *Pool[R]) Shutdown() {
	p.cancelFunc()
	p.wg.Wait()
}

// Map applies fn to every item on a pool of the given size, preserving order
func Map[T, R any](ctx context.Context, workers int, items []T, fn func(ctx context.Context, item T) R) []R {
	if len(items) == 0 {
		return []R{}
	}

	pool := NewPool[R](ctx, workers)
	pool.Start()
	for _, item := range items {
		pool.Submit(func(ctx context.Context) R { return fn(ctx, item) })
	}
	return pool.Wait()
}

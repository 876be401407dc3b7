package worker

import (
	"context"
	"sort"
	"sync"
)

// Job is a unit of work. The context is cancelled when the pool shuts down.
type Job[R any] func(ctx context.Context) (R, error)

// Result is the outcome of one submitted job. Index is the submission order.
type Result[R any] struct {
	Index int
	Value R
	Err   error
}

type task[R any] struct {
	index int
	job   Job[R]
}

// Pool runs jobs on a fixed number of goroutines
type Pool[R any] struct {
	workers    int
	jobQueue   chan task[R]
	results    chan Result[R]
	collected  chan []Result[R]
	wg         sync.WaitGroup
	ctx        context.Context
	cancelFunc context.CancelFunc
	closeOnce  sync.Once
	submitted  int
}

// NewPool creates a pool bound to ctx. Non-positive worker counts mean one worker.
func NewPool[R any](ctx context.Context, workers int) *Pool[R] {
	if workers <= 0 {
		workers = 1
	}

	ctx, cancel := context.WithCancel(ctx)

	return &Pool[R]{
		workers:    workers,
		jobQueue:   make(chan task[R], workers*2),
		results:    make(chan Result[R], workers*2),
		collected:  make(chan []Result[R], 1),
		ctx:        ctx,
		cancelFunc: cancel,
	}
}

// Start launches the workers and the result collector
func (p *Pool[R]) Start() {
	go p.collect()

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
		case t, ok := <-p.jobQueue:
			if !ok {
				return
			}
			value, err := t.job(p.ctx)
			p.results <- Result[R]{Index: t.index, Value: value, Err: err}
		}
	}
}

func (p *Pool[R]) collect() {
	var out []Result[R]
	for r := range p.results {
		out = append(out, r)
	}
	p.collected <- out
}

// Submit queues a job. It blocks while the queue is full and drops the job
// once the pool is shut down. Submit is not safe for concurrent use.
func (p *Pool[R]) Submit(job Job[R]) {
	t := task[R]{index: p.submitted, job: job}
	p.submitted++

	select {
	case <-p.ctx.Done():
	case p.jobQueue <- t:
	}
}

// Wait closes the queue, waits for the workers and returns the results in
// submission order. Jobs dropped by a shutdown are missing from the slice.
// Wait must be called exactly once, after the last Submit.
func (p *Pool[R]) Wait() []Result[R] {
	close(p.jobQueue)
	p.wg.Wait()
	p.closeResults()

	results := <-p.collected
	p.cancelFunc()

	sort.Slice(results, func(i, j int) bool { return results[i].Index < results[j].Index })
	return results
}

// Shutdown stops the pool without running queued jobs. Call Wait afterwards
// to collect what finished.
func (p *Pool[R]) Shutdown() {
	p.cancelFunc()
	p.wg.Wait()
	p.closeResults()
}

func (p *Pool[R]) closeResults() {
	p.closeOnce.Do(func() {
		close(p.results)
	})
}

// Run executes jobs with the given concurrency and returns their results in
// input order.
func Run[R any](ctx context.Context, workers int, jobs []Job[R]) []Result[R] {
	if len(jobs) == 0 {
		return nil
	}
	if workers > len(jobs) {
		workers = len(jobs)
	}

	pool := NewPool[R](ctx, workers)
	pool.Start()
	for _, job := range jobs {
		pool.Submit(job)
	}
	return pool.Wait()
}

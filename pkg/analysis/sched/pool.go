// Package sched runs analysis jobs off the UI path: a clip scheduler that
// reanalyzes the selected clip and discards stale results by token, and a
// batch runner that sweeps whole directories with progress reporting.
package sched

import "sync"

// Pool runs submitted tasks. Implementations decide the concurrency;
// callers only rely on every submitted task eventually running (until
// Shutdown).
type Pool interface {
	// Submit enqueues a task. It may block when the pool is saturated.
	// Tasks submitted after Shutdown are dropped.
	Submit(task func())
	// Shutdown stops intake and waits for running tasks to finish.
	Shutdown()
}

// WorkerPool fans tasks out over a fixed set of goroutines.
type WorkerPool struct {
	tasks chan func()
	wg    sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// NewWorkerPool starts a pool of n workers. n below 1 is raised to 1.
func NewWorkerPool(n int) *WorkerPool {
	if n < 1 {
		n = 1
	}
	p := &WorkerPool{tasks: make(chan func(), n*4)}
	p.wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer p.wg.Done()
			for task := range p.tasks {
				task()
			}
		}()
	}
	return p
}

func (p *WorkerPool) Submit(task func()) {
	// The lock is held across the send so Shutdown cannot close the
	// channel under a blocked sender.
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.tasks <- task
}

func (p *WorkerPool) Shutdown() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.tasks)
	p.mu.Unlock()
	p.wg.Wait()
}

// SerialPool runs tasks inline on the submitting goroutine. It is the
// fallback when parallel workers are unwanted (tests, constrained hosts,
// note_workers=0).
type SerialPool struct {
	mu     sync.Mutex
	closed bool
}

func NewSerialPool() *SerialPool { return &SerialPool{} }

func (p *SerialPool) Submit(task func()) {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return
	}
	task()
}

func (p *SerialPool) Shutdown() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
}

// NewPool picks a strategy for the requested worker count: serial for
// workers <= 1, a goroutine pool otherwise.
func NewPool(workers int) Pool {
	if workers <= 1 {
		return NewSerialPool()
	}
	return NewWorkerPool(workers)
}

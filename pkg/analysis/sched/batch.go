package sched

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/vocorder/vocorder/pkg/analysis"
	"github.com/vocorder/vocorder/pkg/analysis/cache"
)

// BatchResult is one clip's outcome within a batch sweep.
type BatchResult struct {
	Path   string
	Entry  *cache.Entry
	Cached bool
	Err    error
}

// Run is one batch sweep. A Run obtained while another sweep is active is
// deferred: its clips start only after the active sweep drains.
type Run struct {
	// ID tags log lines and progress reports for this sweep.
	ID string

	ctx    context.Context
	cancel context.CancelFunc
	opts   analysis.Options

	work []string
	seen map[string]bool

	results  chan BatchResult
	done     atomic.Int64
	total    atomic.Int64
	wg       sync.WaitGroup
	finished chan struct{}
}

// Results streams per-clip outcomes. The channel closes when the sweep
// drains; consumers must read it or workers eventually block.
func (r *Run) Results() <-chan BatchResult {
	return r.results
}

// Progress reports clips reported so far and the sweep total.
func (r *Run) Progress() (done, total int) {
	return int(r.done.Load()), int(r.total.Load())
}

// Cancel stops the sweep. Clips not yet reported become stragglers and
// roll into the next sweep.
func (r *Run) Cancel() {
	r.cancel()
}

// Wait blocks until the sweep drains (and, for a finished sweep with a
// deferred successor, until the successor's clips are queued).
func (r *Run) Wait() {
	<-r.finished
}

// Batch sweeps clip sets through full analysis, writing everything to the
// cache. A running sweep is never interrupted: starting another sweep
// while one is active queues it, and it begins once the active sweep
// drains, picking up any stragglers accumulated in between.
type Batch struct {
	pool  Pool
	cache *cache.Cache

	mu         sync.Mutex
	active     *Run
	queue      []*Run
	stragglers map[string]bool
}

// NewBatch builds a batch runner over the pool and cache.
func NewBatch(pool Pool, c *cache.Cache) *Batch {
	return &Batch{
		pool:       pool,
		cache:      c,
		stragglers: make(map[string]bool),
	}
}

// Start begins a sweep over paths plus any stragglers, deduplicated.
// Per-clip failures are reported and skipped; they do not stop the sweep.
// With a sweep already active the new one is deferred until it drains.
func (b *Batch) Start(ctx context.Context, paths []string, opts analysis.Options) *Run {
	runCtx, cancel := context.WithCancel(ctx)
	run := &Run{
		ID:       uuid.NewString(),
		ctx:      runCtx,
		cancel:   cancel,
		opts:     opts,
		seen:     make(map[string]bool, len(paths)),
		finished: make(chan struct{}),
	}

	b.mu.Lock()
	for _, p := range paths {
		if !run.seen[p] {
			run.seen[p] = true
			run.work = append(run.work, p)
		}
	}
	b.foldStragglersLocked(run)
	run.total.Store(int64(len(run.work)))
	run.results = make(chan BatchResult, len(run.work))

	if b.active != nil {
		b.queue = append(b.queue, run)
		b.mu.Unlock()
		return run
	}
	b.active = run
	b.mu.Unlock()

	b.launch(run)
	return run
}

// foldStragglersLocked moves the straggler set into the run. Caller holds
// b.mu.
func (b *Batch) foldStragglersLocked(run *Run) {
	for p := range b.stragglers {
		if !run.seen[p] {
			run.seen[p] = true
			run.work = append(run.work, p)
			run.total.Add(1)
		}
	}
	b.stragglers = make(map[string]bool)
}

// launch queues the run's clips on the pool and arranges the hand-off to
// the next deferred sweep once this one drains.
func (b *Batch) launch(run *Run) {
	b.mu.Lock()
	b.foldStragglersLocked(run)
	work := run.work
	b.mu.Unlock()

	run.wg.Add(len(work))
	go func() {
		run.wg.Wait()
		b.mu.Lock()
		b.active = nil
		var next *Run
		if len(b.queue) > 0 {
			next = b.queue[0]
			b.queue = b.queue[1:]
			b.active = next
		}
		b.mu.Unlock()
		close(run.results)
		if next != nil {
			b.launch(next)
		}
		close(run.finished)
	}()

	for _, path := range work {
		b.pool.Submit(func() {
			defer run.wg.Done()
			b.process(run, path)
		})
	}
}

func (b *Batch) addStraggler(path string) {
	b.mu.Lock()
	b.stragglers[path] = true
	b.mu.Unlock()
}

func (b *Batch) process(run *Run, path string) {
	if run.ctx.Err() != nil {
		b.addStraggler(path)
		return
	}

	res := BatchResult{Path: path}
	id, samples, sr, err := analysis.Identify(path, run.opts)
	switch {
	case err != nil:
		res.Err = err
	default:
		if e, ok := b.cache.Get(id); ok && e.Meta.HasPitch && e.Meta.HasMel && e.Meta.HasPower {
			res.Entry, res.Cached = e, true
			break
		}
		e := analysis.PitchFrom(id, samples, sr, run.opts)
		spec := analysis.SpectralFrom(id, samples, sr, run.opts)
		spec.Meta.HasPitch = true
		spec.Times, spec.F0s = e.Times, e.F0s
		spec.Meta.Note = e.Meta.Note
		if err := b.cache.Put(spec); err != nil {
			res.Err = err
		} else {
			res.Entry = spec
		}
	}

	// A sweep cancelled while this clip was in flight re-queues it for the
	// follow-up sweep instead of reporting into a dead channel.
	if run.ctx.Err() != nil {
		b.addStraggler(path)
		return
	}
	select {
	case run.results <- res:
		run.done.Add(1)
	case <-run.ctx.Done():
		b.addStraggler(path)
	}
}

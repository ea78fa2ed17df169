package sched

import (
	"fmt"
	"math"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/vocorder/vocorder/pkg/analysis"
	"github.com/vocorder/vocorder/pkg/analysis/cache"
	"github.com/vocorder/vocorder/pkg/analysis/notes"
	"github.com/vocorder/vocorder/pkg/audio/dsp"
)

// Status is a job's lifecycle phase.
type Status int

const (
	StatusQueued Status = iota
	StatusRunning
	StatusDelivered
	StatusDiscarded
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusQueued:
		return "queued"
	case StatusRunning:
		return "running"
	case StatusDelivered:
		return "delivered"
	case StatusDiscarded:
		return "discarded"
	case StatusFailed:
		return "failed"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Kind is the analysis pass a sub-job runs.
type Kind int

const (
	KindPitch Kind = iota
	KindSpectral
)

func (k Kind) String() string {
	if k == KindSpectral {
		return "spectral"
	}
	return "pitch"
}

// Job identifies one queued sub-job.
type Job struct {
	ID    string
	Path  string
	Kind  Kind
	Token uint64
}

// Result is a finished sub-job. Entry is nil when Err is set.
type Result struct {
	Job    Job
	Entry  *cache.Entry
	Cached bool
	Err    error
}

// ClipOption configures a Clip scheduler.
type ClipOption func(*Clip)

// WithNotes mirrors delivered pitch results into the note index.
func WithNotes(ix *notes.Index) ClipOption {
	return func(c *Clip) { c.notes = ix }
}

// WithJobStatusFunc observes job transitions. The callback runs on worker
// goroutines and must not block.
func WithJobStatusFunc(fn func(Job, Status)) ClipOption {
	return func(c *Clip) { c.statusFn = fn }
}

// Clip schedules reanalysis of the currently selected clip. Every Submit
// bumps a monotonic token; results carrying an older token are discarded,
// so switching clips mid-analysis never delivers stale curves. The cache
// write still happens for stale jobs since the computed curves remain
// valid for that file.
type Clip struct {
	pool     Pool
	cache    *cache.Cache
	notes    *notes.Index
	statusFn func(Job, Status)

	token   atomic.Uint64
	results chan Result
}

// NewClip builds a clip scheduler over the pool and cache.
func NewClip(pool Pool, c *cache.Cache, opts ...ClipOption) *Clip {
	cl := &Clip{
		pool:    pool,
		cache:   c,
		results: make(chan Result, 64),
	}
	for _, o := range opts {
		o(cl)
	}
	return cl
}

// Results delivers finished jobs. Consumers must drain it; workers block
// on a full channel.
func (c *Clip) Results() <-chan Result {
	return c.results
}

// Submit queues the pitch and spectral sub-jobs for a clip and returns the
// token guarding their delivery. Any earlier in-flight job becomes stale.
func (c *Clip) Submit(path string, opts analysis.Options) uint64 {
	tok := c.token.Add(1)
	for _, kind := range []Kind{KindPitch, KindSpectral} {
		job := Job{ID: uuid.NewString(), Path: path, Kind: kind, Token: tok}
		c.setStatus(job, StatusQueued)
		c.pool.Submit(func() { c.run(job, opts) })
	}
	return tok
}

// Invalidate marks all in-flight jobs stale without queuing new work,
// e.g. when the selection moves to a clip that is fully cached.
func (c *Clip) Invalidate() {
	c.token.Add(1)
}

// Current returns the token in force.
func (c *Clip) Current() uint64 {
	return c.token.Load()
}

func (c *Clip) setStatus(job Job, s Status) {
	if c.statusFn != nil {
		c.statusFn(job, s)
	}
}

func (c *Clip) stale(job Job) bool {
	return job.Token != c.token.Load()
}

func (c *Clip) run(job Job, opts analysis.Options) {
	if c.stale(job) {
		c.setStatus(job, StatusDiscarded)
		return
	}
	c.setStatus(job, StatusRunning)

	id, samples, sr, err := analysis.Identify(job.Path, opts)
	if err != nil {
		c.finish(job, Result{Job: job, Err: err}, StatusFailed)
		return
	}

	// Resume from cache when this pass is already stored.
	if e, ok := c.cache.Get(id); ok {
		done := (job.Kind == KindPitch && e.Meta.HasPitch) ||
			(job.Kind == KindSpectral && e.Meta.HasMel && e.Meta.HasPower)
		if done {
			c.deliver(job, Result{Job: job, Entry: e, Cached: true})
			return
		}
	}

	var entry *cache.Entry
	switch job.Kind {
	case KindSpectral:
		entry = analysis.SpectralFrom(id, samples, sr, opts)
	default:
		entry = analysis.PitchFrom(id, samples, sr, opts)
	}

	if err := c.cache.Put(entry); err != nil {
		c.finish(job, Result{Job: job, Err: err}, StatusFailed)
		return
	}
	c.deliver(job, Result{Job: job, Entry: entry})
}

func (c *Clip) deliver(job Job, res Result) {
	if c.stale(job) {
		c.setStatus(job, StatusDiscarded)
		return
	}
	if job.Kind == KindPitch && c.notes != nil && res.Entry != nil {
		c.index(res.Entry)
	}
	c.finish(job, res, StatusDelivered)
}

// finish emits the result unless the job's token went stale, which covers
// the failure paths that bypass deliver.
func (c *Clip) finish(job Job, res Result, s Status) {
	if c.stale(job) {
		c.setStatus(job, StatusDiscarded)
		return
	}
	c.results <- res
	c.setStatus(job, s)
}

// index records the clip's dominant note in the note index.
func (c *Clip) index(e *cache.Entry) {
	var sum float64
	var n int
	for _, f := range e.F0s {
		if midi, ok := dsp.F0ToMIDI(float64(f)); ok {
			sum += midi
			n++
		}
	}
	rec := notes.Record{
		MTime: e.Meta.MTime,
		Note:  e.Meta.Note,
		Algo:  e.Meta.Algo,
	}
	if n > 0 {
		// Cents of the mean pitch against the labeled note's center.
		meanMidi := sum / float64(n)
		f0 := 440.0 * math.Exp2((meanMidi-69)/12)
		_, rec.Cents = dsp.NoteFromF0(f0)
	}
	// Index writes are best-effort; the cache entry is authoritative.
	c.notes.Put(e.Meta.Path, rec)
}

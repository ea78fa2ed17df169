package sched

import (
	"context"
	"math"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/vocorder/vocorder/pkg/analysis"
	"github.com/vocorder/vocorder/pkg/analysis/cache"
	"github.com/vocorder/vocorder/pkg/analysis/notes"
	"github.com/vocorder/vocorder/pkg/audio/wavio"
)

// manualPool queues tasks so tests control when jobs run relative to
// token bumps.
type manualPool struct {
	mu    sync.Mutex
	tasks []func()
}

func (p *manualPool) Submit(task func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tasks = append(p.tasks, task)
}

func (p *manualPool) Shutdown() {}

func (p *manualPool) drain() {
	for {
		p.mu.Lock()
		if len(p.tasks) == 0 {
			p.mu.Unlock()
			return
		}
		task := p.tasks[0]
		p.tasks = p.tasks[1:]
		p.mu.Unlock()
		task()
	}
}

func writeSine(t *testing.T, path string, freq float64, dur time.Duration) string {
	t.Helper()
	sr := 44100
	n := int(time.Duration(sr) * dur / time.Second)
	samples := make([]float32, n)
	for i := range samples {
		samples[i] = float32(0.5 * math.Sin(2*math.Pi*freq*float64(i)/float64(sr)))
	}
	if err := wavio.Write(path, samples, sr, 16, 1); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

func testCache(t *testing.T) *cache.Cache {
	t.Helper()
	c, err := cache.New(cache.Config{Dir: t.TempDir()})
	if err != nil {
		t.Fatalf("cache.New: %v", err)
	}
	return c
}

func TestWorkerPoolRunsAll(t *testing.T) {
	p := NewWorkerPool(4)
	var n int64
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		p.Submit(func() {
			defer wg.Done()
			mu.Lock()
			n++
			mu.Unlock()
		})
	}
	wg.Wait()
	p.Shutdown()
	if n != 100 {
		t.Fatalf("ran %d tasks, want 100", n)
	}
	// Submit after shutdown is a silent drop, not a panic.
	p.Submit(func() { t.Fatal("ran after shutdown") })
	p.Shutdown()
}

func TestSerialPoolRunsInline(t *testing.T) {
	p := NewSerialPool()
	ran := false
	p.Submit(func() { ran = true })
	if !ran {
		t.Fatal("task did not run inline")
	}
	p.Shutdown()
	p.Submit(func() { t.Fatal("ran after shutdown") })
}

func TestNewPoolStrategy(t *testing.T) {
	if _, ok := NewPool(0).(*SerialPool); !ok {
		t.Fatal("0 workers: want serial")
	}
	if _, ok := NewPool(1).(*SerialPool); !ok {
		t.Fatal("1 worker: want serial")
	}
	p := NewPool(4)
	if _, ok := p.(*WorkerPool); !ok {
		t.Fatal("4 workers: want worker pool")
	}
	p.Shutdown()
}

func TestClipDeliversBothPasses(t *testing.T) {
	path := writeSine(t, filepath.Join(t.TempDir(), "a.wav"), 440, 300*time.Millisecond)
	pool := &manualPool{}
	cl := NewClip(pool, testCache(t))

	tok := cl.Submit(path, analysis.Options{})
	if tok != cl.Current() {
		t.Fatalf("token %d not current %d", tok, cl.Current())
	}
	pool.drain()

	got := map[Kind]Result{}
	for i := 0; i < 2; i++ {
		select {
		case res := <-cl.Results():
			if res.Err != nil {
				t.Fatalf("result error: %v", res.Err)
			}
			got[res.Job.Kind] = res
		default:
			t.Fatalf("only %d results delivered", i)
		}
	}
	if !got[KindPitch].Entry.Meta.HasPitch {
		t.Fatal("pitch result lacks pitch")
	}
	if note := got[KindPitch].Entry.Meta.Note; note != "A4" {
		t.Fatalf("dominant note = %q, want A4", note)
	}
	if e := got[KindSpectral].Entry; !e.Meta.HasMel || !e.Meta.HasPower {
		t.Fatalf("spectral result flags: %+v", e.Meta)
	}
}

func TestClipResumesFromCache(t *testing.T) {
	path := writeSine(t, filepath.Join(t.TempDir(), "a.wav"), 440, 300*time.Millisecond)
	pool := &manualPool{}
	cl := NewClip(pool, testCache(t))

	cl.Submit(path, analysis.Options{})
	pool.drain()
	<-cl.Results()
	<-cl.Results()

	cl.Submit(path, analysis.Options{})
	pool.drain()
	for i := 0; i < 2; i++ {
		res := <-cl.Results()
		if res.Err != nil {
			t.Fatalf("result error: %v", res.Err)
		}
		if !res.Cached {
			t.Fatalf("%s pass recomputed despite cache", res.Job.Kind)
		}
	}
}

func TestClipDiscardsStaleToken(t *testing.T) {
	path := writeSine(t, filepath.Join(t.TempDir(), "a.wav"), 440, 300*time.Millisecond)
	pool := &manualPool{}

	var mu sync.Mutex
	statuses := map[string][]Status{}
	cl := NewClip(pool, testCache(t), WithJobStatusFunc(func(j Job, s Status) {
		mu.Lock()
		statuses[j.ID] = append(statuses[j.ID], s)
		mu.Unlock()
	}))

	cl.Submit(path, analysis.Options{})
	cl.Invalidate()
	pool.drain()

	select {
	case res := <-cl.Results():
		t.Fatalf("stale job delivered: %+v", res.Job)
	default:
	}
	mu.Lock()
	defer mu.Unlock()
	discarded := 0
	for _, seq := range statuses {
		if seq[len(seq)-1] == StatusDiscarded {
			discarded++
		}
	}
	if discarded != 2 {
		t.Fatalf("discarded %d jobs, want 2", discarded)
	}
}

func TestClipStaleFailureDiscarded(t *testing.T) {
	pool := &manualPool{}

	var mu sync.Mutex
	last := map[string]Status{}
	var cl *Clip
	cl = NewClip(pool, testCache(t), WithJobStatusFunc(func(j Job, s Status) {
		// Move the selection away as soon as the job starts, so even its
		// failure must not surface.
		if s == StatusRunning {
			cl.Invalidate()
		}
		mu.Lock()
		last[j.ID] = s
		mu.Unlock()
	}))

	cl.Submit(filepath.Join(t.TempDir(), "nope.wav"), analysis.Options{})
	pool.drain()

	select {
	case res := <-cl.Results():
		t.Fatalf("stale failure delivered: %+v", res)
	default:
	}
	mu.Lock()
	defer mu.Unlock()
	for id, s := range last {
		if s != StatusDiscarded {
			t.Fatalf("job %s ended %s, want discarded", id, s)
		}
	}
}

func TestClipReportsMissingFile(t *testing.T) {
	pool := &manualPool{}
	cl := NewClip(pool, testCache(t))
	cl.Submit(filepath.Join(t.TempDir(), "nope.wav"), analysis.Options{})
	pool.drain()

	for i := 0; i < 2; i++ {
		res := <-cl.Results()
		if res.Err == nil {
			t.Fatalf("%s pass succeeded on missing file", res.Job.Kind)
		}
	}
}

func TestClipIndexesNotes(t *testing.T) {
	path := writeSine(t, filepath.Join(t.TempDir(), "a.wav"), 440, 300*time.Millisecond)
	ix, err := notes.Open(notes.Options{InMemory: true})
	if err != nil {
		t.Fatalf("notes.Open: %v", err)
	}
	defer ix.Close()

	pool := &manualPool{}
	cl := NewClip(pool, testCache(t), WithNotes(ix))
	cl.Submit(path, analysis.Options{})
	pool.drain()
	<-cl.Results()
	<-cl.Results()

	rec, err := ix.Get(path)
	if err != nil {
		t.Fatalf("note index: %v", err)
	}
	if rec.Note != "A4" {
		t.Fatalf("indexed note = %q, want A4", rec.Note)
	}
	if rec.Algo != "classic" {
		t.Fatalf("indexed algo = %q", rec.Algo)
	}
}

func TestBatchSweep(t *testing.T) {
	dir := t.TempDir()
	a := writeSine(t, filepath.Join(dir, "a.wav"), 440, 300*time.Millisecond)
	b := writeSine(t, filepath.Join(dir, "b.wav"), 220, 300*time.Millisecond)
	missing := filepath.Join(dir, "gone.wav")

	c := testCache(t)
	batch := NewBatch(NewSerialPool(), c)
	run := batch.Start(context.Background(), []string{a, b, missing}, analysis.Options{})

	var ok, failed int
	for res := range run.Results() {
		if res.Err != nil {
			if res.Path != missing {
				t.Fatalf("%s failed: %v", res.Path, res.Err)
			}
			failed++
			continue
		}
		if !res.Entry.Meta.HasPitch || !res.Entry.Meta.HasMel || !res.Entry.Meta.HasPower {
			t.Fatalf("%s entry incomplete: %+v", res.Path, res.Entry.Meta)
		}
		ok++
	}
	if ok != 2 || failed != 1 {
		t.Fatalf("ok=%d failed=%d, want 2/1", ok, failed)
	}
	if done, total := run.Progress(); done != 3 || total != 3 {
		t.Fatalf("progress %d/%d, want 3/3", done, total)
	}

	// The sweep populated the cache: a rerun serves everything cached.
	rerun := batch.Start(context.Background(), []string{a, b}, analysis.Options{})
	for res := range rerun.Results() {
		if res.Err != nil {
			t.Fatalf("rerun %s: %v", res.Path, res.Err)
		}
		if !res.Cached {
			t.Fatalf("rerun recomputed %s", res.Path)
		}
	}
}

func TestBatchNeverInterruptsActiveRun(t *testing.T) {
	dir := t.TempDir()
	a := writeSine(t, filepath.Join(dir, "a.wav"), 440, 300*time.Millisecond)
	b := writeSine(t, filepath.Join(dir, "b.wav"), 220, 300*time.Millisecond)
	c := writeSine(t, filepath.Join(dir, "c.wav"), 330, 300*time.Millisecond)

	pool := &manualPool{}
	batch := NewBatch(pool, testCache(t))

	first := batch.Start(context.Background(), []string{a, b}, analysis.Options{})
	second := batch.Start(context.Background(), []string{c}, analysis.Options{})

	// The first sweep keeps running and reports every clip.
	pool.drain()
	first.Wait()
	var got int
	for res := range first.Results() {
		if res.Err != nil {
			t.Fatalf("%s: %v", res.Path, res.Err)
		}
		got++
	}
	if got != 2 {
		t.Fatalf("first sweep delivered %d of 2 clips", got)
	}

	// The deferred sweep starts only after the first drains.
	pool.drain()
	second.Wait()
	got = 0
	for res := range second.Results() {
		if res.Err != nil {
			t.Fatalf("%s: %v", res.Path, res.Err)
		}
		got++
	}
	if got != 1 {
		t.Fatalf("deferred sweep delivered %d of 1 clips", got)
	}
}

func TestBatchStragglersCarryOver(t *testing.T) {
	dir := t.TempDir()
	a := writeSine(t, filepath.Join(dir, "a.wav"), 440, 300*time.Millisecond)
	b := writeSine(t, filepath.Join(dir, "b.wav"), 220, 300*time.Millisecond)

	pool := &manualPool{}
	batch := NewBatch(pool, testCache(t))

	run := batch.Start(context.Background(), []string{a, b}, analysis.Options{})
	run.Cancel()
	pool.drain() // both clips bounce into the straggler set
	run.Wait()
	if done, _ := run.Progress(); done != 0 {
		t.Fatalf("cancelled sweep reported %d clips", done)
	}

	rerun := batch.Start(context.Background(), nil, analysis.Options{})
	if _, total := rerun.Progress(); total != 2 {
		t.Fatalf("straggler sweep total = %d, want 2", total)
	}
	pool.drain()
	var done int
	for res := range rerun.Results() {
		if res.Err != nil {
			t.Fatalf("%s: %v", res.Path, res.Err)
		}
		done++
	}
	if done != 2 {
		t.Fatalf("straggler sweep finished %d clips, want 2", done)
	}
}

func TestBatchDeduplicates(t *testing.T) {
	dir := t.TempDir()
	a := writeSine(t, filepath.Join(dir, "a.wav"), 440, 300*time.Millisecond)

	batch := NewBatch(NewSerialPool(), testCache(t))
	run := batch.Start(context.Background(), []string{a, a, a}, analysis.Options{})
	if _, total := run.Progress(); total != 1 {
		t.Fatalf("total = %d, want 1", total)
	}
	for range run.Results() {
	}
}

func TestStatusString(t *testing.T) {
	if StatusQueued.String() != "queued" || StatusDiscarded.String() != "discarded" {
		t.Fatal("status names")
	}
	if KindPitch.String() != "pitch" || KindSpectral.String() != "spectral" {
		t.Fatal("kind names")
	}
}

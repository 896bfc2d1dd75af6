// Package pool implements the collection engine's worker-pool coordinator:
// N workers share a bounded job queue and a mutex-guarded
// debug-id -> ModuleInfo map, merging same-debug-id collections as they
// land and, once every Collect job has finished, emitting one job per
// surviving module. Worker lifecycle and first-error propagation are
// built on golang.org/x/sync/errgroup; the job queue itself stays a plain
// buffered channel, in the teacher's own bare-channel concurrency idiom.
package pool

import (
	"context"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/symcollect/dump-syms/breakpad"
)

// Collector reads one input file into a ModuleInfo. The CLI supplies the
// concrete implementation (sniff + dwarfsrc/machosrc/pesrc wiring).
type Collector func(ctx context.Context, path string) (*breakpad.ModuleInfo, error)

// Emitter disposes of one finished module (writing it to a symbol store,
// stdout, or both). Invoked once per distinct debug-id once all Collect
// jobs have completed.
type Emitter func(ctx context.Context, mod *breakpad.ModuleInfo) error

// job is the pool's internal unit of work: exactly one of collectPath or
// emitModule is set, mirroring the spec's {Collect(path), Emit(ModuleInfo)}
// job union. A zero-value job with both unset is the terminator sentinel.
type job struct {
	collectPath string
	emitModule  *breakpad.ModuleInfo
}

func (j job) isTerminator() bool {
	return j.collectPath == "" && j.emitModule == nil
}

// Pool is the coordinator described in the concurrency model: it owns the
// job queue, the shared result map, and the outstanding-Collect counter.
type Pool struct {
	numWorkers int
	collect    Collector
	emit       Emitter

	queue chan job

	mu      sync.Mutex
	modules map[string]*breakpad.ModuleInfo

	outstanding int64
}

// New creates a Pool with numWorkers workers (at least 1). collect and emit
// are invoked from worker goroutines and must not share mutable state
// outside what they're given.
func New(numWorkers int, collect Collector, emit Emitter) *Pool {
	if numWorkers < 1 {
		numWorkers = 1
	}
	return &Pool{
		numWorkers: numWorkers,
		collect:    collect,
		emit:       emit,
		modules:    make(map[string]*breakpad.ModuleInfo),
	}
}

// Run processes paths to completion: collects every input (merging by
// debug-id as results land), then emits every surviving module, then
// returns. On the first worker error the group's context is cancelled: the
// other workers stop between jobs, jobs still queued are not run, and that
// error is returned; modules collected before the failure are not emitted.
func (p *Pool) Run(ctx context.Context, paths []string) error {
	p.queue = make(chan job, len(paths)+p.numWorkers)
	p.outstanding = int64(len(paths))

	g, ctx := errgroup.WithContext(ctx)

	for i := 0; i < p.numWorkers; i++ {
		g.Go(func() error {
			return p.worker(ctx)
		})
	}

	for _, path := range paths {
		p.queue <- job{collectPath: path}
	}
	if len(paths) == 0 {
		p.enqueueEmitsAndTerminators()
	}

	return g.Wait()
}

func (p *Pool) worker(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case j := <-p.queue:
			if j.isTerminator() {
				return nil
			}
			if err := p.runJob(ctx, j); err != nil {
				p.failFast()
				return err
			}
		}
	}
}

func (p *Pool) runJob(ctx context.Context, j job) error {
	if j.collectPath != "" {
		mod, err := p.collect(ctx, j.collectPath)
		if err != nil {
			return err
		}
		p.storeCollected(mod)
		if atomic.AddInt64(&p.outstanding, -1) == 0 {
			p.enqueueEmitsAndTerminators()
		}
		return nil
	}
	return p.emit(ctx, j.emitModule)
}

// storeCollected merges mod into the shared map under the single mutex the
// concurrency model calls for, held only across this lookup-merge-store
// critical section.
func (p *Pool) storeCollected(mod *breakpad.ModuleInfo) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if prior, ok := p.modules[mod.DebugID]; ok {
		merged, err := breakpad.Merge(prior, mod)
		if err != nil {
			// Merge fails only when the debug-ids differ, which the map
			// key already rules out; should it fail anyway, the earlier
			// module is kept and the new one is dropped.
			return
		}
		p.modules[mod.DebugID] = merged
		return
	}
	p.modules[mod.DebugID] = mod
}

// enqueueEmitsAndTerminators fires once outstanding Collect jobs reach
// zero: one Emit job per surviving module, then one terminator per worker.
func (p *Pool) enqueueEmitsAndTerminators() {
	p.mu.Lock()
	mods := make([]*breakpad.ModuleInfo, 0, len(p.modules))
	for _, m := range p.modules {
		mods = append(mods, m)
	}
	p.mu.Unlock()

	for _, m := range mods {
		p.queue <- job{emitModule: m}
	}
	for i := 0; i < p.numWorkers; i++ {
		p.queue <- job{}
	}
}

// failFast drains nothing itself — errgroup's ctx cancellation on first
// error is what stops the other workers between jobs — but it still pushes
// terminators so any worker currently blocked reading the queue wakes up
// promptly instead of waiting for a context check.
func (p *Pool) failFast() {
	for i := 0; i < p.numWorkers; i++ {
		select {
		case p.queue <- job{}:
		default:
		}
	}
}

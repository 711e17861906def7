// Package batch owns the conversion run: it dispatches one task per
// source file across a bounded worker pool, aggregates completions into
// an overall progress percentage, and propagates cooperative
// cancellation.
package batch

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"opus2mp3.dev/cli/internal/event"
	"opus2mp3.dev/cli/internal/transcoder"
)

// OutputExt is the extension of encoded files.
const OutputExt = ".mp3"

// Job is one file scheduled for conversion. Jobs are immutable and each
// is consumed by exactly one task.
type Job struct {
	SourcePath string
	DestDir    string
}

// Transcoder runs the two external tool passes for one file.
type Transcoder interface {
	Analyze(ctx context.Context, srcPath string) (transcoder.Stats, error)
	Encode(ctx context.Context, srcPath, destPath string, stats transcoder.Stats) (string, error)
}

// Transplanter copies tags and cover art from source to destination
// after a successful encode.
type Transplanter interface {
	Transplant(srcPath, destPath string, emit event.Emitter)
}

// Runner coordinates one batch. completed and total are the only
// mutable state shared between workers besides the stop flag; the mutex
// guards the increment-and-publish-progress sequence as one critical
// section so progress never goes backwards or stale.
type Runner struct {
	logger     *zap.Logger
	tool       Transcoder
	transplant Transplanter
	sink       *event.Sink
	workers    int

	stopped atomic.Bool

	mu        sync.Mutex
	total     int
	completed int
}

// NewRunner builds a Runner. workers <= 0 selects the host CPU count.
func NewRunner(tool Transcoder, transplant Transplanter, sink *event.Sink, workers int, logger *zap.Logger) *Runner {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Runner{
		logger:     logger,
		tool:       tool,
		transplant: transplant,
		sink:       sink,
		workers:    workers,
	}
}

// Stop requests cooperative cancellation. The flag is never reset
// within a run. In-flight tool invocations are not killed; the flag is
// consulted before a task starts work and before pending tasks are
// dispatched, which are then dropped without running.
func (r *Runner) Stop() {
	r.stopped.Store(true)
}

// Stopped reports whether cancellation or a batch-fatal error has been
// signalled.
func (r *Runner) Stopped() bool {
	return r.stopped.Load()
}

// Run converts every job and returns when all dispatched tasks have
// settled, including runs drained early by cancellation or a missing
// tool. Closing the sink is the batch-complete notification.
func (r *Runner) Run(ctx context.Context, jobs []Job) {
	defer r.sink.Close()

	if len(jobs) == 0 {
		r.sink.Emit(event.Info, "No files selected for conversion.")
		return
	}

	r.mu.Lock()
	r.total = len(jobs)
	r.completed = 0
	r.mu.Unlock()

	r.sink.Emit(event.Info, "Starting conversion with %d parallel workers.", r.workers)
	r.logger.Info("batch started",
		zap.Int("jobs", len(jobs)), zap.Int("workers", r.workers))

	tasks := make(chan Job)
	var wg sync.WaitGroup
	for i := 0; i < r.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range tasks {
				r.convertFile(ctx, job)
			}
		}()
	}

	for _, job := range jobs {
		if r.stopped.Load() {
			// Remaining jobs are dropped, not run.
			break
		}
		tasks <- job
	}
	close(tasks)
	wg.Wait()

	r.logger.Info("batch settled", zap.Int("completed", r.Completed()))
}

// Completed returns the number of successful conversions so far.
func (r *Runner) Completed() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.completed
}

// recordSuccess increments the completion count and publishes the new
// overall percentage inside the same critical section.
func (r *Runner) recordSuccess() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.completed++
	r.sink.SetProgress(r.completed * 100 / r.total)
}

// Package metrics collects pipeline counters for the lifetime of the
// process. Counters are plain atomics so recording never contends with
// the worker pool.
package metrics

import (
	"sync/atomic"
	"time"
)

// Pipeline holds the conversion counters.
type Pipeline struct {
	AnalysisPasses int64 // analysis passes started
	EncodePasses   int64 // encode passes started
	EncodeNanos    int64 // total encode pass wall time

	FilesConverted int64 // files that reached a successful encode
	FilesFailed    int64 // files abandoned on any error

	CoversCopied int64 // front covers written to outputs
	TagWarnings  int64 // non-fatal metadata transplant warnings
}

// Global is the process-wide counter set.
var Global = &Pipeline{}

func (m *Pipeline) RecordAnalysis() {
	atomic.AddInt64(&m.AnalysisPasses, 1)
}

func (m *Pipeline) RecordEncode(d time.Duration) {
	atomic.AddInt64(&m.EncodePasses, 1)
	atomic.AddInt64(&m.EncodeNanos, int64(d))
}

func (m *Pipeline) RecordConverted() {
	atomic.AddInt64(&m.FilesConverted, 1)
}

func (m *Pipeline) RecordFailed() {
	atomic.AddInt64(&m.FilesFailed, 1)
}

func (m *Pipeline) RecordCoverCopied() {
	atomic.AddInt64(&m.CoversCopied, 1)
}

func (m *Pipeline) RecordTagWarning() {
	atomic.AddInt64(&m.TagWarnings, 1)
}

// Snapshot returns a consistent-enough copy of the counters for
// reporting.
func (m *Pipeline) Snapshot() Snapshot {
	return Snapshot{
		AnalysisPasses: atomic.LoadInt64(&m.AnalysisPasses),
		EncodePasses:   atomic.LoadInt64(&m.EncodePasses),
		EncodeNanos:    atomic.LoadInt64(&m.EncodeNanos),
		FilesConverted: atomic.LoadInt64(&m.FilesConverted),
		FilesFailed:    atomic.LoadInt64(&m.FilesFailed),
		CoversCopied:   atomic.LoadInt64(&m.CoversCopied),
		TagWarnings:    atomic.LoadInt64(&m.TagWarnings),
	}
}

// Reset zeroes all counters.
func (m *Pipeline) Reset() {
	atomic.StoreInt64(&m.AnalysisPasses, 0)
	atomic.StoreInt64(&m.EncodePasses, 0)
	atomic.StoreInt64(&m.EncodeNanos, 0)
	atomic.StoreInt64(&m.FilesConverted, 0)
	atomic.StoreInt64(&m.FilesFailed, 0)
	atomic.StoreInt64(&m.CoversCopied, 0)
	atomic.StoreInt64(&m.TagWarnings, 0)
}

// Snapshot is an immutable view of the pipeline counters.
type Snapshot struct {
	AnalysisPasses int64
	EncodePasses   int64
	EncodeNanos    int64
	FilesConverted int64
	FilesFailed    int64
	CoversCopied   int64
	TagWarnings    int64
}

// SuccessRate reports the fraction of finished files that converted.
func (s Snapshot) SuccessRate() float64 {
	total := s.FilesConverted + s.FilesFailed
	if total == 0 {
		return 0
	}
	return float64(s.FilesConverted) / float64(total)
}

// AverageEncodeTime reports the mean encode pass duration.
func (s Snapshot) AverageEncodeTime() time.Duration {
	if s.EncodePasses == 0 {
		return 0
	}
	return time.Duration(s.EncodeNanos / s.EncodePasses)
}

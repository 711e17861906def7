package batch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"opus2mp3.dev/cli/internal/event"
	"opus2mp3.dev/cli/internal/metrics"
	"opus2mp3.dev/cli/internal/transcoder"
)

// convertFile is the per-file state machine: existing-file detection,
// analysis pass, encode pass, result classification, metadata
// transplant. Failures never stop sibling files except a missing tool,
// which halts further dispatch.
func (r *Runner) convertFile(ctx context.Context, job Job) {
	if r.stopped.Load() {
		return
	}

	srcName := filepath.Base(job.SourcePath)
	base := strings.TrimSuffix(srcName, filepath.Ext(srcName))
	destPath := filepath.Join(job.DestDir, base+OutputExt)

	// Presentational only: the destination is overwritten either way.
	if _, err := os.Stat(destPath); err == nil {
		r.sink.Emit(event.Overwriting, "%s...", filepath.Base(destPath))
	} else {
		r.sink.Emit(event.Converting, "%s...", srcName)
	}

	metrics.Global.RecordAnalysis()
	stats, err := r.tool.Analyze(ctx, job.SourcePath)
	if err != nil {
		r.failFile(srcName, err)
		return
	}

	started := time.Now()
	_, err = r.tool.Encode(ctx, job.SourcePath, destPath, stats)
	metrics.Global.RecordEncode(time.Since(started))
	if err != nil {
		r.failFile(srcName, err)
		return
	}

	r.sink.Emit(event.Finished, "%s.", srcName)
	metrics.Global.RecordConverted()
	r.recordSuccess()

	r.transplant.Transplant(job.SourcePath, destPath, r.sink)
}

// failFile classifies a pass failure, emits the matching events, and
// abandons the file. A missing tool additionally halts the batch.
func (r *Runner) failFile(srcName string, err error) {
	metrics.Global.RecordFailed()

	if errors.Is(err, transcoder.ErrToolNotFound) {
		r.sink.Emit(event.Error, "%v", err)
		r.Stop()
		r.logger.Error("transcoder unavailable, halting batch", zap.Error(err))
		return
	}

	var exitErr *transcoder.ExitError
	if errors.As(err, &exitErr) {
		r.sink.Emit(event.Error, "Converting %s. ffmpeg returned non-zero exit code.", srcName)
		if out := strings.TrimSpace(exitErr.Output); out != "" {
			r.sink.Emit(event.Error, "%s", out)
		}
		return
	}

	// Stats parse failures and anything else local to the file.
	r.sink.Emit(event.Error, "An error occurred during conversion of %s: %v", srcName, err)
}

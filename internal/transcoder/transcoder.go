// Package transcoder drives the external ffmpeg binary through the
// two-pass loudnorm protocol: an analysis pass that measures loudness
// characteristics, and an encode pass that applies the measured values
// together with the fixed normalization targets.
package transcoder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"

	"go.uber.org/zap"
)

// DefaultBinary is the tool looked up on PATH.
const DefaultBinary = "ffmpeg"

// ErrToolNotFound reports that the transcoder binary could not be
// located. This is fatal to the whole batch, unlike a non-zero exit
// which only fails the file being converted.
var ErrToolNotFound = errors.New("ffmpeg not found")

// ExitError reports a tool invocation that started but exited non-zero.
// Output holds the captured diagnostic stream.
type ExitError struct {
	ExitCode int
	Output   string
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("ffmpeg returned non-zero exit code %d", e.ExitCode)
}

// Targets are the loudness normalization targets of the pipeline. They
// are constants of the pipeline, not user configuration.
type Targets struct {
	IntegratedLoudness float64 // I, LUFS
	LoudnessRange      float64 // LRA, LU
	TruePeak           float64 // TP, dBTP
}

// DefaultTargets match the loudnorm parameters the encoder has always
// been run with.
var DefaultTargets = Targets{
	IntegratedLoudness: -12,
	LoudnessRange:      11,
	TruePeak:           -1.5,
}

// Tool invokes the external transcoder. Both passes block the calling
// goroutine until the child process exits; retry policy, if any, belongs
// to the caller.
type Tool struct {
	binary  string
	targets Targets
	logger  *zap.Logger
}

// New returns a Tool using the default binary and targets.
func New(logger *zap.Logger) *Tool {
	return NewWithBinary(DefaultBinary, DefaultTargets, logger)
}

// NewWithBinary returns a Tool running the given binary with the given
// targets. Used by tests and by callers that ship their own ffmpeg.
func NewWithBinary(binary string, targets Targets, logger *zap.Logger) *Tool {
	return &Tool{binary: binary, targets: targets, logger: logger}
}

// Analyze runs the analysis pass on srcPath and returns the parsed
// loudness stats. The loudnorm filter prints its measurement block on
// stderr; stdout is discarded into the null muxer.
func (t *Tool) Analyze(ctx context.Context, srcPath string) (Stats, error) {
	args := []string{
		"-i", srcPath,
		"-af", t.analysisFilter(),
		"-f", "null", "-",
	}

	cmd := exec.CommandContext(ctx, t.binary, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	t.logger.Debug("analysis pass", zap.String("source", srcPath), zap.Strings("args", args))

	if err := cmd.Run(); err != nil {
		return Stats{}, t.classify(err, stderr.String())
	}
	return ParseStats(stderr.String())
}

// Encode runs the encode pass, writing destPath and overwriting any
// existing file. The combined stdout/stderr output is returned so the
// caller can surface it on failure.
func (t *Tool) Encode(ctx context.Context, srcPath, destPath string, stats Stats) (string, error) {
	args := []string{
		"-y",
		"-i", srcPath,
		"-af", t.encodeFilter(stats),
		"-q:a", "0",
		"-ar", "48000",
		destPath,
	}

	cmd := exec.CommandContext(ctx, t.binary, args...)

	t.logger.Debug("encode pass",
		zap.String("source", srcPath),
		zap.String("destination", destPath),
		zap.Strings("args", args))

	out, err := cmd.CombinedOutput()
	if err != nil {
		return string(out), t.classify(err, string(out))
	}
	return string(out), nil
}

// classify separates a missing binary from a run that started and
// failed. Anything else (a context error, an I/O failure) is wrapped
// as-is.
func (t *Tool) classify(err error, output string) error {
	if errors.Is(err, exec.ErrNotFound) {
		return ErrToolNotFound
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return &ExitError{ExitCode: exitErr.ExitCode(), Output: output}
	}
	return fmt.Errorf("run %s: %w", t.binary, err)
}

func (t *Tool) analysisFilter() string {
	return fmt.Sprintf("loudnorm=I=%g:LRA=%g:TP=%g:print_format=json",
		t.targets.IntegratedLoudness, t.targets.LoudnessRange, t.targets.TruePeak)
}

// encodeFilter embeds the measured first-pass values alongside the same
// fixed targets. When the measurement pass reports dynamic mode the
// linear flag is added, which lets loudnorm apply a single linear gain
// where the measurements allow it.
func (t *Tool) encodeFilter(stats Stats) string {
	filter := fmt.Sprintf(
		"loudnorm=I=%g:LRA=%g:TP=%g:measured_I=%g:measured_LRA=%g:measured_TP=%g:measured_thresh=%g:offset=%g",
		t.targets.IntegratedLoudness, t.targets.LoudnessRange, t.targets.TruePeak,
		stats.InputIntegrated, stats.InputRange, stats.InputTruePeak,
		stats.InputThreshold, stats.TargetOffset)
	if stats.NormalizationType == NormalizationDynamic {
		filter += ":linear=true"
	}
	return filter
}

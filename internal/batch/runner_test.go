package batch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"go.uber.org/zap"

	"opus2mp3.dev/cli/internal/event"
	"opus2mp3.dev/cli/internal/transcoder"
)

// fakeTool scripts per-file outcomes keyed by source base name.
type fakeTool struct {
	mu       sync.Mutex
	analyzed []string
	encoded  []string

	analyzeErr map[string]error
	encodeErr  map[string]error
}

func (f *fakeTool) Analyze(_ context.Context, srcPath string) (transcoder.Stats, error) {
	name := filepath.Base(srcPath)
	f.mu.Lock()
	f.analyzed = append(f.analyzed, name)
	f.mu.Unlock()
	if err := f.analyzeErr[name]; err != nil {
		return transcoder.Stats{}, err
	}
	return transcoder.Stats{InputIntegrated: -20}, nil
}

func (f *fakeTool) Encode(_ context.Context, srcPath, _ string, _ transcoder.Stats) (string, error) {
	name := filepath.Base(srcPath)
	f.mu.Lock()
	f.encoded = append(f.encoded, name)
	f.mu.Unlock()
	if err := f.encodeErr[name]; err != nil {
		return "", err
	}
	return "", nil
}

func (f *fakeTool) analyzedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.analyzed)
}

type nopTransplant struct {
	calls atomic.Int64
}

func (n *nopTransplant) Transplant(_, _ string, _ event.Emitter) {
	n.calls.Add(1)
}

// drain collects every event and progress value until the sink closes.
func drain(sink *event.Sink) ([]event.Event, []int) {
	var events []event.Event
	var progress []int
	evCh, prCh := sink.Events(), sink.Progress()
	for evCh != nil || prCh != nil {
		select {
		case ev, ok := <-evCh:
			if !ok {
				evCh = nil
				continue
			}
			events = append(events, ev)
		case p, ok := <-prCh:
			if !ok {
				prCh = nil
				continue
			}
			progress = append(progress, p)
		}
	}
	return events, progress
}

func jobsFor(destDir string, names ...string) []Job {
	jobs := make([]Job, 0, len(names))
	for _, name := range names {
		jobs = append(jobs, Job{SourcePath: filepath.Join("/in", name), DestDir: destDir})
	}
	return jobs
}

func runBatch(t *testing.T, tool *fakeTool, workers int, jobs []Job) (*Runner, []event.Event, []int, *nopTransplant) {
	t.Helper()
	sink := event.NewSink(len(jobs)*4 + 8)
	transplant := &nopTransplant{}
	runner := NewRunner(tool, transplant, sink, workers, zap.NewNop())

	done := make(chan struct{})
	var events []event.Event
	var progress []int
	go func() {
		defer close(done)
		events, progress = drain(sink)
	}()

	runner.Run(context.Background(), jobs)
	<-done
	return runner, events, progress, transplant
}

func TestRunEmptyBatch(t *testing.T) {
	tool := &fakeTool{}
	_, events, progress, _ := runBatch(t, tool, 2, nil)

	if len(events) != 1 || events[0].Type != event.Info ||
		events[0].Text != "No files selected for conversion." {
		t.Errorf("events = %v, want single no-files info", events)
	}
	if len(progress) != 0 {
		t.Errorf("progress = %v, want none", progress)
	}
}

func TestRunAllSucceed(t *testing.T) {
	tool := &fakeTool{}
	jobs := jobsFor(t.TempDir(), "a.opus", "b.opus", "c.opus", "d.opus")
	runner, events, progress, transplant := runBatch(t, tool, 2, jobs)

	if got := runner.Completed(); got != len(jobs) {
		t.Errorf("Completed() = %d, want %d", got, len(jobs))
	}
	if got := transplant.calls.Load(); got != int64(len(jobs)) {
		t.Errorf("transplant calls = %d, want %d", got, len(jobs))
	}

	finished := 0
	for _, ev := range events {
		if ev.Type == event.Finished {
			finished++
		}
	}
	if finished != len(jobs) {
		t.Errorf("finished events = %d, want %d", finished, len(jobs))
	}

	if len(progress) == 0 {
		t.Fatal("no progress values delivered")
	}
	last := -1
	for _, p := range progress {
		if p < last {
			t.Fatalf("progress went backwards: %v", progress)
		}
		if p < 0 || p > 100 {
			t.Fatalf("progress out of range: %v", progress)
		}
		last = p
	}
	if last != 100 {
		t.Errorf("final progress = %d, want 100", last)
	}
}

func TestRunPartialFailure(t *testing.T) {
	tool := &fakeTool{
		encodeErr: map[string]error{
			"b.opus": &transcoder.ExitError{ExitCode: 1, Output: "Invalid data found"},
		},
	}
	jobs := jobsFor(t.TempDir(), "a.opus", "b.opus", "c.opus")
	runner, events, progress, _ := runBatch(t, tool, 1, jobs)

	if got := runner.Completed(); got != 2 {
		t.Errorf("Completed() = %d, want 2", got)
	}

	// tool output surfaces as its own error event
	var sawExit, sawOutput bool
	for _, ev := range events {
		if ev.Type != event.Error {
			continue
		}
		if strings.Contains(ev.Text, "non-zero exit code") {
			sawExit = true
		}
		if strings.Contains(ev.Text, "Invalid data found") {
			sawOutput = true
		}
	}
	if !sawExit || !sawOutput {
		t.Errorf("error events missing exit/output lines: %v", events)
	}

	// one file failed, so the batch never reaches 100
	if len(progress) == 0 || progress[len(progress)-1] == 100 {
		t.Errorf("progress = %v, want final value below 100", progress)
	}
}

func TestRunParseFailure(t *testing.T) {
	tool := &fakeTool{
		analyzeErr: map[string]error{
			"a.opus": &transcoder.ParseError{Reason: "no measurement block in tool output"},
		},
	}
	jobs := jobsFor(t.TempDir(), "a.opus")
	runner, events, _, transplant := runBatch(t, tool, 1, jobs)

	if got := runner.Completed(); got != 0 {
		t.Errorf("Completed() = %d, want 0", got)
	}
	if got := transplant.calls.Load(); got != 0 {
		t.Errorf("transplant calls = %d, want 0", got)
	}
	found := false
	for _, ev := range events {
		if ev.Type == event.Error && strings.Contains(ev.Text, "a.opus") {
			found = true
		}
	}
	if !found {
		t.Errorf("no per-file error event: %v", events)
	}
}

func TestRunToolNotFoundHaltsDispatch(t *testing.T) {
	names := make([]string, 16)
	for i := range names {
		names[i] = fmt.Sprintf("%02d.opus", i)
	}
	tool := &fakeTool{analyzeErr: map[string]error{}}
	for _, name := range names {
		tool.analyzeErr[name] = transcoder.ErrToolNotFound
	}

	jobs := jobsFor(t.TempDir(), names...)
	runner, events, _, _ := runBatch(t, tool, 1, jobs)

	if !runner.Stopped() {
		t.Error("Stopped() = false, want true after missing tool")
	}
	// With one worker the first failure stops dispatch before the rest run.
	if got := tool.analyzedCount(); got != 1 {
		t.Errorf("analyzed files = %d, want 1", got)
	}
	found := false
	for _, ev := range events {
		if ev.Type == event.Error && strings.Contains(ev.Text, "ffmpeg not found") {
			found = true
		}
	}
	if !found {
		t.Errorf("no tool-missing error event: %v", events)
	}
}

func TestStopDropsPendingJobs(t *testing.T) {
	tool := &fakeTool{}
	sink := event.NewSink(64)
	runner := NewRunner(tool, &nopTransplant{}, sink, 1, zap.NewNop())
	runner.Stop()

	done := make(chan struct{})
	go func() {
		defer close(done)
		drain(sink)
	}()

	runner.Run(context.Background(), jobsFor(t.TempDir(), "a.opus", "b.opus"))
	<-done

	if got := tool.analyzedCount(); got != 0 {
		t.Errorf("analyzed files = %d, want 0 after stop", got)
	}
	if got := runner.Completed(); got != 0 {
		t.Errorf("Completed() = %d, want 0", got)
	}
}

func TestOverwritingEvent(t *testing.T) {
	destDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(destDir, "a.mp3"), nil, 0644); err != nil {
		t.Fatal(err)
	}

	tool := &fakeTool{}
	_, events, _, _ := runBatch(t, tool, 1, jobsFor(destDir, "a.opus", "b.opus"))

	var sawOverwrite, sawConvert bool
	for _, ev := range events {
		switch ev.Type {
		case event.Overwriting:
			if strings.Contains(ev.Text, "a.mp3") {
				sawOverwrite = true
			}
		case event.Converting:
			if strings.Contains(ev.Text, "b.opus") {
				sawConvert = true
			}
		}
	}
	if !sawOverwrite {
		t.Errorf("no overwriting event for existing destination: %v", events)
	}
	if !sawConvert {
		t.Errorf("no converting event for fresh destination: %v", events)
	}
}

func TestNewRunnerDefaultsWorkers(t *testing.T) {
	runner := NewRunner(&fakeTool{}, &nopTransplant{}, event.NewSink(1), 0, zap.NewNop())
	if runner.workers <= 0 {
		t.Errorf("workers = %d, want > 0", runner.workers)
	}
}

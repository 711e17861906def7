package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"sort"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"opus2mp3.dev/cli/internal/batch"
	"opus2mp3.dev/cli/internal/event"
	"opus2mp3.dev/cli/internal/metrics"
	"opus2mp3.dev/cli/internal/tagcopy"
	"opus2mp3.dev/cli/internal/transcoder"
)

// SourceExt is the extension of input files.
const SourceExt = ".opus"

var AppVersion = "custom"

func main() {
	module, ok := debug.ReadBuildInfo()
	if ok && module.Main.Version != "(devel)" {
		AppVersion = module.Main.Version
	}
	app := cli.App{
		Name:     "Opus to MP3 Converter",
		HelpName: "opus2mp3",
		Usage:    "Convert Opus audio files to loudness-normalized MP3",
		Version:  fmt.Sprintf("%s (%s,%s/%s)", AppVersion, runtime.Version(), runtime.GOOS, runtime.GOARCH),
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "input", Aliases: []string{"i"}, Usage: "path to input file or dir", Required: false},
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "path to output dir", Required: false},
			&cli.IntFlag{Name: "jobs", Aliases: []string{"j"}, Usage: "parallel workers (default: CPU count)", Required: false},
			&cli.BoolFlag{Name: "watch", Usage: "watch the input dir and convert new files", Required: false, Value: false},
			&cli.BoolFlag{Name: "verbose", Aliases: []string{"V"}, Usage: "verbose logging", Required: false, Value: false},
		},

		Action:          appMain,
		HideHelpCommand: true,
		UsageText:       "opus2mp3 [-o /path/to/output/dir] [--extra-flags] [-i] /path/to/input",
	}

	err := app.Run(os.Args)
	if err != nil {
		// Use a temporary logger for fatal errors in main
		tempLogger := setupLogger(false)
		tempLogger.Fatal("run app failed", zap.Error(err))
	}
}

func setupLogger(verbose bool) *zap.Logger {
	logConfig := zap.NewProductionEncoderConfig()
	logConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	logConfig.EncodeTime = zapcore.RFC3339TimeEncoder
	enabler := zap.LevelEnablerFunc(func(level zapcore.Level) bool {
		if verbose {
			return true
		}
		return level >= zapcore.InfoLevel
	})

	return zap.New(zapcore.NewCore(
		zapcore.NewConsoleEncoder(logConfig),
		os.Stderr,
		enabler,
	))
}

func appMain(c *cli.Context) error {
	logger := setupLogger(c.Bool("verbose"))

	cwd, err := os.Getwd()
	if err != nil {
		return err
	}

	input := c.String("input")
	if input == "" {
		switch c.Args().Len() {
		case 0:
			input = cwd
		case 1:
			input = c.Args().Get(0)
		default:
			return errors.New("please specify input file (or directory)")
		}
	}

	input, absErr := filepath.Abs(input)
	if absErr != nil {
		return fmt.Errorf("get abs path failed: %w", absErr)
	}

	inputStat, err := os.Stat(input)
	if err != nil {
		return err
	}

	var inputDir string
	if inputStat.IsDir() {
		inputDir = input
	} else {
		inputDir = filepath.Dir(input)
	}

	output := c.String("output")
	if output == "" {
		// Default to where the input dir is
		output = inputDir
	}
	output, absErr = filepath.Abs(output)
	if absErr != nil {
		return fmt.Errorf("get abs path (output) failed: %w", absErr)
	}
	logger.Debug("resolve input/output path",
		zap.String("input", input), zap.String("output", output))

	// Destination creation failure aborts before any job starts.
	outputStat, err := os.Stat(output)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			err = os.MkdirAll(output, 0755)
		}
		if err != nil {
			return err
		}
	} else if !outputStat.IsDir() {
		return errors.New("output should be a writable directory")
	}

	conv := &converter{
		logger:  logger,
		destDir: output,
		workers: c.Int("jobs"),
		printer: newPrinter(os.Stdout),
	}

	if inputStat.IsDir() {
		if c.Bool("watch") {
			return conv.watchDir(input)
		}
		files, err := findOpusFiles(input)
		if err != nil {
			return err
		}
		conv.printer.print(event.Event{
			Type: event.Info,
			Text: fmt.Sprintf("Found %d Opus files in source folder.", len(files)),
		})
		conv.runBatch(files)
		return nil
	}

	if !strings.EqualFold(filepath.Ext(input), SourceExt) {
		return fmt.Errorf("%s is not an Opus file", filepath.Base(input))
	}
	conv.runBatch([]string{input})
	return nil
}

// converter wires one CLI invocation: it owns the destination, worker
// count, and the event printer, and spins up a fresh sink and runner
// per batch.
type converter struct {
	logger  *zap.Logger
	destDir string
	workers int
	printer *printer
}

// runBatch converts files and blocks until the batch settles and the
// event stream is drained. An interrupt requests cooperative
// cancellation; in-flight ffmpeg invocations are left to finish.
func (cv *converter) runBatch(files []string) {
	jobs := lo.Map(files, func(path string, _ int) batch.Job {
		return batch.Job{SourcePath: path, DestDir: cv.destDir}
	})

	sink := event.NewSink(64)
	tool := transcoder.New(cv.logger)
	transplant := tagcopy.New(cv.logger)
	runner := batch.NewRunner(tool, transplant, sink, cv.workers, cv.logger)

	drained := make(chan struct{})
	go func() {
		defer close(drained)
		cv.printer.consume(sink)
	}()

	interrupts := make(chan os.Signal, 1)
	signal.Notify(interrupts, os.Interrupt)
	go func() {
		for range interrupts {
			cv.logger.Warn("cancellation requested, letting in-flight conversions finish")
			runner.Stop()
		}
	}()

	started := time.Now()
	runner.Run(context.Background(), jobs)
	signal.Stop(interrupts)
	close(interrupts)
	<-drained

	if runner.Stopped() {
		cv.printer.print(event.Event{Type: event.Info, Text: "Conversion cancelled."})
	}
	cv.printer.print(event.Event{Type: event.Info, Text: "Conversion complete."})

	snap := metrics.Global.Snapshot()
	cv.logger.Info("batch finished",
		zap.Int64("converted", snap.FilesConverted),
		zap.Int64("failed", snap.FilesFailed),
		zap.Int64("coversCopied", snap.CoversCopied),
		zap.Int64("tagWarnings", snap.TagWarnings),
		zap.Duration("avgEncodeTime", snap.AverageEncodeTime()),
		zap.Duration("elapsed", time.Since(started)))
}

// findOpusFiles lists the Opus files directly inside dir, skipping
// hidden files, in stable order.
func findOpusFiles(dir string) ([]string, error) {
	items, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, item := range items {
		if item.IsDir() {
			continue
		}
		name := item.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		if strings.EqualFold(filepath.Ext(name), SourceExt) {
			files = append(files, filepath.Join(dir, name))
		}
	}
	sort.Strings(files)
	return files, nil
}

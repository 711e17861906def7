package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// watchDir converts the files already in inputDir, then keeps watching
// it and converts Opus files as they appear. Runs until interrupted.
func (cv *converter) watchDir(inputDir string) error {
	files, err := findOpusFiles(inputDir)
	if err != nil {
		return err
	}
	if len(files) > 0 {
		cv.runBatch(files)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	go func() {
		for {
			select {
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}

				if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
					continue
				}
				name := filepath.Base(ev.Name)
				if strings.HasPrefix(name, ".") || !strings.EqualFold(filepath.Ext(name), SourceExt) {
					continue
				}

				// try open with exclusive mode, to avoid file is still writing
				f, err := os.OpenFile(ev.Name, os.O_RDONLY, os.ModeExclusive)
				if err != nil {
					cv.logger.Debug("failed to open file exclusively", zap.String("path", ev.Name), zap.Error(err))
					time.Sleep(1 * time.Second) // wait for file writing complete
					continue
				}
				_ = f.Close()

				cv.runBatch([]string{ev.Name})
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				cv.logger.Error("file watcher got error", zap.Error(err))
			}
		}
	}()

	err = watcher.Add(inputDir)
	if err != nil {
		return fmt.Errorf("failed to watch dir %s: %w", inputDir, err)
	}

	signalCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	<-signalCtx.Done()
	return nil
}

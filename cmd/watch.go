package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gnolang/minver/analyze"
	"github.com/gnolang/minver/formatter"
	"github.com/gnolang/minver/internal/aggregate"
	"github.com/gnolang/minver/internal/types"
)

// changes arriving within this window are reported together
const watchDelay = 100 * time.Millisecond

var watchCmd = &cobra.Command{
	Use:   "watch [paths...]",
	Short: "Analyze paths, then re-analyze Python files as they change",
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return errors.New("please provide file or directory paths")
		}

		cfg, err := loadConfig(cmd.Flags(), &flags, args)
		if err != nil {
			return err
		}
		runner, err := analyze.New(cfg, logger)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		out := cmd.OutOrStdout()
		rep, err := runner.Run(ctx, args)
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		if err := formatter.Write(out, rep.Files, rep.Verdict, formatOptions(cfg)); err != nil {
			return err
		}

		w, err := newWatcher(runner, out, formatOptions(cfg))
		if err != nil {
			return err
		}
		defer w.close()
		if err := w.add(args); err != nil {
			return err
		}
		fmt.Fprintln(out, "Watching for changes, press Ctrl+C to stop.")
		return w.loop(ctx)
	},
}

type watcher struct {
	runner *analyze.Runner
	fsw    *fsnotify.Watcher
	out    io.Writer
	opts   formatter.Options
	delay  time.Duration
}

func newWatcher(runner *analyze.Runner, out io.Writer, opts formatter.Options) (*watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("error creating watcher: %w", err)
	}
	return &watcher{runner: runner, fsw: fsw, out: out, opts: opts, delay: watchDelay}, nil
}

func (w *watcher) close() error {
	return w.fsw.Close()
}

// add watches every directory under paths. Files are watched through
// their parent directory.
func (w *watcher) add(paths []string) error {
	for _, root := range paths {
		info, err := os.Stat(root)
		if err != nil {
			return fmt.Errorf("error accessing %s: %w", root, err)
		}
		if !info.IsDir() {
			root = filepath.Dir(root)
		}
		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() {
				return nil
			}
			if path != root && w.runner.Skipped(path) {
				return filepath.SkipDir
			}
			return w.fsw.Add(path)
		})
		if err != nil {
			return fmt.Errorf("error adding directory to watcher: %w", err)
		}
	}
	return nil
}

func (w *watcher) loop(ctx context.Context) error {
	pending := make(map[string]bool)
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handleFileEvent(event, pending)
			if len(pending) > 0 && fire == nil {
				fire = time.After(w.delay)
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			logger.Error("watch error", zap.Error(err))
		case <-fire:
			fire = nil
			if err := w.report(ctx, pending); err != nil {
				return err
			}
			pending = make(map[string]bool)
		}
	}
}

func (w *watcher) handleFileEvent(event fsnotify.Event, pending map[string]bool) {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
		return
	}
	if w.runner.Skipped(event.Name) {
		return
	}
	info, err := os.Stat(event.Name)
	if err != nil {
		return
	}
	if info.IsDir() {
		if event.Has(fsnotify.Create) {
			if err := w.add([]string{event.Name}); err != nil {
				logger.Error("error watching new directory", zap.String("path", event.Name), zap.Error(err))
			}
		}
		return
	}
	if analyze.IsPythonFile(event.Name) {
		pending[event.Name] = true
	}
}

func (w *watcher) report(ctx context.Context, pending map[string]bool) error {
	paths := make([]string, 0, len(pending))
	for p := range pending {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	agg := aggregate.New(w.opts.Targets)
	files := make([]types.FileResult, 0, len(paths))
	for _, p := range paths {
		res := w.runner.AnalyzeFile(ctx, p)
		agg.Add(res)
		files = append(files, res)
	}
	logger.Info("re-analyzed changed files", zap.Int("files", len(files)))
	return formatter.Write(w.out, files, agg.Snapshot(), w.opts)
}

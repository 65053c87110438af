package analyze

import (
	"context"
	"errors"
	"sort"

	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/gnolang/minver/internal/aggregate"
	"github.com/gnolang/minver/internal/config"
	"github.com/gnolang/minver/internal/types"
)

// Report is the outcome of a run.
type Report struct {
	Verdict types.RunVerdict
	// Files holds one result per analyzed file, sorted by path.
	Files []types.FileResult
}

// Run discovers and analyzes paths, using at most the configured number
// of concurrent workers. Results are folded by a single aggregating
// goroutine as they arrive.
//
// On cancellation Run returns the verdict of the files finished so far
// along with the context error. In pessimistic mode the first file error
// stops the run and is returned.
func (r *Runner) Run(ctx context.Context, paths []string) (Report, error) {
	files, err := r.Discover(paths)
	if err != nil {
		return Report{Verdict: aggregate.Empty()}, err
	}
	r.logger.Info("analyzing files", zap.Int("files", len(files)), zap.Int("processes", r.processes()))

	bar := r.newProgressBar(len(files))
	agg := aggregate.New(r.cfg.Targets)
	results := make(chan types.FileResult)
	collected := make(chan []types.FileResult)
	go func() {
		var out []types.FileResult
		for res := range results {
			agg.Add(res)
			out = append(out, res)
			if bar != nil {
				_ = bar.Add(1)
			}
		}
		collected <- out
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.processes())
	for _, path := range files {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			res := r.AnalyzeFile(gctx, path)
			if res.Err != nil {
				if isContextError(res.Err) {
					return res.Err
				}
				r.logger.Error("error processing file", zap.String("file", path), zap.Error(res.Err))
				results <- res
				if r.cfg.Pessimistic {
					return res.Err
				}
				return nil
			}
			results <- res
			return nil
		})
	}
	err = g.Wait()
	close(results)
	out := <-collected
	if bar != nil {
		_ = bar.Finish()
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	rep := Report{Verdict: agg.Snapshot(), Files: out}
	if err == nil {
		err = ctx.Err()
	}
	return rep, err
}

func (r *Runner) processes() int {
	if r.cfg.Processes <= 0 {
		return config.DefaultProcesses
	}
	return r.cfg.Processes
}

func (r *Runner) newProgressBar(n int) *progressbar.ProgressBar {
	if r.progress == nil || n < 2 {
		return nil
	}
	return progressbar.NewOptions(n,
		progressbar.OptionSetWriter(r.progress),
		progressbar.OptionSetDescription("analyzing"),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}))
}

func isContextError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

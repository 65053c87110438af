// Package analyze runs the detection pipeline over Python files: parse,
// detect, combine and aggregate.
package analyze

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"go.uber.org/zap"

	"github.com/gnolang/minver/internal/backport"
	"github.com/gnolang/minver/internal/cache"
	"github.com/gnolang/minver/internal/combine"
	"github.com/gnolang/minver/internal/config"
	"github.com/gnolang/minver/internal/detect"
	"github.com/gnolang/minver/internal/exclusion"
	"github.com/gnolang/minver/internal/parser"
	"github.com/gnolang/minver/internal/syntax"
	"github.com/gnolang/minver/internal/types"
)

// Runner analyzes sources under one configuration. It is safe for
// concurrent use.
type Runner struct {
	cfg    config.Config
	logger *zap.Logger
	detect *detect.Context
	cache  *cache.Cache

	// progress receives the progress bar of multi-file runs; nil disables it.
	progress io.Writer
}

// New validates cfg and compiles everything a run needs, so that
// configuration errors surface before any file is read. A nil logger
// discards log output.
func New(cfg config.Config, logger *zap.Logger) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	ex, err := exclusion.NewFilter(cfg.Exclusions)
	if err != nil {
		return nil, err
	}
	bp, err := backport.NewResolver(cfg.Backports)
	if err != nil {
		return nil, err
	}
	dctx, err := detect.NewContext(nil, ex, bp, detect.Options{
		EvalAnnotations: cfg.EvalAnnotations,
		Lax:             cfg.Lax,
		Features:        cfg.Features,
	})
	if err != nil {
		return nil, err
	}
	c, err := cache.New(cache.DefaultSize)
	if err != nil {
		return nil, err
	}

	r := &Runner{cfg: cfg, logger: logger, detect: dctx, cache: c}
	if !cfg.Quiet && isatty.IsTerminal(os.Stderr.Fd()) {
		r.progress = os.Stderr
	}
	return r, nil
}

func (r *Runner) Config() config.Config {
	return r.cfg
}

// SetProgress redirects the progress bar; nil disables it.
func (r *Runner) SetProgress(w io.Writer) {
	r.progress = w
}

// AnalyzeSource analyzes one source. Failures, syntax errors included,
// are reported in the result's Err field and leave the verdict empty, so
// the file never counts towards the run minimums.
func (r *Runner) AnalyzeSource(ctx context.Context, name string, src []byte) types.FileResult {
	if res, ok := r.cache.Get(name, src); ok {
		r.logger.Debug("cache hit", zap.String("path", name))
		return res
	}

	res := types.FileResult{Path: name}
	mod, err := parser.Parse(ctx, src)
	if err != nil {
		res.Err = fmt.Errorf("%s: %w", name, err)
		return res
	}

	facts, tips := detect.Analyze(mod, r.detect)
	res.Facts = facts
	res.Tips = append(res.Tips, tips...)
	res.Verdict = combine.Combine(facts, r.cfg.Targets)

	if r.cfg.PrintVisits {
		var sb strings.Builder
		if err := syntax.Dump(&sb, mod); err != nil {
			res.Err = fmt.Errorf("%s: %w", name, err)
			return res
		}
		res.Visits = sb.String()
	}

	r.logger.Debug("analyzed",
		zap.String("path", name),
		zap.Int("facts", len(facts)),
		zap.Stringer("minimums", res.Verdict.Minimums),
	)
	r.cache.Set(src, res)
	return res
}

// AnalyzeFile reads and analyzes the file at path.
func (r *Runner) AnalyzeFile(ctx context.Context, path string) types.FileResult {
	src, err := os.ReadFile(path)
	if err != nil {
		return types.FileResult{Path: path, Err: fmt.Errorf("error reading %s: %w", path, err)}
	}
	return r.AnalyzeSource(ctx, path, src)
}

// Failed reports whether rep should end the process unsuccessfully:
// targets were violated, a file failed, or a file is incompatible with
// every family and incompatibilities are not ignored.
func (r *Runner) Failed(rep Report) bool {
	if len(rep.Verdict.Violations) > 0 || len(rep.Verdict.Errors) > 0 {
		return true
	}
	if r.cfg.IgnoreIncomp {
		return false
	}
	for _, f := range rep.Files {
		if f.Err == nil && f.Verdict.Minimums.IncompatibleWithAll() {
			return true
		}
	}
	return false
}

package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/gnolang/minver/analyze"
	"github.com/gnolang/minver/formatter"
	"github.com/gnolang/minver/internal/config"
	"github.com/gnolang/minver/internal/version"
)

var (
	errQuietVerbose     = errors.New("cannot mix quiet and verbose modes")
	errInvalidProcesses = errors.New("number of processes must be greater than zero")
)

// checkFlags holds the analysis flags shared by every subcommand.
type checkFlags struct {
	quiet           bool
	verbose         int
	dump            bool
	processes       int
	ignoreIncomp    bool
	lax             bool
	pessimistic     bool
	noTips          bool
	hidden          bool
	exclusions      []string
	exclusionFile   string
	excludePaths    []string
	backports       []string
	features        []string
	targets         []string
	evalAnnotations bool
	violations      bool
	format          string
	versions        bool
	freqFile        string
}

func (f *checkFlags) register(fs *pflag.FlagSet) {
	fs.BoolVarP(&f.quiet, "quiet", "q", false, "Only print the final verdict")
	fs.CountVarP(&f.verbose, "verbose", "v", "Increase detail: -v lists files, -vv lists detections, -vvv adds uncertain ones")
	fs.BoolVarP(&f.dump, "dump", "d", false, "Print the syntax tree of each file")
	fs.IntVarP(&f.processes, "processes", "p", 0, "Number of files analyzed concurrently (default one per CPU)")
	fs.BoolVarP(&f.ignoreIncomp, "ignore", "i", false, "Do not fail on code incompatible with every Python version")
	fs.BoolVarP(&f.lax, "lax", "l", false, "Treat detections under conditionals as uncertain")
	fs.BoolVar(&f.pessimistic, "pessimistic", false, "Stop the whole run at the first file that fails to parse or read")
	fs.BoolVar(&f.noTips, "no-tips", false, "Do not show tips")
	fs.BoolVar(&f.hidden, "hidden", false, "Analyze hidden files and directories")
	fs.StringArrayVar(&f.exclusions, "exclude", nil, "Exclude a module, member, kwarg (f(kw)), codec (ce=name) or error handler (ceh=name)")
	fs.StringVar(&f.exclusionFile, "exclude-file", "", "Read exclusions from a file, one per line")
	fs.StringArrayVar(&f.excludePaths, "exclude-path", nil, "Skip paths matching a glob")
	fs.StringArrayVar(&f.backports, "backport", nil, "Assume a backport module is installed")
	fs.StringArrayVar(&f.features, "feature", nil, "Enable an optional detection")
	fs.StringArrayVarP(&f.targets, "target", "t", nil, "Target version, e.g. 2.7 or 3.5- (at most one per family)")
	fs.BoolVar(&f.evalAnnotations, "eval-annotations", false, "Analyze annotations as evaluated code")
	fs.BoolVar(&f.violations, "violations", false, "Only show detections that violate the targets")
	fs.StringVar(&f.format, "format", "", "Output format: "+strings.Join(config.Formats, ", "))
	fs.BoolVar(&f.versions, "versions", false, "List every distinct required version")
	fs.StringVar(&f.freqFile, "freq-file", "", "Add per-rule detection counts to a JSON file")
}

// overrides turns the flags given explicitly in fs into config overrides.
func (f *checkFlags) overrides(fs *pflag.FlagSet) (config.Overrides, error) {
	var o config.Overrides
	if f.quiet && f.verbose > 0 {
		return o, errQuietVerbose
	}
	if fs.Changed("processes") && f.processes <= 0 {
		return o, fmt.Errorf("%w: %d", errInvalidProcesses, f.processes)
	}
	boolFlag := func(name string, v bool) *bool {
		if !fs.Changed(name) {
			return nil
		}
		return &v
	}
	o.Quiet = boolFlag("quiet", f.quiet)
	o.PrintVisits = boolFlag("dump", f.dump)
	o.IgnoreIncomp = boolFlag("ignore", f.ignoreIncomp)
	o.Lax = boolFlag("lax", f.lax)
	o.Pessimistic = boolFlag("pessimistic", f.pessimistic)
	o.AnalyzeHidden = boolFlag("hidden", f.hidden)
	o.EvalAnnotations = boolFlag("eval-annotations", f.evalAnnotations)
	o.OnlyShowViolations = boolFlag("violations", f.violations)
	if fs.Changed("no-tips") {
		show := !f.noTips
		o.ShowTips = &show
	}
	if fs.Changed("verbose") {
		v := f.verbose
		o.Verbose = &v
	}
	if fs.Changed("processes") {
		p := f.processes
		o.Processes = &p
	}
	if fs.Changed("format") {
		format := f.format
		o.Format = &format
	}

	o.Exclusions = append(o.Exclusions, f.exclusions...)
	if f.exclusionFile != "" {
		lines, err := readLines(f.exclusionFile)
		if err != nil {
			return o, fmt.Errorf("error reading exclusion file: %w", err)
		}
		o.Exclusions = append(o.Exclusions, lines...)
	}
	o.ExcludePaths = f.excludePaths
	o.Backports = f.backports
	o.Features = f.features

	if len(f.targets) > 0 {
		targets, err := version.ParseTargets(f.targets)
		if err != nil {
			return o, err
		}
		o.Targets = targets
	}
	return o, nil
}

// readLines returns the non-empty, non-comment lines of path.
func readLines(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var out []string
	sc := bufio.NewScanner(file)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out, sc.Err()
}

// loadConfig resolves the config file, then applies the flags on top.
func loadConfig(fs *pflag.FlagSet, f *checkFlags, paths []string) (config.Config, error) {
	base := config.Default()
	switch {
	case noConfigFile:
	case cfgFile != "":
		c, err := config.ParseFile(cfgFile)
		if err != nil {
			return base, err
		}
		base = c
	default:
		path, err := config.DetectConfigFile(searchDir(paths))
		if err != nil {
			return base, err
		}
		if path != "" {
			logger.Debug("using config file", zap.String("path", path))
			c, err := config.ParseFile(path)
			if err != nil {
				return base, err
			}
			base = c
		}
	}

	o, err := f.overrides(fs)
	if err != nil {
		return base, err
	}
	cfg := base.Merge(o)
	return cfg, cfg.Validate()
}

// searchDir is where config discovery starts: the first path's directory,
// or the working directory.
func searchDir(paths []string) string {
	if len(paths) == 0 || strings.ContainsAny(paths[0], "*?[{") {
		return "."
	}
	info, err := os.Stat(paths[0])
	if err == nil && info.IsDir() {
		return paths[0]
	}
	return filepath.Dir(paths[0])
}

func formatOptions(cfg config.Config) formatter.Options {
	return formatter.Options{
		Format:             cfg.Format,
		Quiet:              cfg.Quiet,
		Verbose:            cfg.Verbose,
		ShowTips:           cfg.ShowTips,
		OnlyShowViolations: cfg.OnlyShowViolations,
		Targets:            cfg.Targets,
	}
}

var checkCmd = &cobra.Command{
	Use:   "check [paths...]",
	Short: "Detect the minimum Python versions of files and directories",
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return errors.New("please provide file or directory paths")
		}

		cfg, err := loadConfig(cmd.Flags(), &flags, args)
		if err != nil {
			return err
		}
		logger.Debug("configuration", zap.Stringer("config", cfg))

		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()

		return runCheck(ctx, cmd.OutOrStdout(), cfg, args, checkOutput{versions: flags.versions, freqFile: flags.freqFile})
	},
}

// checkOutput selects the extra outputs of a check run.
type checkOutput struct {
	versions bool
	freqFile string
}

func runCheck(ctx context.Context, out io.Writer, cfg config.Config, paths []string, opts checkOutput) error {
	runner, err := analyze.New(cfg, logger)
	if err != nil {
		return err
	}

	rep, err := runner.Run(ctx, paths)
	if err != nil {
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			logger.Error("analysis timed out; reporting partial results", zap.Duration("timeout", timeout))
		case errors.Is(err, context.Canceled):
			logger.Warn("analysis canceled; reporting partial results", zap.Int("files", len(rep.Files)))
		case !cfg.Pessimistic || len(rep.Files) == 0:
			return err
		}
	}

	if opts.versions {
		if err := formatter.WriteVersions(out, rep.Files); err != nil {
			return err
		}
	} else if err := formatter.Write(out, rep.Files, rep.Verdict, formatOptions(cfg)); err != nil {
		return err
	}

	if opts.freqFile != "" {
		if ferr := analyze.UpdateFrequencyFile(opts.freqFile, analyze.Frequencies(rep.Files)); ferr != nil {
			return ferr
		}
	}

	if err != nil || runner.Failed(rep) {
		return ErrFailed
	}
	return nil
}

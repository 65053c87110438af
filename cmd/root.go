package cmd

import (
	"errors"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const defaultTimeout = 5 * time.Minute

// ErrFailed is returned by Execute when the analysis ran but its outcome
// must fail the process: violated targets, failed files, or code that no
// Python version can run.
var ErrFailed = errors.New("minver: analysis failed")

var (
	cfgFile      string
	noConfigFile bool
	timeout      time.Duration

	flags  checkFlags
	logger = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:              "minver [paths...]",
	Short:            "minver - detect the minimum Python versions needed to run code",
	TraverseChildren: true, // Prioritize subcommands
	SilenceUsage:     true,
	SilenceErrors:    true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		l, err := newLogger(flags.quiet, flags.verbose)
		if err != nil {
			return err
		}
		logger = l
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		// no subcommand
		if len(args) == 0 {
			// display help when only 'minver' is entered
			return cmd.Help()
		}
		// Format: minver [path1 path2 ...] => behaves like the check subcommand
		return checkCmd.RunE(cmd, args)
	},
}

func Execute() error {
	return rootCmd.Execute()
}

// newLogger builds the process logger: silent when quiet, a development
// logger from -vv on, warnings and errors otherwise.
func newLogger(quiet bool, verbose int) (*zap.Logger, error) {
	if quiet {
		return zap.NewNop(), nil
	}
	if verbose >= 2 {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	cfg.Encoding = "console"
	return cfg.Build()
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config-file", "", "Use this config file instead of searching for minver.ini or setup.cfg")
	pf.BoolVar(&noConfigFile, "no-config-file", false, "Ignore any config file")
	pf.DurationVar(&timeout, "timeout", defaultTimeout, "Abort the analysis after this long")
	flags.register(pf)

	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(watchCmd)
}

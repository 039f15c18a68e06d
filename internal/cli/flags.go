package cli

import (
	"time"

	"github.com/sdejongh/dirdiff/pkg/config"
	"github.com/sdejongh/dirdiff/pkg/models"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// GlobalFlags holds global flag values
type GlobalFlags struct {
	ConfigFile string
	Verbose    bool
	Quiet      bool
}

// AddGlobalFlags adds global flags to the root command
func AddGlobalFlags(cmd *cobra.Command, g *GlobalFlags) {
	cmd.PersistentFlags().StringVar(
		&g.ConfigFile,
		"config",
		"",
		"config file (default is $HOME/.config/dirdiff/config.yaml)",
	)
	cmd.PersistentFlags().BoolVarP(
		&g.Verbose,
		"verbose",
		"v",
		false,
		"verbose output",
	)
	cmd.PersistentFlags().BoolVarP(
		&g.Quiet,
		"quiet",
		"q",
		false,
		"suppress non-error output",
	)
}

// compareFlags holds the flags shared by compare and watch
type compareFlags struct {
	profile  string
	baseline string

	mode                 string
	algorithm            string
	additionalAlgorithms []string
	ignore               []string

	caseSensitive     bool
	followSymlinks    bool
	modifiedTolerance time.Duration
	threads           int
	readLimit         string

	jsonReport string
	textReport string
	diffTool   string

	verbosity string
	failOn    string
	timeout   time.Duration
	debounce  time.Duration
}

func addCompareFlags(cmd *cobra.Command, f *compareFlags) {
	fl := cmd.Flags()
	fl.StringVarP(&f.profile, "profile", "p", "", "named profile from the config file")
	fl.StringVarP(&f.baseline, "baseline", "b", "", "baseline manifest used as the right side")

	fl.StringVarP(&f.mode, "mode", "m", "", "comparison mode: quick, hash")
	fl.StringVarP(&f.algorithm, "algorithm", "a", "", "primary hash algorithm (default sha256)")
	fl.StringSliceVar(&f.additionalAlgorithms, "additional-algorithm", nil, "extra hash algorithms to compute")
	fl.StringSliceVarP(&f.ignore, "ignore", "i", nil, "glob patterns to ignore (added to config patterns)")

	fl.BoolVar(&f.caseSensitive, "case-sensitive", false, "match names case-sensitively (default depends on the OS)")
	fl.BoolVar(&f.followSymlinks, "follow-symlinks", false, "follow symbolic links instead of skipping them")
	fl.DurationVar(&f.modifiedTolerance, "modified-tolerance", 0, "treat modification times within this duration as equal in quick mode")
	fl.IntVarP(&f.threads, "threads", "t", 0, "maximum concurrent hashing tasks (default: CPU count)")
	fl.StringVar(&f.readLimit, "read-limit", "", "cap hashing reads, e.g. \"50MB\" or \"1GiB\" per second")

	fl.StringVar(&f.jsonReport, "json-report", "", "write a JSON report to this file")
	fl.StringVar(&f.textReport, "text-report", "", "write a differences listing to this file")
	fl.StringVar(&f.diffTool, "diff-tool", "", "diff command suggested for differing files in the text report")

	fl.StringVar(&f.verbosity, "verbosity", "", "quiet, normal, verbose, or debug")
	fl.StringVar(&f.failOn, "fail-on", "", "exit non-zero on: none, different, error")
	fl.DurationVar(&f.timeout, "timeout", 0, "cancel the comparison after this duration")
	fl.DurationVar(&f.debounce, "debounce", 0, "quiet period before watch re-runs a comparison")
}

// input converts the flags that were actually set into resolver input
func (f *compareFlags) input(cmd *cobra.Command, g *GlobalFlags, args []string) config.Input {
	fl := cmd.Flags()
	in := config.Input{
		Profile:              f.profile,
		AdditionalAlgorithms: f.additionalAlgorithms,
		Ignore:               f.ignore,
	}

	if len(args) > 0 {
		in.Left = &args[0]
	}
	if len(args) > 1 {
		in.Right = &args[1]
	}

	in.Baseline = changedString(fl, "baseline", f.baseline)
	in.Mode = changedString(fl, "mode", f.mode)
	in.Algorithm = changedString(fl, "algorithm", f.algorithm)
	in.JSONReport = changedString(fl, "json-report", f.jsonReport)
	in.TextReport = changedString(fl, "text-report", f.textReport)
	in.DiffTool = changedString(fl, "diff-tool", f.diffTool)
	in.FailOn = changedString(fl, "fail-on", f.failOn)
	in.ReadLimit = changedString(fl, "read-limit", f.readLimit)

	if fl.Changed("case-sensitive") {
		in.CaseSensitive = &f.caseSensitive
	}
	if fl.Changed("follow-symlinks") {
		in.FollowSymlinks = &f.followSymlinks
	}
	if fl.Changed("threads") {
		in.Threads = &f.threads
	}
	if fl.Changed("modified-tolerance") {
		in.ModifiedTolerance = &f.modifiedTolerance
	}
	if fl.Changed("timeout") {
		in.Timeout = &f.timeout
	}
	if fl.Changed("debounce") {
		in.WatchDebounce = &f.debounce
	}

	switch {
	case fl.Changed("verbosity"):
		in.Verbosity = &f.verbosity
	case g.Quiet:
		in.Verbosity = verbosityPtr(models.VerbosityQuiet)
	case g.Verbose:
		in.Verbosity = verbosityPtr(models.VerbosityVerbose)
	}
	return in
}

func changedString(fl *pflag.FlagSet, name, value string) *string {
	if !fl.Changed(name) {
		return nil
	}
	return &value
}

func verbosityPtr(v models.Verbosity) *string {
	s := string(v)
	return &s
}

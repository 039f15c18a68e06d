package config

import (
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/sdejongh/dirdiff/internal/platform"
	"github.com/sdejongh/dirdiff/pkg/hash"
	"github.com/sdejongh/dirdiff/pkg/models"
	"github.com/sdejongh/dirdiff/pkg/ratelimit"
)

// Built-in defaults, used when no layer sets a value
const (
	defaultAlgorithm     = hash.SHA256
	defaultWatchDebounce = 500 * time.Millisecond
)

// Input holds the values given on the command line.
// A nil field means the flag was not set.
type Input struct {
	Profile string

	Left     *string
	Right    *string
	Baseline *string

	Mode      *string
	Algorithm *string
	// AdditionalAlgorithms are always added to the resolved algorithm set
	AdditionalAlgorithms []string
	Ignore               []string

	CaseSensitive     *bool
	FollowSymlinks    *bool
	ModifiedTolerance *time.Duration
	Threads           *int
	ReadLimit         *string

	JSONReport *string
	TextReport *string
	DiffTool   *string

	Verbosity     *string
	FailOn        *string
	Timeout       *time.Duration
	WatchDebounce *time.Duration
}

// Resolve merges command-line input, the selected profile and the
// configuration defaults into the settings of one run.
//
// Scalars take the first value set in: input, profile, defaults, built-in.
// Ignore patterns are the union of all three layers without duplicates.
// Additional algorithms from the input are added to the primary one.
func Resolve(in Input, cfg *Config) (*models.ResolvedCompareSettings, error) {
	if cfg == nil {
		cfg = &Config{}
	}

	var profile Profile
	if in.Profile != "" {
		p, ok := lookupProfile(cfg, in.Profile)
		if !ok {
			return nil, &models.ValidationError{
				Field:   "profile",
				Message: fmt.Sprintf("profile %q is not defined in the configuration", in.Profile),
				Err:     models.ErrProfileNotFound,
			}
		}
		profile = p
	}
	defaults := cfg.Defaults

	s := &models.ResolvedCompareSettings{
		Profile:        in.Profile,
		LeftPath:       normalizeSource(pick(in.Left, profile.Left, defaults.Left, "")),
		RightPath:      normalizeSource(pick(in.Right, profile.Right, defaults.Right, "")),
		BaselinePath:   normalizeSource(pick(in.Baseline, profile.Baseline, defaults.Baseline, "")),
		Mode:           models.CompareMode(strings.ToLower(pick(in.Mode, profile.Mode, defaults.Mode, string(models.ModeQuick)))),
		CaseSensitive:  pick(in.CaseSensitive, profile.CaseSensitive, defaults.CaseSensitive, platform.DefaultCaseSensitive()),
		FollowSymlinks: pick(in.FollowSymlinks, profile.FollowSymlinks, defaults.FollowSymlinks, false),
		Threads:        pick(in.Threads, profile.Threads, defaults.Threads, runtime.NumCPU()),
		JSONReport:     pick(in.JSONReport, profile.JSONReport, defaults.JSONReport, ""),
		TextReport:     pick(in.TextReport, profile.TextReport, defaults.TextReport, ""),
		DiffTool:       pick(in.DiffTool, profile.DiffTool, defaults.DiffTool, ""),
		Verbosity:      models.Verbosity(strings.ToLower(pick(in.Verbosity, profile.Verbosity, defaults.Verbosity, string(models.VerbosityNormal)))),
		FailOn:         models.FailPolicy(strings.ToLower(pick(in.FailOn, profile.FailOn, defaults.FailOn, string(models.FailDifferent)))),
		Ignore:         unionPatterns(in.Ignore, profile.Ignore, defaults.Ignore),
	}

	var err error
	if s.ModifiedTolerance, err = pickDuration("modified_tolerance", in.ModifiedTolerance, profile.ModifiedTolerance, defaults.ModifiedTolerance); err != nil {
		return nil, err
	}
	timeout, err := pickDuration("timeout", in.Timeout, profile.Timeout, defaults.Timeout)
	if err != nil {
		return nil, err
	}
	if timeout != nil {
		s.Timeout = *timeout
	}
	debounce, err := pickDuration("watch_debounce", in.WatchDebounce, profile.WatchDebounce, defaults.WatchDebounce)
	if err != nil {
		return nil, err
	}
	s.WatchDebounce = defaultWatchDebounce
	if debounce != nil {
		s.WatchDebounce = *debounce
	}

	rate := pick(in.ReadLimit, profile.ReadLimit, defaults.ReadLimit, "")
	if s.ReadLimit, err = ratelimit.ParseRate(rate); err != nil {
		return nil, &models.ValidationError{Field: "read_limit", Message: err.Error(), Err: models.ErrConfigInvalid}
	}

	primary := pick(in.Algorithm, profile.Algorithm, defaults.Algorithm, defaultAlgorithm)
	algorithms, err := hash.CanonicalSet(append([]string{primary}, in.AdditionalAlgorithms...))
	if err != nil {
		return nil, &models.ValidationError{Field: "algorithm", Message: err.Error(), Err: models.ErrUnknownAlgorithm}
	}
	s.Algorithms = algorithms

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// lookupProfile matches names case-insensitively since viper lower-cases map keys
func lookupProfile(cfg *Config, name string) (Profile, bool) {
	if p, ok := cfg.Profiles[name]; ok {
		return p, true
	}
	for key, p := range cfg.Profiles {
		if strings.EqualFold(key, name) {
			return p, true
		}
	}
	return Profile{}, false
}

// pick returns the first non-nil layer value, or builtin
func pick[T any](cli, profile, defaults *T, builtin T) T {
	for _, v := range []*T{cli, profile, defaults} {
		if v != nil {
			return *v
		}
	}
	return builtin
}

func pickDuration(field string, cli *time.Duration, profile, defaults *string) (*time.Duration, error) {
	if cli != nil {
		return cli, nil
	}
	for _, layer := range []*string{profile, defaults} {
		d, err := parseDuration(layer)
		if err != nil {
			return nil, &models.ValidationError{Field: field, Message: err.Error(), Err: models.ErrConfigInvalid}
		}
		if d != nil {
			return d, nil
		}
	}
	return nil, nil
}

// unionPatterns merges ignore globs, keeping first-seen order
func unionPatterns(layers ...[]string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, layer := range layers {
		for _, p := range layer {
			p = filepath.ToSlash(strings.TrimSpace(p))
			if p == "" || seen[p] {
				continue
			}
			seen[p] = true
			out = append(out, p)
		}
	}
	return out
}

// normalizeSource cleans local paths and leaves scheme-qualified sources untouched
func normalizeSource(s string) string {
	if s == "" || strings.Contains(s, "://") {
		return s
	}
	return platform.NormalizePath(s)
}

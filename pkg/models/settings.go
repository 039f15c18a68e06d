package models

import (
	"time"
)

// CompareMode defines how matched files are compared
type CompareMode string

const (
	// ModeQuick compares size and modification time only
	ModeQuick CompareMode = "quick"
	// ModeHash compares content digests
	ModeHash CompareMode = "hash"
)

// Valid reports whether m is a known mode
func (m CompareMode) Valid() bool {
	return m == ModeQuick || m == ModeHash
}

// Verbosity controls console output
type Verbosity string

const (
	VerbosityQuiet   Verbosity = "quiet"
	VerbosityNormal  Verbosity = "normal"
	VerbosityVerbose Verbosity = "verbose"
	VerbosityDebug   Verbosity = "debug"
)

// Valid reports whether v is a known verbosity
func (v Verbosity) Valid() bool {
	switch v {
	case VerbosityQuiet, VerbosityNormal, VerbosityVerbose, VerbosityDebug:
		return true
	}
	return false
}

// ResolvedCompareSettings is the authoritative configuration of a single run.
// It is built once per invocation and never mutated afterwards.
type ResolvedCompareSettings struct {
	Profile string

	LeftPath string
	// RightPath may be empty when BaselinePath is set
	RightPath    string
	BaselinePath string

	Mode       CompareMode
	Algorithms []string
	Ignore     []string

	CaseSensitive  bool
	FollowSymlinks bool

	// ModifiedTolerance is nil when no tolerance is configured
	ModifiedTolerance *time.Duration

	Threads int
	// ReadLimit caps hashing reads in bytes per second across all workers;
	// zero is unlimited
	ReadLimit int64

	JSONReport string
	TextReport string
	DiffTool   string

	Verbosity Verbosity
	FailOn    FailPolicy

	// Timeout is zero when the run is unbounded
	Timeout       time.Duration
	WatchDebounce time.Duration
}

// UsesBaseline reports whether the right side is a manifest
func (s *ResolvedCompareSettings) UsesBaseline() bool {
	return s.BaselinePath != ""
}

// Validate checks the settings for required combinations
func (s *ResolvedCompareSettings) Validate() error {
	if s.LeftPath == "" {
		return &ValidationError{Field: "left", Message: "left path is required", Err: ErrConfigInvalid}
	}
	if s.RightPath == "" && s.BaselinePath == "" {
		return &ValidationError{
			Field:   "right",
			Message: "no right path or baseline manifest given; pass RIGHT, --baseline, or set one in the profile or defaults",
			Err:     ErrMissingRightSide,
		}
	}
	if !s.Mode.Valid() {
		return &ValidationError{Field: "mode", Message: "unknown mode '" + string(s.Mode) + "' (use quick or hash)", Err: ErrUnknownMode}
	}
	if len(s.Algorithms) == 0 {
		return &ValidationError{Field: "algorithm", Message: "at least one algorithm is required", Err: ErrUnknownAlgorithm}
	}
	if s.Threads < 1 {
		return &ValidationError{Field: "threads", Message: "must be at least 1", Err: ErrConfigInvalid}
	}
	if s.ReadLimit < 0 {
		return &ValidationError{Field: "read_limit", Message: "must not be negative", Err: ErrConfigInvalid}
	}
	if s.ModifiedTolerance != nil && *s.ModifiedTolerance < 0 {
		return &ValidationError{Field: "modified_tolerance", Message: "must not be negative", Err: ErrConfigInvalid}
	}
	if !s.Verbosity.Valid() {
		return &ValidationError{Field: "verbosity", Message: "must be 'quiet', 'normal', 'verbose', or 'debug'", Err: ErrConfigInvalid}
	}
	if !s.FailOn.Valid() {
		return &ValidationError{Field: "fail_on", Message: "must be 'none', 'different', or 'error'", Err: ErrConfigInvalid}
	}
	if s.Timeout < 0 {
		return &ValidationError{Field: "timeout", Message: "must not be negative", Err: ErrConfigInvalid}
	}
	return nil
}

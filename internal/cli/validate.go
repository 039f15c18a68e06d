package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sdejongh/dirdiff/pkg/config"
	"github.com/sdejongh/dirdiff/pkg/logging"
	"github.com/sdejongh/dirdiff/pkg/models"
)

// loadConfig reads the configuration file named by --config, or the
// default search path
func loadConfig(g *GlobalFlags) (*config.Config, error) {
	cfg, err := config.Load(g.ConfigFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// newLogger builds the run logger. The configured level wins; otherwise
// verbosity selects it.
func newLogger(lc config.LoggingConfig, verbosity models.Verbosity, stderr io.Writer) (logging.Logger, error) {
	level := levelFor(verbosity)
	if lc.Level != "" {
		l, err := logging.ParseLevel(lc.Level)
		if err != nil {
			return nil, err
		}
		level = l
	}

	return logging.New(logging.Config{
		Level:      level,
		Format:     logging.Format(lc.Format),
		File:       lc.File,
		MaxSizeMB:  lc.MaxSizeMB,
		MaxBackups: lc.MaxBackups,
		MaxAgeDays: lc.MaxAgeDays,
		Compress:   lc.Compress,
		Output:     stderr,
	})
}

func levelFor(v models.Verbosity) logging.Level {
	switch v {
	case models.VerbosityQuiet:
		return logging.ErrorLevel
	case models.VerbosityVerbose:
		return logging.InfoLevel
	case models.VerbosityDebug:
		return logging.DebugLevel
	default:
		return logging.WarnLevel
	}
}

// validateSources warns about side combinations that are legal but
// probably not what the user meant
func validateSources(ctx context.Context, s *models.ResolvedCompareSettings, logger logging.Logger) {
	if s.RightPath == "" || s.UsesBaseline() || strings.Contains(s.LeftPath, "://") || strings.Contains(s.RightPath, "://") {
		return
	}

	leftAbs, err := filepath.Abs(s.LeftPath)
	if err != nil {
		return
	}
	rightAbs, err := filepath.Abs(s.RightPath)
	if err != nil {
		return
	}

	switch {
	case leftAbs == rightAbs:
		logger.Warn(ctx, "Left and right are the same directory", logging.Fields{"path": leftAbs})
	case strings.HasPrefix(rightAbs, leftAbs+string(filepath.Separator)):
		logger.Warn(ctx, "Right directory is inside the left directory", logging.Fields{"left": leftAbs, "right": rightAbs})
	case strings.HasPrefix(leftAbs, rightAbs+string(filepath.Separator)):
		logger.Warn(ctx, "Left directory is inside the right directory", logging.Fields{"left": leftAbs, "right": rightAbs})
	}
}

func fileExists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, fmt.Errorf("failed to check %s: %w", path, err)
}

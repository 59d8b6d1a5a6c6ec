// Package logging builds the zap logger shared by every testpilot component.
package logging

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/runnerr0/testpilot/internal/config"
)

// New returns a production JSON logger at the configured level. Output goes
// to stderr, plus the configured file when one is set.
func New(cfg config.LoggingConfig) (*zap.Logger, error) {
	level := cfg.Level
	if level == "" {
		level = "info"
	}
	atom, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("parse log level: %w", err)
	}

	zc := zap.NewProductionConfig()
	zc.Level = atom
	zc.OutputPaths = []string{"stderr"}
	if cfg.File != "" {
		path, err := config.ExpandPath(cfg.File)
		if err != nil {
			return nil, err
		}
		zc.OutputPaths = append(zc.OutputPaths, path)
	}

	logger, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return logger.Named("testpilot"), nil
}

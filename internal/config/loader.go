package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
)

// Loader resolves the configuration for a tree root.
type Loader struct {
	logger *slog.Logger
}

// NewLoader creates a new configuration loader.
func NewLoader(logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{logger: logger}
}

// Load returns the validated configuration for root. An explicit path must
// exist; otherwise FileName at root is used when present, else Default.
func (l *Loader) Load(root, explicit string) (*Config, error) {
	var (
		cfg *Config
		err error
	)

	switch {
	case explicit != "":
		cfg, err = LoadFromFile(explicit)
		if err != nil {
			return nil, err
		}
		l.logger.Debug("Loaded config", slog.String("path", explicit))
	default:
		projectPath := filepath.Join(root, FileName)
		cfg, err = LoadFromFile(projectPath)
		switch {
		case err == nil:
			l.logger.Debug("Loaded project config", slog.String("path", projectPath))
		case errors.Is(err, fs.ErrNotExist):
			l.logger.Debug("No project config found, using defaults")
			cfg = Default()
		default:
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

package logging

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"recipecast/internal/config"
)

// NewFromConfig creates a logger using application config defaults. Output
// always goes to recipecast.log in the configured log directory; daemons pass
// toStdout so operators can follow along in the terminal, while interactive
// commands keep stdout free for their own rendering.
func NewFromConfig(cfg *config.Config, toStdout bool) (*slog.Logger, error) {
	if cfg == nil {
		return New(Options{Level: "info", Format: "console", OutputPaths: []string{"stderr"}})
	}

	dir := cfg.LogDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure log directory: %w", err)
	}
	outputs := []string{filepath.Join(dir, "recipecast.log")}
	if toStdout {
		outputs = append([]string{"stdout"}, outputs...)
	}

	return New(Options{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		OutputPaths: outputs,
	})
}

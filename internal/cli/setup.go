package cli

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/term"

	"github.com/klubi/grokterm/internal/config"
	"github.com/klubi/grokterm/internal/store"
)

const fallbackWidth = 190

// newLogger builds a zap logger from the log section of the config.
func newLogger(c *config.Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", c.Log.Level, err)
	}

	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.Sampling = nil
	zc.OutputPaths = []string{c.LogPath()}
	zc.ErrorOutputPaths = []string{"stderr"}
	zc.DisableStacktrace = true
	if c.Log.Format != "json" {
		zc.Encoding = "console"
		zc.EncoderConfig = zap.NewDevelopmentEncoderConfig()
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	logger, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	return logger, nil
}

// openStore opens the context store selected by store.type.
func openStore(c *config.Config) (store.Store, error) {
	switch c.Store.Type {
	case "bolt":
		if err := os.MkdirAll(c.Store.DataDir, 0755); err != nil {
			return nil, fmt.Errorf("creating data directory %s: %w", c.Store.DataDir, err)
		}
		s, err := store.NewBoltStore(c.DBPath())
		if err != nil {
			return nil, fmt.Errorf("opening store at %s: %w", c.DBPath(), err)
		}
		return s, nil
	default:
		return store.NewFileStore(c.Store.DataDir), nil
	}
}

// wrapWidth resolves the configured width; 0 means the terminal width.
func wrapWidth(configured int) int {
	if configured > 0 {
		return configured
	}
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		return w
	}
	return fallbackWidth
}

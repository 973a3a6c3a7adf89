// Package logging configures the process-wide logrus logger.
package logging

import (
	"fmt"
	"io"
	"os"

	"github.com/enjoys-in/airsend-calc/config"
	"github.com/sirupsen/logrus"
)

// Setup applies level and format from cfg to the standard logger.
func Setup(cfg config.LogConfig) error {
	return Configure(logrus.StandardLogger(), cfg, os.Stderr)
}

func Configure(logger *logrus.Logger, cfg config.LogConfig, out io.Writer) error {
	level := logrus.InfoLevel
	if cfg.Level != "" {
		parsed, err := logrus.ParseLevel(cfg.Level)
		if err != nil {
			return fmt.Errorf("LOG_LEVEL: %w", err)
		}
		level = parsed
	}

	switch cfg.Format {
	case "", "text":
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	default:
		return fmt.Errorf("unknown LOG_FORMAT %q", cfg.Format)
	}

	logger.SetLevel(level)
	logger.SetOutput(out)
	return nil
}

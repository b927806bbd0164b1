package logging

import (
	"fmt"
	"io"
	"os"

	"github.com/alvmarrod/site-mirror/internal/config"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Setup configures the standard logrus logger. The returned closer releases the log file.
func Setup(cfg config.LogConfig, verbose bool) (io.Closer, error) {
	return Configure(logrus.StandardLogger(), cfg, verbose)
}

// Configure sets level, formatter and outputs of logger.
// Logs always go to stdout and additionally to a rotating file when one is configured.
func Configure(logger *logrus.Logger, cfg config.LogConfig, verbose bool) (io.Closer, error) {
	level := logrus.InfoLevel
	if cfg.Level != "" {
		parsed, err := logrus.ParseLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level: %w", err)
		}
		level = parsed
	}
	if verbose && level < logrus.DebugLevel {
		level = logrus.DebugLevel
	}

	logger.SetLevel(level)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	if cfg.File == "" {
		logger.SetOutput(os.Stdout)
		return nopCloser{}, nil
	}

	file := &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
	}
	logger.SetOutput(io.MultiWriter(os.Stdout, file))
	return file, nil
}

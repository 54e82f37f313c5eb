// Package logging configures the logrus logger shared by the queue, the
// extractor and the front ends.
package logging

import (
	"fmt"
	"io"
	"strings"

	"github.com/orandin/lumberjackrus"
	"github.com/sirupsen/logrus"
)

// Log file rotation
const (
	MaxFileSizeMB = 10
	MaxBackups    = 3
	MaxAgeDays    = 14
)

// Options configures Setup
type Options struct {
	Level string
	File  string // optional rotating log file
	Out   io.Writer
}

// Setup builds a logger that writes text to Out and, when File is set, JSON
// lines to a rotating file at debug level.
func Setup(opts Options) (*logrus.Logger, error) {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "15:04:05.000",
	})
	if opts.Out != nil {
		logger.SetOutput(opts.Out)
	}

	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}
	logger.SetLevel(level)

	if opts.File != "" {
		hook, err := lumberjackrus.NewHook(
			&lumberjackrus.LogFile{
				Filename:   opts.File,
				MaxSize:    MaxFileSizeMB,
				MaxBackups: MaxBackups,
				MaxAge:     MaxAgeDays,
				Compress:   false,
				LocalTime:  true,
			},
			logrus.DebugLevel,
			&logrus.JSONFormatter{},
			nil,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file %s: %w", opts.File, err)
		}
		logger.AddHook(hook)
	}
	return logger, nil
}

// ParseLevel accepts logrus level names; empty means info
func ParseLevel(raw string) (logrus.Level, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return logrus.InfoLevel, nil
	}
	level, err := logrus.ParseLevel(raw)
	if err != nil {
		return logrus.InfoLevel, fmt.Errorf("invalid log level %q: %w", raw, err)
	}
	return level, nil
}

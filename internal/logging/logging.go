// Package logging configures the process-wide logrus logger: a rotating file
// writer, an optional stderr mirror, and an optional remote hook that ships
// records to the ingester over UDP. Adapted from the teacher's internal/log
// writer-composition pattern (io.MultiWriter over one writer per output).
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"deepflow.io/agent/internal/config"
)

// Init builds the logrus logger described by cfg and installs it as the
// package-level Logger returned by L(). parentIsInit reports whether the
// current process's parent is PID 1: when false (the agent was started from
// a shell or a wrapper that can surface stderr) Init mirrors every record to
// stderr as well as the file; when true it writes to the file only. An empty
// cfg.FilePath always adds the stderr mirror.
func Init(cfg config.LogConfig, parentIsInit bool) (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		return nil, fmt.Errorf("logging: invalid level %q: %w", cfg.Level, err)
	}

	writers := []io.Writer{fileWriter(cfg)}
	if !parentIsInit || cfg.FilePath == "" {
		writers = append(writers, os.Stderr)
	}

	logger := logrus.New()
	logger.SetLevel(level)
	logger.SetOutput(io.MultiWriter(writers...))
	logger.SetFormatter(formatterFor(cfg.Format))

	if cfg.RemoteEnabled {
		hook, err := newRemoteHook(cfg)
		if err != nil {
			return nil, fmt.Errorf("logging: remote hook: %w", err)
		}
		logger.AddHook(hook)
	}

	current = logger
	return logger, nil
}

func fileWriter(cfg config.LogConfig) io.Writer {
	return &lumberjack.Logger{
		Filename:   cfg.FilePath,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	}
}

func formatterFor(format string) logrus.Formatter {
	if strings.EqualFold(format, "text") {
		return &logrus.TextFormatter{FullTimestamp: true}
	}
	return &logrus.JSONFormatter{}
}

var current = logrus.StandardLogger()

// L returns the currently installed logger, or logrus's standard logger
// before Init has run (tests construct their own instead of calling L).
func L() *logrus.Logger {
	return current
}

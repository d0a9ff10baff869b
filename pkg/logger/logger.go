package logger

import (
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"repoharness/pkg/models"
)

var log = logrus.New()

// Initialize configures the application logger from harness configuration.
// With a file path set, output is rotated with lumberjack and mirrored to
// stdout.
func Initialize(cfg models.LogConfig) error {
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	if cfg.Format == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}

	if cfg.FilePath != "" {
		logDir := filepath.Dir(cfg.FilePath)
		if err := os.MkdirAll(logDir, 0755); err != nil {
			return err
		}

		rotated := &lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
		}

		log.SetOutput(io.MultiWriter(os.Stdout, rotated))
	}

	return nil
}

// Get returns the shared logger instance.
func Get() *logrus.Logger {
	return log
}

// WithRepo returns an entry tagged with the repository and pipeline stage,
// the two fields every per-repo log line carries.
func WithRepo(repo, stage string) *logrus.Entry {
	return log.WithFields(logrus.Fields{
		"repo":  repo,
		"stage": stage,
	})
}

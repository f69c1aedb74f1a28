package logger

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger implements the ports.Logger interface on top of logrus, writing to
// the console and to a size-rotated log file.
type Logger struct {
	log      *logrus.Logger
	fileSink io.Closer
}

// Config holds configuration for the logrus logger adapter.
type Config struct {
	Level      string // DEBUG, INFO, WARN, ERROR
	FilePath   string // empty disables file output
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// fileHook forwards every entry to the rotated file writer with a plain
// formatter, independent of the console formatter.
type fileHook struct {
	writer    io.Writer
	formatter logrus.Formatter
}

func (h *fileHook) Levels() []logrus.Level { return logrus.AllLevels }

func (h *fileHook) Fire(entry *logrus.Entry) error {
	b, err := h.formatter.Format(entry)
	if err != nil {
		return err
	}
	_, err = h.writer.Write(b)
	return err
}

// New creates a new logger adapter.
func New(cfg Config) (*Logger, error) {
	log := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:          true,
		TimestampFormat:        "2006-01-02 15:04:05",
		DisableLevelTruncation: true,
		PadLevelText:           true,
	})
	log.SetOutput(os.Stdout)

	l := &Logger{log: log}

	if cfg.FilePath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0755); err != nil {
			return nil, err
		}
		rotated := &lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
		}
		log.AddHook(&fileHook{
			writer: rotated,
			formatter: &logrus.TextFormatter{
				DisableColors:   true,
				FullTimestamp:   true,
				TimestampFormat: "2006-01-02 15:04:05",
			},
		})
		l.fileSink = rotated
	}

	return l, nil
}

// Close closes the rotated file sink, if any.
func (l *Logger) Close() error {
	if l.fileSink != nil {
		return l.fileSink.Close()
	}
	return nil
}

func mergeFields(fields []map[string]interface{}) logrus.Fields {
	out := logrus.Fields{}
	for _, m := range fields {
		for k, v := range m {
			out[k] = v
		}
	}
	return out
}

// Debug logs a message at Debug level.
func (l *Logger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {
	l.log.WithFields(mergeFields(fields)).Debug(msg)
}

// Info logs a message at Info level.
func (l *Logger) Info(ctx context.Context, msg string, fields ...map[string]interface{}) {
	l.log.WithFields(mergeFields(fields)).Info(msg)
}

// Warn logs a message at Warning level.
func (l *Logger) Warn(ctx context.Context, msg string, fields ...map[string]interface{}) {
	l.log.WithFields(mergeFields(fields)).Warn(msg)
}

// Error logs an error message at Error level.
func (l *Logger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
	entry := l.log.WithFields(mergeFields(fields))
	if err != nil {
		entry = entry.WithError(err)
	}
	entry.Error(msg)
}

package core

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"
)

type LogLevel = log.Level

const (
	DebugLevel = log.DebugLevel
	InfoLevel  = log.InfoLevel
	WarnLevel  = log.WarnLevel
	ErrorLevel = log.ErrorLevel
	FatalLevel = log.FatalLevel
)

// LoggerConfig describes where and how the engine logs.
type LoggerConfig struct {
	// Level is one of debug, info, warn, error, fatal. Defaults to info.
	Level string
	// Prefix is printed in front of every line.
	Prefix string
	// File, when not empty, redirects the output to the given path (appending).
	File string
	// ReportCaller adds the calling file and line to every line.
	ReportCaller bool
	// Output overrides File and stderr. Mostly useful in tests.
	Output io.Writer
}

// Logger is the logging sink handed to every engine component that needs one.
// It is created once at startup and closed at shutdown.
type Logger struct {
	*log.Logger

	closer io.Closer
	exit   func(code int)
}

func NewLogger(cfg LoggerConfig) (*Logger, error) {
	level := log.InfoLevel
	if cfg.Level != "" {
		l, err := log.ParseLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
		}
		level = l
	}

	var out io.Writer = os.Stderr
	var closer io.Closer
	switch {
	case cfg.Output != nil:
		out = cfg.Output
	case cfg.File != "":
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, err
		}
		out = f
		closer = f
	}

	l := log.NewWithOptions(out, log.Options{
		ReportCaller:    cfg.ReportCaller,
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
		Prefix:          cfg.Prefix,
		Level:           level,
	})
	return &Logger{
		Logger: l,
		closer: closer,
		exit:   os.Exit,
	}, nil
}

// NewDiscardLogger returns a logger that drops everything. Fatal still exits.
func NewDiscardLogger() *Logger {
	return &Logger{
		Logger: log.NewWithOptions(io.Discard, log.Options{}),
		exit:   os.Exit,
	}
}

// With returns a child logger carrying the given key/value pairs.
func (l *Logger) With(keyvals ...interface{}) *Logger {
	return &Logger{
		Logger: l.Logger.With(keyvals...),
		closer: nil,
		exit:   l.exit,
	}
}

// SetExitFunc replaces the function called by Fatal once the message is written.
func (l *Logger) SetExitFunc(fn func(code int)) {
	l.exit = fn
}

// Fatal writes the message at fatal level and terminates through the exit hook.
func (l *Logger) Fatal(msg string, keyvals ...interface{}) {
	l.Helper()
	l.Log(log.FatalLevel, msg, keyvals...)
	l.exit(1)
}

func (l *Logger) Fatalf(format string, args ...interface{}) {
	l.Helper()
	l.Log(log.FatalLevel, fmt.Sprintf(format, args...))
	l.exit(1)
}

// Close releases the file output, if any.
func (l *Logger) Close() error {
	if l.closer == nil {
		return nil
	}
	err := l.closer.Close()
	l.closer = nil
	return err
}

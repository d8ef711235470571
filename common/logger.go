// Package common provides shared constants, types, and utilities
// used across NC Connect.
package common

import (
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// LogLevel represents the severity level of a log message.
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

var levelNames = map[LogLevel]string{
	LevelDebug: "DEBUG",
	LevelInfo:  "INFO",
	LevelWarn:  "WARN",
	LevelError: "ERROR",
}

func (l LogLevel) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return "UNKNOWN"
}

func (l LogLevel) zerolog() zerolog.Level {
	switch l {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelWarn:
		return zerolog.WarnLevel
	case LevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// LogConfig holds configuration options for the logger.
type LogConfig struct {
	Level      LogLevel
	EnableFile bool
	// Console defaults to stderr. Pass io.Discard to log to the file only.
	Console     io.Writer
	MaxFileSize int64 // bytes; default 5MB
	MaxBackups  int   // default 5
}

const (
	defaultMaxFileSize = 5 * 1024 * 1024
	defaultMaxBackups  = 5

	// Frames between zerolog's caller lookup and the LogX caller.
	callerSkip = 3
)

// AppLogger writes human-readable lines to the console and JSON lines to
// an optional rotating log file.
type AppLogger struct {
	mu      sync.Mutex
	zl      zerolog.Logger
	level   LogLevel
	console io.Writer
	file    *rotatingFile
}

var (
	defaultLogger *AppLogger
	loggerOnce    sync.Once
)

func newAppLogger(console io.Writer, level LogLevel) *AppLogger {
	l := &AppLogger{console: console, level: level}
	l.rebuild()
	return l
}

func consoleWriter(out io.Writer) io.Writer {
	return zerolog.ConsoleWriter{Out: out, TimeFormat: "2006/01/02 15:04:05"}
}

// GetLogger returns the process-wide logger.
func GetLogger() *AppLogger {
	loggerOnce.Do(func() {
		defaultLogger = newAppLogger(consoleWriter(os.Stderr), LevelInfo)
	})
	return defaultLogger
}

// InitLogger configures the process-wide logger. Call it once at startup.
func InitLogger(config LogConfig) error {
	l := GetLogger()
	if config.Console != nil {
		console := config.Console
		if console != io.Discard {
			console = consoleWriter(console)
		}
		l.SetOutput(console)
	}
	l.SetLevel(config.Level)

	if !config.EnableFile {
		return nil
	}
	size, backups := config.MaxFileSize, config.MaxBackups
	if size <= 0 {
		size = defaultMaxFileSize
	}
	if backups <= 0 {
		backups = defaultMaxBackups
	}
	return l.EnableFileLogging(filepath.Join(GetLogDir(), LogFileName), size, backups)
}

// GetLogDir returns the log directory, or "" when there is no home.
func GetLogDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(homeDir, ".local", "state", ConfigDirName)
}

func (l *AppLogger) SetLevel(level LogLevel) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
	l.rebuild()
}

// SetOutput replaces the console destination. The log file, if any, is
// kept.
func (l *AppLogger) SetOutput(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.console = w
	l.rebuild()
}

// EnableFileLogging adds a rotating JSON log file at path.
func (l *AppLogger) EnableFileLogging(path string, maxSize int64, maxBackups int) error {
	if filepath.Dir(path) == "." {
		return errors.New("could not resolve log directory")
	}
	f, err := openRotatingFile(path, maxSize, maxBackups)
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file != nil {
		l.file.Close()
	}
	l.file = f
	l.rebuild()
	return nil
}

// rebuild recreates zl from the sinks and level. Callers must hold l.mu.
func (l *AppLogger) rebuild() {
	var out io.Writer = l.console
	if l.file != nil {
		out = zerolog.MultiLevelWriter(l.console, l.file)
	}
	l.zl = zerolog.New(out).Level(l.level.zerolog()).With().Timestamp().Logger()
}

func (l *AppLogger) log(level LogLevel, msg string, args ...interface{}) {
	l.mu.Lock()
	zl := l.zl
	l.mu.Unlock()

	ev := zl.WithLevel(level.zerolog())
	if ev == nil {
		return
	}
	ev = ev.Caller(callerSkip)
	if len(args) > 0 {
		ev.Msgf(msg, args...)
	} else {
		ev.Msg(msg)
	}
}

func (l *AppLogger) Debug(msg string, args ...interface{}) { l.log(LevelDebug, msg, args...) }
func (l *AppLogger) Info(msg string, args ...interface{})  { l.log(LevelInfo, msg, args...) }
func (l *AppLogger) Warn(msg string, args ...interface{})  { l.log(LevelWarn, msg, args...) }
func (l *AppLogger) Error(msg string, args ...interface{}) { l.log(LevelError, msg, args...) }

// LogDebug logs a debug message to the default logger.
func LogDebug(msg string, args ...interface{}) {
	GetLogger().Debug(msg, args...)
}

// LogInfo logs an info message to the default logger.
func LogInfo(msg string, args ...interface{}) {
	GetLogger().Info(msg, args...)
}

// LogWarn logs a warning message to the default logger.
func LogWarn(msg string, args ...interface{}) {
	GetLogger().Warn(msg, args...)
}

// LogError logs an error message to the default logger.
func LogError(msg string, args ...interface{}) {
	GetLogger().Error(msg, args...)
}

// Close detaches and closes the log file.
func (l *AppLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	l.rebuild()
	return err
}

// CloseLogger closes the default logger.
func CloseLogger() error {
	return GetLogger().Close()
}

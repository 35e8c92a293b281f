// Package logger provides the global zerolog logger for the evergreen CLI.
//
// Console output goes to stderr through a console writer; an optional
// rotating log file can be attached for long-running serve mode. Commands
// use the package-level event constructors (logger.Info().Str(...).Msg(...)).
package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Log is the global logger instance.
var Log zerolog.Logger

// fileWriter is the rotating file output, nil unless file logging is enabled.
var fileWriter *lumberjack.Logger

// FileConfig holds rotation settings for file-based logging.
type FileConfig struct {
	Path       string
	MaxSizeMB  int
	MaxAgeDays int
	MaxBackups int
}

// Init configures console-only logging. Debug flips the level; timestamps
// use RFC3339.
func Init(debug bool) {
	Log = zerolog.New(consoleWriter()).
		Level(level(debug)).
		With().
		Timestamp().
		Logger()
}

// InitWithFile configures console logging plus a rotating file. An empty
// path means console-only; logging setup never fails the command.
func InitWithFile(debug bool, cfg FileConfig) {
	if cfg.Path == "" {
		Init(debug)
		return
	}
	fileWriter = &lumberjack.Logger{
		Filename:   cfg.Path,
		MaxSize:    orDefault(cfg.MaxSizeMB, 50),
		MaxAge:     orDefault(cfg.MaxAgeDays, 14),
		MaxBackups: orDefault(cfg.MaxBackups, 3),
		Compress:   true,
	}
	multi := io.MultiWriter(consoleWriter(), fileWriter)
	Log = zerolog.New(multi).
		Level(level(debug)).
		With().
		Timestamp().
		Logger()
}

// CloseFileWriter flushes and closes the rotating file, if any. Deferred
// from main.
func CloseFileWriter() {
	if fileWriter != nil {
		fileWriter.Close()
		fileWriter = nil
	}
}

func consoleWriter() io.Writer {
	return zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339,
	}
}

func level(debug bool) zerolog.Level {
	if debug {
		return zerolog.DebugLevel
	}
	return zerolog.InfoLevel
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// Debug starts a debug-level event.
func Debug() *zerolog.Event { return Log.Debug() }

// Info starts an info-level event.
func Info() *zerolog.Event { return Log.Info() }

// Warn starts a warning-level event.
func Warn() *zerolog.Event { return Log.Warn() }

// Error starts an error-level event.
func Error() *zerolog.Event { return Log.Error() }

// Fatal starts a fatal-level event; the message call exits the process.
func Fatal() *zerolog.Event { return Log.Fatal() }

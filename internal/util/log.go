package util

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// LogLevel represents the severity of a log message
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

var zerologLevels = map[LogLevel]zerolog.Level{
	LevelDebug: zerolog.DebugLevel,
	LevelInfo:  zerolog.InfoLevel,
	LevelWarn:  zerolog.WarnLevel,
	LevelError: zerolog.ErrorLevel,
}

var (
	currentLogLevel = LevelInfo
	useColors       = IsTerminal(os.Stderr.Fd())
	output          io.Writer = os.Stderr
	logger                    = newLogger()
)

func newLogger() zerolog.Logger {
	console := zerolog.ConsoleWriter{
		Out:        output,
		TimeFormat: time.TimeOnly,
		NoColor:    !useColors,
	}
	return zerolog.New(console).Level(zerologLevels[currentLogLevel]).With().Timestamp().Logger()
}

// SetLogLevel sets the minimum log level to display
func SetLogLevel(level LogLevel) {
	currentLogLevel = level
	logger = newLogger()
}

// SetVerbose enables verbose (debug) logging
func SetVerbose(verbose bool) {
	if verbose {
		SetLogLevel(LevelDebug)
	}
}

// SetQuiet enables quiet mode (errors only)
func SetQuiet(quiet bool) {
	if quiet {
		SetLogLevel(LevelError)
	}
}

// IsQuiet reports whether only errors are shown
func IsQuiet() bool {
	return currentLogLevel >= LevelError
}

// SetColors enables or disables colored output
func SetColors(enabled bool) {
	useColors = enabled
	logger = newLogger()
}

// SetOutput redirects console logging, mostly for tests
func SetOutput(w io.Writer) {
	output = w
	logger = newLogger()
}

// Logger returns the console logger for structured use
func Logger() *zerolog.Logger {
	return &logger
}

// DebugLog logs debug messages
func DebugLog(format string, args ...interface{}) {
	logger.Debug().Msgf(format, args...)
}

// InfoLog logs informational messages
func InfoLog(format string, args ...interface{}) {
	logger.Info().Msgf(format, args...)
}

// WarnLog logs warning messages
func WarnLog(format string, args ...interface{}) {
	logger.Warn().Msgf(format, args...)
}

// ErrorLog logs error messages
func ErrorLog(format string, args ...interface{}) {
	logger.Error().Msgf(format, args...)
}

// SuccessLog logs success messages (always shown unless quiet)
func SuccessLog(format string, args ...interface{}) {
	logger.Info().Bool("ok", true).Msgf(format, args...)
}

package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Default is the process-wide logger behind the package helpers
var Default *slog.Logger

// level is shared by every handler built here so a config reload can change
// verbosity without rebuilding loggers already handed to components
var level = new(slog.LevelVar)

func init() {
	Default = New("text", os.Stderr)
}

// ParseLevel maps a config or flag level name to a slog level.
// Unknown names fall back to info.
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New creates a logger writing to output in the given format ("json" or
// "text"), filtered by the shared level
func New(format string, output io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(output, opts))
	}
	return slog.New(slog.NewTextHandler(output, opts))
}

// Setup sets the level and installs a new default logger
func Setup(levelName, format string, output io.Writer) {
	SetLevel(levelName)
	SetDefault(New(format, output))
}

// SetLevel changes the level of every logger built by this package and
// returns the level now in effect
func SetLevel(name string) slog.Level {
	l := ParseLevel(name)
	level.Set(l)
	return l
}

// Level returns the level in effect
func Level() slog.Level {
	return level.Level()
}

// SetDefault sets the default logger
func SetDefault(l *slog.Logger) {
	Default = l
	slog.SetDefault(l)
}

func Debug(msg string, args ...any) {
	Default.Debug(msg, args...)
}

func Info(msg string, args ...any) {
	Default.Info(msg, args...)
}

func Warn(msg string, args ...any) {
	Default.Warn(msg, args...)
}

func Error(msg string, args ...any) {
	Default.Error(msg, args...)
}

// Component returns a child of the default logger tagged with a component name
func Component(name string) *slog.Logger {
	return Default.With("component", name)
}

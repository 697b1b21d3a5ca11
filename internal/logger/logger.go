// Package logger provides centralized logging for the DNS tunnel
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// EnvLogLevel overrides the configured log level when set.
const EnvLogLevel = "DNSTUN_LOG_LEVEL"

var (
	logFile  *os.File
	console  *os.File
	logMutex sync.Mutex
	logPath  string
	log      = zerolog.New(io.Discard)
)

// Init initializes the logger
func Init() error {
	logMutex.Lock()
	defer logMutex.Unlock()

	logPath = filepath.Join(getLogDir(), "dnstun.log")

	dir := filepath.Dir(logPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	logFile = f

	// Redirect stderr to log file so panics are captured. The console
	// writer keeps the original stderr, otherwise every line lands in the
	// file twice.
	console = redirectStderr(f)

	writers := []io.Writer{f}
	if console != nil {
		writers = append(writers, zerolog.ConsoleWriter{Out: console, TimeFormat: time.RFC3339})
	}
	log = zerolog.New(zerolog.MultiLevelWriter(writers...)).
		With().Timestamp().Str("app", "dnstun").Logger().
		Level(levelFromEnv(zerolog.InfoLevel))

	return nil
}

// SetLevel sets the minimum level by name ("debug", "info", "warn", "error",
// "off"). The DNSTUN_LOG_LEVEL environment variable wins over this value.
func SetLevel(name string) {
	lvl, ok := ParseLevel(name)
	if !ok {
		lvl = zerolog.InfoLevel
	}
	logMutex.Lock()
	log = log.Level(levelFromEnv(lvl))
	logMutex.Unlock()
}

// ParseLevel maps a level name to a zerolog level.
func ParseLevel(raw string) (zerolog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "trace":
		return zerolog.TraceLevel, true
	case "debug":
		return zerolog.DebugLevel, true
	case "info":
		return zerolog.InfoLevel, true
	case "warn", "warning":
		return zerolog.WarnLevel, true
	case "error":
		return zerolog.ErrorLevel, true
	case "off", "disabled", "none":
		return zerolog.Disabled, true
	default:
		return zerolog.InfoLevel, false
	}
}

func levelFromEnv(fallback zerolog.Level) zerolog.Level {
	if lvl, ok := ParseLevel(os.Getenv(EnvLogLevel)); ok {
		return lvl
	}
	return fallback
}

// Close closes the log file
func Close() {
	logMutex.Lock()
	defer logMutex.Unlock()
	log = zerolog.New(io.Discard)
	if console != nil {
		restoreStderr(console)
		console = nil
	}
	if logFile != nil {
		logFile.Close()
		logFile = nil
	}
}

func current() zerolog.Logger {
	logMutex.Lock()
	defer logMutex.Unlock()
	return log
}

// Info logs an info message
func Info(format string, args ...interface{}) {
	l := current()
	l.Info().Msg(fmt.Sprintf(format, args...))
}

// Error logs an error message
func Error(format string, args ...interface{}) {
	l := current()
	l.Error().Msg(fmt.Sprintf(format, args...))
}

// Debug logs a debug message
func Debug(format string, args ...interface{}) {
	l := current()
	l.Debug().Msg(fmt.Sprintf(format, args...))
}

// Warning logs a warning message
func Warning(format string, args ...interface{}) {
	l := current()
	l.Warn().Msg(fmt.Sprintf(format, args...))
}

// Connection logs a tunnel lifecycle event
func Connection(format string, args ...interface{}) {
	l := current()
	l.Info().Str("kind", "conn").Msg(fmt.Sprintf(format, args...))
}

// GetLogPath returns the path to the log file
func GetLogPath() string {
	return logPath
}

// Recover should be deferred at the top of every goroutine to catch panics.
// Usage: go func() { defer logger.Recover("myGoroutine"); ... }()
func Recover(name string) {
	if r := recover(); r != nil {
		stack := string(debug.Stack())
		Error("PANIC in %s: %v\n%s", name, r, stack)
		// Also write directly to file in case the logger is broken
		logMutex.Lock()
		if logFile != nil {
			logFile.WriteString(fmt.Sprintf("[%s] FATAL PANIC in %s: %v\n%s\n",
				time.Now().Format("2006-01-02 15:04:05"), name, r, stack))
			logFile.Sync()
		}
		logMutex.Unlock()
	}
}

// SafeGo launches a goroutine with panic recovery.
func SafeGo(name string, fn func()) {
	go func() {
		defer Recover(name)
		fn()
	}()
}

// ClearLogs truncates the log file
func ClearLogs() error {
	logMutex.Lock()
	defer logMutex.Unlock()

	if logFile == nil {
		return nil
	}
	if err := logFile.Truncate(0); err != nil {
		return err
	}
	_, err := logFile.Seek(0, io.SeekStart)
	return err
}

// Package logger provides leveled, component-scoped logging for the Koinonia
// desktop agent.
//
// Log lines are written to both stdout and a log file under the app's private
// data directory. Because the agent handles device tokens and session auth
// tokens, every line passes through a masking step before it is written:
// device tokens and JWT-looking values are reduced to a short prefix followed
// by a redaction marker. Raw secrets must never reach the log file.
package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"
)

// LogLevel represents the severity level of a log message
type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
)

// String returns the string representation of a log level
func (l LogLevel) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLogLevel converts a string to a LogLevel
func ParseLogLevel(level string) LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return DEBUG
	case "info":
		return INFO
	case "warn", "warning":
		return WARN
	case "error":
		return ERROR
	default:
		return INFO
	}
}

const maskMarker = "...[masked]"

var (
	// Device tokens: keep the namespace prefix plus the first few timestamp
	// digits, redact the rest.
	deviceTokenPattern = regexp.MustCompile(`(electron-fcm-[0-9]{5})[0-9A-Za-z-]+`)

	// JWTs always start with the base64 of {"alg":... so keep a short prefix.
	jwtPattern = regexp.MustCompile(`(eyJhbGciOiJ[A-Za-z0-9_-]{5})[A-Za-z0-9_.-]+`)
)

// MaskSecrets redacts device tokens and JWT-looking values in a message.
// Applied to every log line before it is written.
func MaskSecrets(message string) string {
	if strings.Contains(message, "electron-fcm-") {
		message = deviceTokenPattern.ReplaceAllString(message, "$1"+maskMarker)
	}
	if strings.Contains(message, "eyJhbGciOiJ") {
		message = jwtPattern.ReplaceAllString(message, "$1"+maskMarker)
	}
	return message
}

// MaskToken returns a display-safe form of a token: a short prefix followed
// by the redaction marker. Empty input yields "none".
func MaskToken(token string) string {
	if token == "" {
		return "none"
	}
	const keep = 15
	if len(token) <= keep {
		return token[:len(token)/2] + maskMarker
	}
	return token[:keep] + maskMarker
}

// MaskIdentity returns a display-safe form of a member identity.
func MaskIdentity(identity string) string {
	if identity == "" {
		return "none"
	}
	if len(identity) <= 2 {
		return "***"
	}
	return identity[:2] + "***"
}

// Logger provides structured logging with context
type Logger struct {
	component string
	level     LogLevel
	output    io.Writer
	mu        sync.Mutex
}

var (
	globalLogger *Logger
	globalMu     sync.RWMutex
)

// Initialize sets up the global logger with file and stdout output
func Initialize(logFile string, level string) error {
	logDir := filepath.Dir(logFile)
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}

	multiWriter := io.MultiWriter(os.Stdout, file)

	globalMu.Lock()
	globalLogger = &Logger{
		component: "main",
		level:     ParseLogLevel(level),
		output:    multiWriter,
	}
	globalMu.Unlock()

	return nil
}

// NewComponentLogger creates a new logger for a specific component
func NewComponentLogger(component string) *Logger {
	globalMu.RLock()
	defer globalMu.RUnlock()

	if globalLogger == nil {
		// Fallback to stdout if global logger not initialized
		return &Logger{
			component: component,
			level:     INFO,
			output:    os.Stdout,
		}
	}

	return &Logger{
		component: component,
		level:     globalLogger.level,
		output:    globalLogger.output,
	}
}

// log writes a log message with the specified level
func (l *Logger) log(level LogLevel, format string, args ...interface{}) {
	if level < l.level {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	timestamp := time.Now().Format("2006-01-02 15:04:05.000")
	message := MaskSecrets(fmt.Sprintf(format, args...))

	logEntry := fmt.Sprintf("%s [%s] [%s] %s\n",
		timestamp, level.String(), l.component, message)

	l.output.Write([]byte(logEntry))
}

// Debug logs a debug message
func (l *Logger) Debug(format string, args ...interface{}) {
	l.log(DEBUG, format, args...)
}

// Info logs an info message
func (l *Logger) Info(format string, args ...interface{}) {
	l.log(INFO, format, args...)
}

// Warn logs a warning message
func (l *Logger) Warn(format string, args ...interface{}) {
	l.log(WARN, format, args...)
}

// Error logs an error message
func (l *Logger) Error(format string, args ...interface{}) {
	l.log(ERROR, format, args...)
}

// Global logging functions for components without their own logger instance
func Debug(format string, args ...interface{}) {
	globalMu.RLock()
	logger := globalLogger
	globalMu.RUnlock()

	if logger != nil {
		logger.Debug(format, args...)
	} else {
		log.Printf("[DEBUG] "+format, args...)
	}
}

func Info(format string, args ...interface{}) {
	globalMu.RLock()
	logger := globalLogger
	globalMu.RUnlock()

	if logger != nil {
		logger.Info(format, args...)
	} else {
		log.Printf("[INFO] "+format, args...)
	}
}

func Warn(format string, args ...interface{}) {
	globalMu.RLock()
	logger := globalLogger
	globalMu.RUnlock()

	if logger != nil {
		logger.Warn(format, args...)
	} else {
		log.Printf("[WARN] "+format, args...)
	}
}

func Error(format string, args ...interface{}) {
	globalMu.RLock()
	logger := globalLogger
	globalMu.RUnlock()

	if logger != nil {
		logger.Error(format, args...)
	} else {
		log.Printf("[ERROR] "+format, args...)
	}
}

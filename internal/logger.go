package internal

import (
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"
)

// LogLevel represents different logging levels
type LogLevel int

const (
	LogLevelError LogLevel = iota
	LogLevelWarn
	LogLevelInfo
	LogLevelDebug
)

func (l LogLevel) String() string {
	switch l {
	case LogLevelError:
		return "ERROR"
	case LogLevelWarn:
		return "WARN"
	case LogLevelInfo:
		return "INFO"
	case LogLevelDebug:
		return "DEBUG"
	default:
		return "UNKNOWN"
	}
}

// SecureLogger is a leveled logger that redacts credential material before
// anything reaches the sink. Strategy attempts are logged through it, and
// those lines routinely contain URLs and headers.
type SecureLogger struct {
	logger    *log.Logger
	level     LogLevel
	quiet     bool
	redactors []Redactor
}

// Redactor removes sensitive information from a log line.
type Redactor interface {
	Redact(input string) string
}

// CookieRedactor blanks the values of session cookies and auth headers.
type CookieRedactor struct{}

var cookieMarkers = []string{
	"ndus=",
	"BDUSS=",
	"STOKEN=",
	"browserid=",
	"Cookie:",
	"Set-Cookie:",
	"Authorization:",
}

func (CookieRedactor) Redact(input string) string {
	return redactAfter(input, cookieMarkers, func(c byte) bool {
		return c == ' ' || c == ';' || c == '\n' || c == '\r'
	})
}

// ParamRedactor blanks sensitive URL query parameters.
type ParamRedactor struct{}

var paramMarkers = []string{
	"sign=",
	"jsToken=",
	"access_token=",
	"token=",
	"pwd=",
}

func (ParamRedactor) Redact(input string) string {
	return redactAfter(input, paramMarkers, func(c byte) bool {
		return c == '&' || c == ' ' || c == '\n'
	})
}

func redactAfter(input string, markers []string, stop func(byte) bool) string {
	result := input
	for _, marker := range markers {
		lower := strings.ToLower(result)
		idx := strings.Index(lower, strings.ToLower(marker))
		if idx == -1 {
			continue
		}
		start := idx + len(marker)
		end := start
		for end < len(result) && !stop(result[end]) {
			end++
		}
		if end > start {
			result = result[:start] + "[REDACTED]" + result[end:]
		}
	}
	return result
}

// NewSecureLogger creates a logger writing to the given sink.
func NewSecureLogger(output io.Writer, level LogLevel, quiet bool) *SecureLogger {
	return &SecureLogger{
		logger:    log.New(output, "", 0),
		level:     level,
		quiet:     quiet,
		redactors: []Redactor{CookieRedactor{}, ParamRedactor{}},
	}
}

// NewDefaultLogger creates a stderr logger at info level.
func NewDefaultLogger() *SecureLogger {
	return NewSecureLogger(os.Stderr, LogLevelInfo, false)
}

func (sl *SecureLogger) shouldLog(level LogLevel) bool {
	if sl.quiet && level > LogLevelError {
		return false
	}
	return level <= sl.level
}

func (sl *SecureLogger) output(level LogLevel, format string, args ...interface{}) {
	if !sl.shouldLog(level) {
		return
	}
	message := fmt.Sprintf(format, args...)
	for _, r := range sl.redactors {
		message = r.Redact(message)
	}
	timestamp := time.Now().Format("2006-01-02 15:04:05")
	sl.logger.Printf("[%s] %s %s", timestamp, level, message)
}

func (sl *SecureLogger) Error(format string, args ...interface{}) {
	sl.output(LogLevelError, format, args...)
}

func (sl *SecureLogger) Warn(format string, args ...interface{}) {
	sl.output(LogLevelWarn, format, args...)
}

func (sl *SecureLogger) Info(format string, args ...interface{}) {
	sl.output(LogLevelInfo, format, args...)
}

func (sl *SecureLogger) Debug(format string, args ...interface{}) {
	sl.output(LogLevelDebug, format, args...)
}

// LogHTTPRequest logs a request at debug level with headers sanitized.
func (sl *SecureLogger) LogHTTPRequest(req *http.Request) {
	if !sl.shouldLog(LogLevelDebug) {
		return
	}
	headers := make(map[string]string, len(req.Header))
	for name, values := range req.Header {
		if isSensitiveHeader(name) {
			headers[name] = "[REDACTED]"
		} else {
			headers[name] = strings.Join(values, ", ")
		}
	}
	sl.Debug("HTTP %s %s headers=%v", req.Method, req.URL, headers)
}

func isSensitiveHeader(name string) bool {
	switch strings.ToLower(name) {
	case "authorization", "cookie", "set-cookie", "x-auth-token", "x-api-key":
		return true
	}
	return false
}

// SetLevel sets the logging level.
func (sl *SecureLogger) SetLevel(level LogLevel) { sl.level = level }

// SetQuiet suppresses everything below error level.
func (sl *SecureLogger) SetQuiet(quiet bool) {
	sl.quiet = quiet
	if quiet {
		sl.level = LogLevelError
	}
}

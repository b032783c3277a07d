package internal

import (
	"io"
	"os"
	"strings"
	"sync"
)

var (
	globalLogger *SecureLogger
	loggerMutex  sync.RWMutex
)

// InitLogger initializes the global logger from loaded settings.
func InitLogger(settings *Settings) error {
	loggerMutex.Lock()
	defer loggerMutex.Unlock()

	level := ParseLogLevel(settings.LogLevel)
	if settings.Debug {
		level = LogLevelDebug
	}

	var output io.Writer = os.Stderr
	if settings.LogFile != "" {
		file, err := os.OpenFile(settings.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return err
		}
		output = file
	}

	globalLogger = NewSecureLogger(output, level, settings.Quiet)
	return nil
}

// GetLogger returns the global logger, creating a default one on first use.
func GetLogger() *SecureLogger {
	loggerMutex.RLock()
	logger := globalLogger
	loggerMutex.RUnlock()
	if logger != nil {
		return logger
	}

	loggerMutex.Lock()
	defer loggerMutex.Unlock()
	if globalLogger == nil {
		globalLogger = NewDefaultLogger()
	}
	return globalLogger
}

// ParseLogLevel converts a level name to a LogLevel, defaulting to info.
func ParseLogLevel(level string) LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return LogLevelDebug
	case "info":
		return LogLevelInfo
	case "warn", "warning":
		return LogLevelWarn
	case "error":
		return LogLevelError
	default:
		return LogLevelInfo
	}
}

func LogError(format string, args ...interface{}) { GetLogger().Error(format, args...) }

func LogWarn(format string, args ...interface{}) { GetLogger().Warn(format, args...) }

func LogInfo(format string, args ...interface{}) { GetLogger().Info(format, args...) }

func LogDebug(format string, args ...interface{}) { GetLogger().Debug(format, args...) }

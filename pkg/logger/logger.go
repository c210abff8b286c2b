// Package logger is the run-wide log sink. Messages go to a rotating JSON
// file; nothing is written until Init is called.
package logger

import (
	"fmt"
	"io"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	globalLogger = zap.NewNop()
	sugar        = globalLogger.Sugar()
	logFile      *lumberjack.Logger
	mu           sync.Mutex
)

// Options tune rotation. Zero values use lumberjack defaults.
type Options struct {
	MaxSizeMB  int
	MaxBackups int
	Debug      bool
}

// Init initializes the global logger with the specified log file path.
func Init(logPath string) error {
	return InitWithOptions(logPath, Options{Debug: true})
}

// InitWithOptions initializes the global logger with rotation settings.
func InitWithOptions(logPath string, opts Options) error {
	if logPath == "" {
		return fmt.Errorf("failed to create log file: empty path")
	}

	mu.Lock()
	defer mu.Unlock()

	// Close previous log file if exists
	if logFile != nil {
		_ = globalLogger.Sync()
		_ = logFile.Close()
	}

	logFile = &lumberjack.Logger{
		Filename:   logPath,
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
	}

	level := zap.InfoLevel
	if opts.Debug {
		level = zap.DebugLevel
	}
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000000")
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder

	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), zapcore.AddSync(logFile), level)
	globalLogger = zap.New(core)
	sugar = globalLogger.Sugar()
	return nil
}

// Close flushes and closes the log file.
func Close() {
	mu.Lock()
	defer mu.Unlock()

	if logFile != nil {
		_ = globalLogger.Sync()
		_ = logFile.Close()
		logFile = nil
	}
	globalLogger = zap.NewNop()
	sugar = globalLogger.Sugar()
}

// L returns the structured logger. It is a no-op logger before Init.
func L() *zap.Logger {
	mu.Lock()
	defer mu.Unlock()
	return globalLogger
}

func s() *zap.SugaredLogger {
	mu.Lock()
	defer mu.Unlock()
	return sugar
}

// Info logs an info message.
func Info(format string, v ...interface{}) { s().Infof(format, v...) }

// Debug logs a debug message.
func Debug(format string, v ...interface{}) { s().Debugf(format, v...) }

// Error logs an error message.
func Error(format string, v ...interface{}) { s().Errorf(format, v...) }

// Warn logs a warning message.
func Warn(format string, v ...interface{}) { s().Warnf(format, v...) }

// GetWriter returns the underlying writer for use by drivers.
func GetWriter() io.Writer {
	mu.Lock()
	defer mu.Unlock()

	if logFile != nil {
		return logFile
	}
	return io.Discard
}

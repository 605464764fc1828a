package logger

import (
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Log is the global logger instance. It is a no-op logger until Initialize runs
// so packages can log from tests without setup.
var Log = zap.NewNop()

// SugaredLog is a sugared view of Log for printf-style call sites
var SugaredLog = Log.Sugar()

// Initialize sets up the structured logger with file rotation.
// logLevel: "debug", "info", "warn", "error" (default: "info")
// logFile: path to the JSON log file; empty disables the file core
func Initialize(logLevel string, logFile string) error {
	return InitializeWithConsole(logLevel, logFile, os.Stderr)
}

// InitializeWithConsole is Initialize with an explicit console writer. The
// watch command passes io.Discard so log lines don't interleave with toasts.
func InitializeWithConsole(logLevel string, logFile string, console io.Writer) error {
	if logLevel == "" {
		logLevel = "info"
	}
	level := parseLogLevel(logLevel)

	consoleCore := zapcore.NewCore(
		zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()),
		zapcore.AddSync(console),
		level,
	)

	cores := []zapcore.Core{consoleCore}
	if logFile != "" {
		fileWriter := zapcore.AddSync(&lumberjack.Logger{
			Filename:   logFile,
			MaxSize:    20, // megabytes
			MaxBackups: 3,
			MaxAge:     7, // days
			Compress:   true,
		})

		jsonEncoderConfig := zap.NewProductionEncoderConfig()
		jsonEncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(jsonEncoderConfig), fileWriter, level))
	}

	Log = zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
	SugaredLog = Log.Sugar()

	Log.Debug("Logger initialized",
		zap.String("level", logLevel),
		zap.String("file", logFile),
	)
	return nil
}

// Close flushes the logger before shutdown
func Close() error {
	if Log != nil {
		return Log.Sync()
	}
	return nil
}

func parseLogLevel(levelStr string) zapcore.Level {
	switch strings.ToLower(levelStr) {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Debug logs a debug message with structured fields
func Debug(msg string, fields ...zap.Field) {
	Log.Debug(msg, fields...)
}

// Info logs an info message with structured fields
func Info(msg string, fields ...zap.Field) {
	Log.Info(msg, fields...)
}

// Warn logs a warning message with structured fields
func Warn(msg string, fields ...zap.Field) {
	Log.Warn(msg, fields...)
}

// WarnWithErr logs a warning message, optionally with an error
func WarnWithErr(msg string, err error, fields ...zap.Field) {
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	Log.Warn(msg, fields...)
}

// Error logs an error with structured fields
func Error(msg string, fields ...zap.Field) {
	Log.Error(msg, fields...)
}

// ErrorWithErr logs an error message with an error
func ErrorWithErr(msg string, err error, fields ...zap.Field) {
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	Log.Error(msg, fields...)
}

func WithUserID(userID string) zap.Field {
	return zap.String("user_id", userID)
}

func WithProfileID(profileID string) zap.Field {
	return zap.String("profile_id", profileID)
}

func WithNotificationID(notificationID string) zap.Field {
	return zap.String("notification_id", notificationID)
}

func WithTopic(topic string) zap.Field {
	return zap.String("topic", topic)
}

func WithTable(table string) zap.Field {
	return zap.String("table", table)
}

func WithEpoch(epoch uint64) zap.Field {
	return zap.Uint64("epoch", epoch)
}

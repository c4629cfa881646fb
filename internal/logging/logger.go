package logging

import (
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var logger *zap.Logger

// LogLevelEnvVar is the environment variable that controls logging verbosity.
// When unset or empty, logging is silent (no zap output).
// Valid values: "debug", "info", "warn", "error"
const LogLevelEnvVar = "COASTERMELT_LOG_LEVEL"

// maxDumpBytes caps hex dumps in log fields.
const maxDumpBytes = 256

// Initialize creates a new logger with the specified level.
// If level is empty, it checks COASTERMELT_LOG_LEVEL.
// If neither is set, logging is disabled (silent mode).
func Initialize(level string) error {
	if level == "" {
		level = os.Getenv(LogLevelEnvVar)
	}

	if level == "" {
		logger = zap.NewNop()
		return nil
	}

	zapLevel, err := ParseLevel(level)
	if err != nil {
		return err
	}

	config := zap.Config{
		Level:            zap.NewAtomicLevelAt(zapLevel),
		Development:      false,
		Encoding:         "console",
		EncoderConfig:    zap.NewDevelopmentEncoderConfig(),
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	}

	config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.EncoderConfig.EncodeCaller = zapcore.ShortCallerEncoder

	logger, err = config.Build()
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	return nil
}

// ParseLevel maps a level name to a zap level.
func ParseLevel(level string) (zapcore.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return zapcore.DebugLevel, nil
	case "info":
		return zapcore.InfoLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("unknown log level %q (valid: debug, info, warn, error)", level)
	}
}

// GetLogger returns the global logger instance
func GetLogger() *zap.Logger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return logger
}

// Info logs an info message
func Info(msg string, fields ...zap.Field) {
	GetLogger().Info(msg, fields...)
}

// Debug logs a debug message
func Debug(msg string, fields ...zap.Field) {
	GetLogger().Debug(msg, fields...)
}

// Warn logs a warning message
func Warn(msg string, fields ...zap.Field) {
	GetLogger().Warn(msg, fields...)
}

// Error logs an error message
func Error(msg string, fields ...zap.Field) {
	GetLogger().Error(msg, fields...)
}

// Address formats a target address as a zap field.
func Address(key string, address uint32) zap.Field {
	return zap.String(key, fmt.Sprintf("0x%08x", address))
}

// LogWords logs an image about to be loaded at address, one hex word per
// entry. Nothing is formatted unless debug logging is enabled.
func LogWords(l *zap.Logger, label string, address uint32, words []uint32) {
	if l == nil || !l.Core().Enabled(zapcore.DebugLevel) {
		return
	}

	n := len(words)
	if n > maxDumpBytes/4 {
		n = maxDumpBytes / 4
	}
	hexWords := make([]string, n)
	for i := range hexWords {
		hexWords[i] = fmt.Sprintf("%08x", words[i])
	}
	if n < len(words) {
		hexWords = append(hexWords, "...")
	}

	l.Debug(label,
		Address("address", address),
		zap.Int("words", len(words)),
		zap.String("hex", strings.Join(hexWords, " ")),
	)
}

// LogRawBytes logs raw bytes (useful for debugging images and wire traffic)
func LogRawBytes(l *zap.Logger, label string, data []byte) {
	if l == nil || !l.Core().Enabled(zapcore.DebugLevel) {
		return
	}
	l.Debug(label,
		zap.Int("length", len(data)),
		zap.String("hex", hexDump(data)),
	)
}

// LogConnection logs a bridge connection event
func LogConnection(l *zap.Logger, remoteAddr string, event string) {
	l.Info("Connection event",
		zap.String("remote_addr", remoteAddr),
		zap.String("event", event),
	)
}

// LogBridgeMessage logs one bridge request or response
func LogBridgeMessage(l *zap.Logger, remoteAddr string, direction string, payload []byte) {
	if !l.Core().Enabled(zapcore.DebugLevel) {
		return
	}
	l.Debug("Bridge message",
		zap.String("remote_addr", remoteAddr),
		zap.String("direction", direction),
		zap.Int("length", len(payload)),
		zap.String("content", string(payload)),
	)
}

func hexDump(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	if len(data) > maxDumpBytes {
		return hex.EncodeToString(data[:maxDumpBytes]) + "..."
	}
	return hex.EncodeToString(data)
}

// Sync flushes any buffered log entries
func Sync() {
	if logger != nil {
		_ = logger.Sync()
	}
}

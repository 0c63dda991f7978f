package logger

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Init builds the global logger. level is debug|info|warn|error, format is
// json|console, output is stderr, stdout or a file path.
func Init(level, format, output string) (*zap.Logger, error) {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(strings.ToLower(level))); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	var enc zapcore.Encoder
	switch strings.ToLower(format) {
	case "", "json":
		enc = zapcore.NewJSONEncoder(encCfg)
	case "console", "text":
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
	default:
		return nil, fmt.Errorf("invalid log format %q", format)
	}

	ws, err := sink(output)
	if err != nil {
		return nil, err
	}

	l := zap.New(zapcore.NewCore(enc, ws, lvl), zap.AddCaller())
	zap.ReplaceGlobals(l)
	return l, nil
}

func sink(output string) (zapcore.WriteSyncer, error) {
	switch output {
	case "", "stderr":
		return zapcore.Lock(os.Stderr), nil
	case "stdout":
		return zapcore.Lock(os.Stdout), nil
	}
	f, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return zapcore.AddSync(f), nil
}

// Debug logs a debug message
func Debug(msg string, args ...any) {
	zap.S().Debugw(msg, args...)
}

// Info logs an info message
func Info(msg string, args ...any) {
	zap.S().Infow(msg, args...)
}

// Warn logs a warning message
func Warn(msg string, args ...any) {
	zap.S().Warnw(msg, args...)
}

// Error logs an error message
func Error(msg string, args ...any) {
	zap.S().Errorw(msg, args...)
}

package logger

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// logFilePermissions restricts the log file to the running user.
const logFilePermissions = 0o600

// WithFileSink opens path for appending and returns an option that tees every
// entry into it without terminal colors. The returned function closes the file.
//
//nolint:ireturn,nolintlint // Returning zap.Option is intended for zap integration.
func WithFileSink(path string) (zap.Option, func() error, error) {
	file, err := os.OpenFile(filepath.Clean(path), os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermissions)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}

	fileCore := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderConfig(zapcore.CapitalLevelEncoder)),
		zapcore.AddSync(file),
		defaultLevel,
	)

	option := zap.WrapCore(func(core zapcore.Core) zapcore.Core {
		return zapcore.NewTee(core, fileCore)
	})

	return option, file.Close, nil
}

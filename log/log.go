// Package log builds the zap logger shared by every patchfinder component.
package log

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/xerrors"
)

type Config struct {
	// Level is the minimum level: debug, info, warn or error.
	Level string `mapstructure:"level"`
	// Disable discards every entry.
	Disable bool `mapstructure:"disable"`
	// JSON switches from the console encoder to JSON lines.
	JSON bool `mapstructure:"json"`
}

// New returns a sugared logger writing to stderr.
func New(cfg Config) (*zap.SugaredLogger, error) {
	if cfg.Disable {
		return Nop(), nil
	}

	level, err := zapcore.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		return nil, xerrors.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	encoderConfig := zap.NewDevelopmentEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoder := zapcore.NewConsoleEncoder(encoderConfig)
	if cfg.JSON {
		encoderConfig = zap.NewProductionEncoderConfig()
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	}

	core := zapcore.NewCore(encoder, zapcore.Lock(os.Stderr), level)
	return zap.New(core).Sugar(), nil
}

func Nop() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}

package observability

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// ZapConfig selects where the zap logger writes.
type ZapConfig struct {
	Level      string `json:"level,omitempty" yaml:"level,omitempty"` // debug, info, warn, error
	File       string `json:"file,omitempty" yaml:"file,omitempty"`   // rotated JSON log; empty disables
	Console    bool   `json:"console,omitempty" yaml:"console,omitempty"`
	MaxSizeMB  int    `json:"max_size_mb,omitempty" yaml:"max_size_mb,omitempty"`
	MaxBackups int    `json:"max_backups,omitempty" yaml:"max_backups,omitempty"`
	MaxAgeDays int    `json:"max_age_days,omitempty" yaml:"max_age_days,omitempty"`
}

// DefaultZapConfig logs info and above to stderr.
func DefaultZapConfig() ZapConfig {
	return ZapConfig{
		Level:      "info",
		Console:    true,
		MaxSizeMB:  10,
		MaxBackups: 5,
		MaxAgeDays: 30,
	}
}

// Merge applies non-zero values from source into c. Console is taken from
// source whenever source names a file, so a file-only logger can be requested.
func (c *ZapConfig) Merge(source *ZapConfig) {
	if source.Level != "" {
		c.Level = source.Level
	}
	if source.File != "" {
		c.File = source.File
		c.Console = source.Console
	} else if source.Console {
		c.Console = true
	}
	if source.MaxSizeMB > 0 {
		c.MaxSizeMB = source.MaxSizeMB
	}
	if source.MaxBackups > 0 {
		c.MaxBackups = source.MaxBackups
	}
	if source.MaxAgeDays > 0 {
		c.MaxAgeDays = source.MaxAgeDays
	}
}

// NewZapLogger builds a zap logger with an optional rotated JSON file core
// and an optional console core.
func NewZapLogger(cfg ZapConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	var cores []zapcore.Core

	if cfg.File != "" {
		encoderConfig := zap.NewProductionEncoderConfig()
		encoderConfig.TimeKey = "timestamp"
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder

		rotator := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   true,
		}
		cores = append(cores, zapcore.NewCore(
			zapcore.NewJSONEncoder(encoderConfig),
			zapcore.AddSync(rotator),
			level,
		))
	}

	if cfg.Console {
		cores = append(cores, zapcore.NewCore(
			zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()),
			zapcore.Lock(os.Stderr),
			level,
		))
	}

	if len(cores) == 0 {
		return zap.NewNop(), nil
	}
	return zap.New(zapcore.NewTee(cores...)), nil
}

// ZapObserver emits events to a zap.Logger. The event type becomes the log
// message and Data keys become fields.
type ZapObserver struct {
	logger *zap.Logger
}

// NewZapObserver creates a ZapObserver that emits to the given logger.
func NewZapObserver(logger *zap.Logger) *ZapObserver {
	return &ZapObserver{logger: logger}
}

func (o *ZapObserver) OnEvent(ctx context.Context, event Event) {
	ce := o.logger.Check(event.Level.ZapLevel(), string(event.Type))
	if ce == nil {
		return
	}

	fields := make([]zap.Field, 0, len(event.Data)+2)
	fields = append(fields, zap.String("source", event.Source), zap.Time("event_time", event.Timestamp))
	for k, v := range event.Data {
		fields = append(fields, zap.Any(k, v))
	}
	ce.Write(fields...)
}

// Sync flushes buffered log entries.
func (o *ZapObserver) Sync() error {
	return o.logger.Sync()
}

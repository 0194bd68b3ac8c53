package logger

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const serviceName = "bioscope"

// Options adjusts the environment defaults of NewLogger.
type Options struct {
	// Level is one of debug, info, warn, error. Empty keeps the environment default.
	Level string
	// Version is attached to every entry when set.
	Version string
	// Sampling keeps zap's production sampling in prod. Upload bursts log one
	// line per skipped page, so it is off unless asked for.
	Sampling bool
}

// NewLogger builds the process logger for env.
//
//	prod                JSON to stderr, ISO8601 "ts"
//	local, dev, docker  colored console
//	test                no-op
func NewLogger(env string, opts Options) (*zap.Logger, error) {
	cfg, err := configFor(env, opts)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return zap.NewNop(), nil
	}

	if opts.Level != "" {
		level, err := zapcore.ParseLevel(opts.Level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", opts.Level, err)
		}
		cfg.Level = zap.NewAtomicLevelAt(level)
	}

	l, err := cfg.Build(zap.AddStacktrace(zapcore.ErrorLevel))
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}

	fields := []zap.Field{zap.String("service", serviceName), zap.String("env", env)}
	if opts.Version != "" {
		fields = append(fields, zap.String("version", opts.Version))
	}
	return l.With(fields...), nil
}

// configFor returns nil for the test environment.
func configFor(env string, opts Options) (*zap.Config, error) {
	switch env {
	case "prod":
		cfg := zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "ts"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		cfg.EncoderConfig.EncodeDuration = zapcore.MillisDurationEncoder
		if !opts.Sampling {
			cfg.Sampling = nil
		}
		return &cfg, nil
	case "local", "dev", "docker":
		cfg := zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		cfg.EncoderConfig.EncodeDuration = zapcore.StringDurationEncoder
		return &cfg, nil
	case "test":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown environment %q for logger", env)
	}
}

// Package logging provides the structured logger shared by every component.
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the service logger.  Components log with the sugared key/value
// methods (Infow, Warnw, Errorw) and scope it with WithField.
type Logger struct {
	*zap.SugaredLogger
}

// Config selects level, sink and encoding.  DevMode switches to zap's
// development preset with colored levels.
type Config struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Encoding   string `mapstructure:"encoding"`
	DevMode    bool   `mapstructure:"dev_mode"`
}

// New builds a logger from cfg.  Empty fields keep zap's preset values.
func New(cfg Config) (*Logger, error) {
	level := zapcore.InfoLevel
	if cfg.Level != "" {
		parsed, err := zapcore.ParseLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
		}
		level = parsed
	}

	zc := zap.NewProductionConfig()
	zc.EncoderConfig.TimeKey = "timestamp"
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if cfg.DevMode {
		zc = zap.NewDevelopmentConfig()
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	if cfg.OutputPath != "" {
		zc.OutputPaths = []string{cfg.OutputPath}
	}
	if cfg.Encoding != "" {
		zc.Encoding = cfg.Encoding
	}

	zl, err := zc.Build(zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return &Logger{zl.Sugar()}, nil
}

// NewNop returns a logger that discards everything.
func NewNop() *Logger {
	return &Logger{zap.NewNop().Sugar()}
}

// OrNop lets components accept a nil logger.
func OrNop(l *Logger) *Logger {
	if l == nil {
		return NewNop()
	}
	return l
}

// WithField returns a child logger that adds key=value to every entry.
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return &Logger{l.With(key, value)}
}

// WithError returns a child logger carrying err under "error".
func (l *Logger) WithError(err error) *Logger {
	return l.WithField("error", err)
}

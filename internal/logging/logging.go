// Package logging builds the zap loggers used across nasti.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options configures logger construction
type Options struct {
	// Verbosity is the -v count. 0 warn, 1 info, 2+ debug.
	Verbosity int
	// Level overrides Verbosity when set (debug, info, warn, error).
	Level string
	// Output defaults to stderr
	Output io.Writer
	// NoColor disables level coloring
	NoColor bool
}

// New creates a development-style console logger
func New(opts Options) (*zap.Logger, error) {
	level, err := resolveLevel(opts)
	if err != nil {
		return nil, err
	}

	out := opts.Output
	if out == nil {
		out = os.Stderr
	}

	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.TimeKey = ""
	if opts.NoColor {
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	} else {
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encCfg),
		zapcore.Lock(zapcore.AddSync(out)),
		level,
	)

	var zopts []zap.Option
	if level.Level() <= zapcore.DebugLevel {
		zopts = append(zopts, zap.AddCaller())
	}

	return zap.New(core, zopts...), nil
}

// Nop returns a logger that discards everything
func Nop() *zap.Logger {
	return zap.NewNop()
}

// Component returns a child logger tagged with a component name
func Component(logger *zap.Logger, name string) *zap.Logger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return logger.With(zap.String("component", name))
}

func resolveLevel(opts Options) (zap.AtomicLevel, error) {
	if opts.Level != "" {
		lvl, err := zapcore.ParseLevel(strings.ToLower(opts.Level))
		if err != nil {
			return zap.AtomicLevel{}, fmt.Errorf("invalid log level %q: %w", opts.Level, err)
		}
		// An explicit -v still raises verbosity above the configured level
		if v := verbosityLevel(opts.Verbosity); opts.Verbosity > 0 && v < lvl {
			lvl = v
		}
		return zap.NewAtomicLevelAt(lvl), nil
	}
	return zap.NewAtomicLevelAt(verbosityLevel(opts.Verbosity)), nil
}

func verbosityLevel(verbosity int) zapcore.Level {
	switch {
	case verbosity <= 0:
		return zapcore.WarnLevel
	case verbosity == 1:
		return zapcore.InfoLevel
	default:
		return zapcore.DebugLevel
	}
}

package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mattn/go-isatty"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"mixtape/internal/config"
)

// Options describes logger construction parameters.
type Options struct {
	Level       string
	Format      string
	OutputPaths []string
	// Rotation applies to every file path in OutputPaths.
	Rotation    Rotation
	Development bool
}

// Rotation controls lumberjack file rotation.
type Rotation struct {
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// New constructs a zap logger using the provided options.
func New(opts Options) (*zap.Logger, error) {
	level := parseLevel(opts.Level)

	format := strings.ToLower(strings.TrimSpace(opts.Format))
	if format == "" {
		format = "console"
	}

	paths := opts.OutputPaths
	if len(paths) == 0 {
		paths = []string{"stdout"}
	}

	var cores []zapcore.Core
	seen := map[string]struct{}{}
	for _, path := range paths {
		trimmed := strings.TrimSpace(path)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}

		sink, colored, err := openSink(trimmed, opts.Rotation)
		if err != nil {
			return nil, err
		}
		encoder, err := newEncoder(format, colored)
		if err != nil {
			return nil, err
		}
		cores = append(cores, zapcore.NewCore(encoder, sink, level))
	}

	zapOpts := []zap.Option{zap.ErrorOutput(zapcore.Lock(os.Stderr))}
	if opts.Development || level.Level() <= zapcore.DebugLevel {
		zapOpts = append(zapOpts, zap.AddCaller())
	}
	return zap.New(zapcore.NewTee(cores...), zapOpts...), nil
}

// NewFromConfig creates a logger using application config defaults. Console
// output always goes to stdout; when a log directory is configured a rotated
// copy is written to mixtape.log inside it.
func NewFromConfig(cfg *config.Config) (*zap.Logger, error) {
	if cfg == nil {
		return New(Options{Level: "info", Format: "console"})
	}

	outputPaths := []string{"stdout"}
	if cfg.Paths.LogDir != "" {
		if err := os.MkdirAll(cfg.Paths.LogDir, 0o755); err != nil {
			return nil, fmt.Errorf("ensure log directory: %w", err)
		}
		outputPaths = append(outputPaths, filepath.Join(cfg.Paths.LogDir, "mixtape.log"))
	}

	return New(Options{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		OutputPaths: outputPaths,
		Rotation: Rotation{
			MaxSizeMB:  cfg.Logging.MaxSizeMB,
			MaxBackups: cfg.Logging.MaxBackups,
			MaxAgeDays: cfg.Logging.MaxAgeDays,
		},
	})
}

func parseLevel(level string) zap.AtomicLevel {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zap.NewAtomicLevelAt(zapcore.DebugLevel)
	case "warn", "warning":
		return zap.NewAtomicLevelAt(zapcore.WarnLevel)
	case "error", "dpanic", "panic", "fatal":
		return zap.NewAtomicLevelAt(zapcore.ErrorLevel)
	default:
		return zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}
}

func newEncoder(format string, colored bool) (zapcore.Encoder, error) {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.EncodeDuration = zapcore.StringDurationEncoder

	switch format {
	case "json":
		return zapcore.NewJSONEncoder(encCfg), nil
	case "console":
		encCfg.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		if colored {
			encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		}
		encCfg.ConsoleSeparator = " "
		return zapcore.NewConsoleEncoder(encCfg), nil
	default:
		return nil, fmt.Errorf("log format: unsupported value %q", format)
	}
}

func openSink(path string, rotation Rotation) (zapcore.WriteSyncer, bool, error) {
	switch path {
	case "stdout":
		return zapcore.Lock(os.Stdout), isTerminal(os.Stdout), nil
	case "stderr":
		return zapcore.Lock(os.Stderr), isTerminal(os.Stderr), nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, false, fmt.Errorf("ensure log directory: %w", err)
	}
	maxSize := rotation.MaxSizeMB
	if maxSize <= 0 {
		maxSize = 50
	}
	writer := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxSize,
		MaxBackups: rotation.MaxBackups,
		MaxAge:     rotation.MaxAgeDays,
		Compress:   true,
	}
	return zapcore.AddSync(writer), false, nil
}

func isTerminal(f *os.File) bool {
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

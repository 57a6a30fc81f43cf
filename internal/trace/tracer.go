package trace

import (
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Tracer receives trace events. Implementations must be goroutine-safe.
type Tracer interface {
	Emit(ev *Event)
	Flush() error
	Close() error
	Level() Level
	Enabled() bool
}

// Config configures New.
type Config struct {
	Level  Level
	Format Format
	// Output overrides Path when set.
	Output io.Writer
	// Path is a file path, or "" / "-" for stderr.
	Path string
	// MaxSizeMB and MaxBackups bound rotated trace files; zero values use
	// 64 MB and 3 backups.
	MaxSizeMB  int
	MaxBackups int
	// RingSize, when positive, also keeps the most recent events in memory.
	RingSize int
}

// New returns a tracer for cfg, and the in-memory ring when cfg.RingSize is
// positive.
func New(cfg Config) (Tracer, *RingTracer, error) {
	if cfg.Level == LevelOff {
		return Nop, nil, nil
	}

	format := cfg.Format
	if format == FormatAuto {
		format = FormatText
		if strings.HasSuffix(cfg.Path, ".ndjson") || strings.HasSuffix(cfg.Path, ".jsonl") {
			format = FormatNDJSON
		}
	}

	w, err := openOutput(cfg)
	if err != nil {
		return nil, nil, err
	}
	stream := NewStreamTracer(w, cfg.Level, format)
	if cfg.RingSize <= 0 {
		return stream, nil, nil
	}
	ring := NewRingTracer(cfg.RingSize, cfg.Level)
	return NewMultiTracer(cfg.Level, stream, ring), ring, nil
}

func openOutput(cfg Config) (io.Writer, error) {
	if cfg.Output != nil {
		return cfg.Output, nil
	}
	if cfg.Path == "" || cfg.Path == "-" {
		return nopCloser{os.Stderr}, nil
	}
	f, err := os.OpenFile(cfg.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open trace output: %w", err)
	}
	_ = f.Close()

	maxSize := cfg.MaxSizeMB
	if maxSize <= 0 {
		maxSize = 64
	}
	backups := cfg.MaxBackups
	if backups <= 0 {
		backups = 3
	}
	return &lumberjack.Logger{
		Filename:   cfg.Path,
		MaxSize:    maxSize,
		MaxBackups: backups,
	}, nil
}

// nopCloser keeps Close from closing stderr.
type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

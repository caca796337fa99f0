// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package logging provides the structured logger used across every
// librarian component. It wraps log/slog rather than replacing it: callers
// get a *Logger, never a package-global, so the same component can run
// twice in one process (e.g. two bootstrap runs) without log interleaving
// surprises.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Level mirrors slog's severity ordering but keeps librarian's public API
// independent of the standard library type.
type Level int

const (
	LevelDebug Level = iota - 1
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) toSlog() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Exporter receives a copy of every emitted record. Implementations must
// not block the logging call for long; buffer internally if needed.
type Exporter interface {
	Export(service string, level Level, msg string, attrs map[string]any)
}

// Config configures a Logger. The zero value logs Info+ to stderr as text.
type Config struct {
	Level    Level
	JSON     bool
	LogDir   string // if set, also write JSON lines here, one file per day
	Service  string
	Exporter Exporter
}

// Logger is the structured logger every librarian component accepts
// through its constructor. Safe for concurrent use.
type Logger struct {
	mu      sync.Mutex
	base    *slog.Logger
	file    *os.File
	service string
	exp     Exporter
	level   Level
}

// Default returns a Logger writing Info+ to stderr in text form.
func Default() *Logger {
	return New(Config{})
}

// New builds a Logger from Config. If LogDir is set and cannot be created,
// New falls back to stderr-only and returns no error — logging must never
// be the reason bootstrap or query fails.
func New(cfg Config) *Logger {
	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: cfg.Level.toSlog()}

	var writers []io.Writer
	writers = append(writers, os.Stderr)

	l := &Logger{service: cfg.Service, exp: cfg.Exporter, level: cfg.Level}

	if cfg.LogDir != "" {
		if dir, err := expandHome(cfg.LogDir); err == nil {
			if err := os.MkdirAll(dir, 0o755); err == nil {
				name := fmt.Sprintf("%s_%s.log", orDefault(cfg.Service, "librarian"), time.Now().Format("2006-01-02"))
				if f, err := os.OpenFile(filepath.Join(dir, name), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644); err == nil {
					l.file = f
					writers = append(writers, f)
				}
			}
		}
	}

	mw := io.MultiWriter(writers...)
	if cfg.JSON || cfg.LogDir != "" {
		handler = slog.NewJSONHandler(mw, opts)
	} else {
		handler = slog.NewTextHandler(mw, opts)
	}

	l.base = slog.New(handler).With("service", orDefault(cfg.Service, "librarian"))
	return l
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func expandHome(dir string) (string, error) {
	if len(dir) >= 2 && dir[:2] == "~/" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, dir[2:]), nil
	}
	return dir, nil
}

func (l *Logger) log(ctx context.Context, level Level, msg string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.base.Log(ctx, level.toSlog(), msg, args...)
	if l.exp != nil {
		attrs := make(map[string]any, len(args)/2)
		for i := 0; i+1 < len(args); i += 2 {
			if k, ok := args[i].(string); ok {
				attrs[k] = args[i+1]
			}
		}
		l.exp.Export(l.service, level, msg, attrs)
	}
}

func (l *Logger) Debug(msg string, args ...any) { l.log(context.Background(), LevelDebug, msg, args...) }
func (l *Logger) Info(msg string, args ...any)  { l.log(context.Background(), LevelInfo, msg, args...) }
func (l *Logger) Warn(msg string, args ...any)  { l.log(context.Background(), LevelWarn, msg, args...) }
func (l *Logger) Error(msg string, args ...any) { l.log(context.Background(), LevelError, msg, args...) }

// With returns a derived Logger that always includes the given key/value
// pairs, the way slog.Logger.With works, without losing the Exporter/file
// wiring.
func (l *Logger) With(args ...any) *Logger {
	l.mu.Lock()
	defer l.mu.Unlock()
	return &Logger{
		base:    l.base.With(args...),
		file:    l.file,
		service: l.service,
		exp:     l.exp,
		level:   l.level,
	}
}

// Close flushes and closes the file destination, if one was configured.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

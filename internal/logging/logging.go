// Package logging configures the process-wide slog handler and hands out
// component loggers that follow later reconfiguration.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

var level = new(slog.LevelVar)

// Init installs the default handler. format is "json" or "text"; level is any
// name slog understands ("debug", "info", "warn", "error").
func Init(lvl, format string) {
	InitWriter(os.Stderr, lvl, format)
}

// InitWriter is Init with an explicit destination.
func InitWriter(w io.Writer, lvl, format string) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(lvl))); err != nil {
		l = slog.LevelInfo
	}
	level.Set(l)

	opts := &slog.HandlerOptions{Level: level}
	var h slog.Handler
	if strings.EqualFold(format, "json") {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	slog.SetDefault(slog.New(h))
}

// SetLevel changes the minimum level at runtime.
func SetLevel(l slog.Level) { level.Set(l) }

// For returns a logger tagged with component. Loggers are usually created in
// package variables, before Init runs, so the returned logger resolves the
// default handler on every record instead of capturing it.
func For(component string) *slog.Logger {
	return slog.New(deferred{attrs: []slog.Attr{slog.String("component", component)}})
}

type deferred struct {
	attrs  []slog.Attr
	groups []string
}

func (d deferred) target() slog.Handler {
	h := slog.Default().Handler()
	if len(d.attrs) > 0 {
		h = h.WithAttrs(d.attrs)
	}
	for _, g := range d.groups {
		h = h.WithGroup(g)
	}
	return h
}

func (d deferred) Enabled(ctx context.Context, l slog.Level) bool {
	return slog.Default().Handler().Enabled(ctx, l)
}

func (d deferred) Handle(ctx context.Context, r slog.Record) error {
	return d.target().Handle(ctx, r)
}

func (d deferred) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(d.groups) > 0 {
		return d.target().WithAttrs(attrs)
	}
	merged := make([]slog.Attr, 0, len(d.attrs)+len(attrs))
	merged = append(merged, d.attrs...)
	merged = append(merged, attrs...)
	return deferred{attrs: merged}
}

func (d deferred) WithGroup(name string) slog.Handler {
	groups := make([]string, 0, len(d.groups)+1)
	groups = append(groups, d.groups...)
	return deferred{attrs: d.attrs, groups: append(groups, name)}
}

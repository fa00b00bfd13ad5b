package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/modfin/cardx"
)

type Skipper func(name string, params cardx.Params) bool

type LoggerSettings struct {
	Skip       Skipper
	Level      slog.Level
	PreFields  []func(name string, params cardx.Params) (string, any)
	PostFields []func(size int) (string, any)
}

type Option func(*LoggerSettings)

func WithSkipper(s Skipper) Option {
	return func(settings *LoggerSettings) {
		settings.Skip = s
	}
}

func WithLevel(l slog.Level) Option {
	return func(settings *LoggerSettings) {
		settings.Level = l
	}
}

// Logger logs one record when a property starts and one when its value is
// complete, with the decoded size and how long the value took. A failing
// downstream handler is logged at error level.
func Logger(logger *slog.Logger, opts ...Option) cardx.Middleware {
	var settings = &LoggerSettings{Level: slog.LevelDebug}

	settings.PreFields = []func(string, cardx.Params) (string, any){
		func(name string, _ cardx.Params) (string, any) { return "property", name },
		func(_ string, params cardx.Params) (string, any) { return "params", params.String() },
	}
	settings.PostFields = []func(int) (string, any){
		func(size int) (string, any) { return "size", size },
	}

	for _, o := range opts {
		if o == nil {
			continue
		}
		o(settings)
	}

	return func(next cardx.Handler) cardx.Handler {
		if logger == nil {
			return next
		}
		return &propertyLogger{next: next, log: logger, settings: settings}
	}
}

type propertyLogger struct {
	next     cardx.Handler
	log      *slog.Logger
	settings *LoggerSettings

	// state of the property in flight
	active bool
	name   string
	start  time.Time
	size   int
}

func (l *propertyLogger) Property(ctx context.Context, name string, params cardx.Params) error {
	l.active = l.settings.Skip == nil || !l.settings.Skip(name, params)
	if !l.active {
		return l.next.Property(ctx, name, params)
	}
	l.name = name
	l.start = time.Now()
	l.size = 0

	var args []any
	for _, f := range l.settings.PreFields {
		k, v := f(name, params)
		args = append(args, k, v)
	}
	l.log.Log(ctx, l.settings.Level, "Property", args...)

	err := l.next.Property(ctx, name, params)
	if err != nil {
		l.log.Log(ctx, slog.LevelError, "Property failed", "property", name, "err", err)
	}
	return err
}

func (l *propertyLogger) Data(ctx context.Context, data []byte) error {
	err := l.next.Data(ctx, data)
	if !l.active {
		return err
	}
	l.size += len(data)
	if len(data) > 0 && err == nil {
		return nil
	}

	args := []any{"property", l.name, "duration", time.Since(l.start)}
	for _, f := range l.settings.PostFields {
		k, v := f(l.size)
		args = append(args, k, v)
	}
	lvl := l.settings.Level
	if err != nil {
		args = append(args, "err", err)
		lvl = slog.LevelError
	}
	l.active = len(data) > 0
	l.log.Log(ctx, lvl, "Property value", args...)
	return err
}

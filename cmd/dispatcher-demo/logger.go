package main

import (
	"context"
	"io"
	"strings"

	glog "github.com/goliatone/go-logger/glog"
	"github.com/rs/zerolog"
)

// zerologLogger is the glog sink used by the demo binary.
type zerologLogger struct {
	logger zerolog.Logger
}

func newZerologLogger(out io.Writer, level string) *zerologLogger {
	parsed, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || level == "" {
		parsed = zerolog.InfoLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: out}).
		Level(parsed).
		With().
		Timestamp().
		Logger()
	return &zerologLogger{logger: logger}
}

func (l *zerologLogger) Trace(msg string, args ...any) {
	l.logger.Trace().Fields(args).Msg(msg)
}

func (l *zerologLogger) Debug(msg string, args ...any) {
	l.logger.Debug().Fields(args).Msg(msg)
}

func (l *zerologLogger) Info(msg string, args ...any) {
	l.logger.Info().Fields(args).Msg(msg)
}

func (l *zerologLogger) Warn(msg string, args ...any) {
	l.logger.Warn().Fields(args).Msg(msg)
}

func (l *zerologLogger) Error(msg string, args ...any) {
	l.logger.Error().Fields(args).Msg(msg)
}

func (l *zerologLogger) Fatal(msg string, args ...any) {
	l.logger.Fatal().Fields(args).Msg(msg)
}

func (l *zerologLogger) WithContext(ctx context.Context) glog.Logger {
	return &zerologLogger{logger: l.logger.With().Ctx(ctx).Logger()}
}

func (l *zerologLogger) WithFields(fields map[string]any) glog.Logger {
	return &zerologLogger{logger: l.logger.With().Fields(fields).Logger()}
}

var (
	_ glog.Logger       = (*zerologLogger)(nil)
	_ glog.FieldsLogger = (*zerologLogger)(nil)
)

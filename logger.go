package sonargate

import (
	"io"

	"github.com/rs/zerolog"
)

// Logger is the minimal structured logging interface consumed by the client.
// Arguments after the message are alternating key/value pairs.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

type nopLogger struct{}

// NewNopLogger returns a Logger that discards everything. It is the default
// so the library stays silent unless a logger is supplied.
func NewNopLogger() Logger { return nopLogger{} }

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

type zerologLogger struct {
	l zerolog.Logger
}

// NewZerologLogger adapts a zerolog.Logger to the Logger interface.
func NewZerologLogger(l zerolog.Logger) Logger {
	return &zerologLogger{l: l}
}

// NewDefaultLogger returns a zerolog-backed Logger writing to w at the given
// level, suitable for quick setup in commands and examples.
func NewDefaultLogger(w io.Writer, level zerolog.Level) Logger {
	return &zerologLogger{l: zerolog.New(w).Level(level).With().Timestamp().Logger()}
}

func (z *zerologLogger) Debug(msg string, kv ...any) { emit(z.l.Debug(), msg, kv) }
func (z *zerologLogger) Info(msg string, kv ...any)  { emit(z.l.Info(), msg, kv) }
func (z *zerologLogger) Warn(msg string, kv ...any)  { emit(z.l.Warn(), msg, kv) }
func (z *zerologLogger) Error(msg string, kv ...any) { emit(z.l.Error(), msg, kv) }

func emit(ev *zerolog.Event, msg string, kv []any) {
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		ev = ev.Interface(key, kv[i+1])
	}
	ev.Msg(msg)
}

// redactToken masks an auth token for log output, keeping the last four
// characters to aid correlation across environments.
func redactToken(token string) string {
	if len(token) <= 4 {
		return "****"
	}
	return "****" + token[len(token)-4:]
}

package observability

import "github.com/rs/zerolog"

// zerologLogger adapts a zerolog.Logger to the Logger interface so binaries
// can emit structured JSON while library packages stay framework-agnostic.
type zerologLogger struct {
	log zerolog.Logger
}

// NewZerolog wraps a zerolog.Logger as a Logger.
func NewZerolog(log zerolog.Logger) Logger {
	return zerologLogger{log: log}
}

func (z zerologLogger) Debug(msg string, fields ...Field) { emit(z.log.Debug(), msg, fields) }
func (z zerologLogger) Info(msg string, fields ...Field)  { emit(z.log.Info(), msg, fields) }
func (z zerologLogger) Warn(msg string, fields ...Field)  { emit(z.log.Warn(), msg, fields) }
func (z zerologLogger) Error(msg string, fields ...Field) { emit(z.log.Error(), msg, fields) }

func (z zerologLogger) With(fields ...Field) Logger {
	ctx := z.log.With()
	for _, f := range fields {
		ctx = ctx.Interface(f.Key(), f.Value())
	}
	return zerologLogger{log: ctx.Logger()}
}

func emit(ev *zerolog.Event, msg string, fields []Field) {
	for _, f := range fields {
		switch v := f.Value().(type) {
		case string:
			ev = ev.Str(f.Key(), v)
		case int:
			ev = ev.Int(f.Key(), v)
		case int64:
			ev = ev.Int64(f.Key(), v)
		case float64:
			ev = ev.Float64(f.Key(), v)
		case error:
			ev = ev.AnErr(f.Key(), v)
		default:
			ev = ev.Interface(f.Key(), v)
		}
	}
	ev.Msg(msg)
}

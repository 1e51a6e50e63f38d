package ch

import (
	"context"

	"tower/internal/platform/logger"

	"github.com/rs/zerolog"
)

// QueryEvent describes one clickhouse round trip for tracing.
type QueryEvent struct {
	SQL       string
	Args      any
	ElapsedUS int64
	Err       error
}

// QueryTracer receives a QueryEvent after every Insert/Query call.
type QueryTracer interface {
	OnQuery(ctx context.Context, ev QueryEvent)
}

// Tracer returns a logger-backed QueryTracer, same shape as pg.Tracer.
func Tracer(root logger.Logger) QueryTracer {
	ll := root.Level(zerolog.DebugLevel).With().Str("component", "ch").Logger()
	return &zlTracer{log: ll}
}

type zlTracer struct{ log logger.Logger }

func (z *zlTracer) OnQuery(_ context.Context, ev QueryEvent) {
	evt := z.log.Info()
	if ev.Err != nil {
		evt = z.log.Warn()
	}
	evt.Float64("elapsed_ms", float64(ev.ElapsedUS)/1000.0).
		Str("sql", ev.SQL).
		Interface("args", ev.Args).
		Err(ev.Err).
		Msg("ch query")
}

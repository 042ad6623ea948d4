package audit

import (
	"context"
	"log/slog"
	"sync/atomic"

	"deedbook/pkg/platform/circuit"
)

// probeEvery is how many skipped events pass between delivery probes while
// the breaker is open.
const probeEvery = 10

// BreakerSink wraps a Sink with a circuit breaker so a failing external
// destination cannot slow audit delivery for every event. While open, most
// events are dropped on the floor (audit fan-out is best-effort) and every
// probeEvery-th event is attempted to detect recovery.
type BreakerSink struct {
	inner   Sink
	breaker *circuit.Breaker
	logger  *slog.Logger
	skipped atomic.Uint64
}

// NewBreakerSink guards inner with the given breaker.
func NewBreakerSink(inner Sink, breaker *circuit.Breaker, logger *slog.Logger) *BreakerSink {
	return &BreakerSink{inner: inner, breaker: breaker, logger: logger}
}

func (s *BreakerSink) Emit(ctx context.Context, event Event) error {
	if s.breaker.IsOpen() {
		if s.skipped.Add(1)%probeEvery != 0 {
			return nil
		}
	}

	if err := s.inner.Emit(ctx, event); err != nil {
		_, change := s.breaker.RecordFailure()
		if change.Opened && s.logger != nil {
			s.logger.Warn("audit sink circuit opened",
				"sink", s.breaker.Name(),
				"error", err,
			)
		}
		return err
	}

	_, change := s.breaker.RecordSuccess()
	if change.Closed {
		s.skipped.Store(0)
		if s.logger != nil {
			s.logger.Info("audit sink circuit closed", "sink", s.breaker.Name())
		}
	}
	return nil
}

func (s *BreakerSink) Close() error {
	return s.inner.Close()
}

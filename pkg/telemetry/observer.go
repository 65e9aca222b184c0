package telemetry

import (
	"context"
	"log"

	"github.com/lborres/gatekeep/core"
)

var (
	_ core.Observer = (*LogObserver)(nil)
	_ core.Observer = Multi(nil)
	_ core.Observer = Nop{}
)

// LogObserver writes each event as one log line. Successful rate-limit
// decisions are skipped to keep request-rate noise out of the log.
type LogObserver struct {
	logger *log.Logger
}

func NewLogObserver(logger *log.Logger) *LogObserver {
	if logger == nil {
		logger = log.Default()
	}
	return &LogObserver{logger: logger}
}

func (o *LogObserver) Observe(_ context.Context, e core.Event) {
	if e.Type == core.EventRateLimit && e.Outcome == core.OutcomeOK {
		return
	}

	level := "INFO"
	switch e.Outcome {
	case core.OutcomeError:
		level = "ERROR"
	case core.OutcomeRejected:
		level = "WARN"
	}
	if e.Type == core.EventLimiterFailOpen || e.Type == core.EventStoreFailure {
		level = "ERROR"
	}

	msg := "[" + level + "] event=" + string(e.Type) + " outcome=" + e.Outcome
	if e.Route != "" {
		msg += " route=" + e.Route
	}
	if e.Subject != "" {
		msg += " subject=" + e.Subject
	}
	if e.Op != "" {
		msg += " op=" + e.Op
	}
	if e.Err != nil {
		msg += " err=" + e.Err.Error()
	}
	o.logger.Print(msg)
}

// Multi fans an event out to every observer in order.
type Multi []core.Observer

func (m Multi) Observe(ctx context.Context, e core.Event) {
	for _, o := range m {
		if o != nil {
			o.Observe(ctx, e)
		}
	}
}

// Nop discards events.
type Nop struct{}

func (Nop) Observe(context.Context, core.Event) {}

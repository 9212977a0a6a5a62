package main

import (
	"log/slog"
	"math/big"

	"creditnet/core/events"
	"creditnet/core/types"
	"creditnet/observability"
)

// eventSink delivers engine events to the daemon's log and metrics. The
// engines stay transport-agnostic; everything observable hangs off this sink.
type eventSink struct {
	log     *slog.Logger
	metrics *observability.PnLMetrics
}

func newEventSink(log *slog.Logger, metrics *observability.PnLMetrics) *eventSink {
	return &eventSink{log: log, metrics: metrics}
}

// Emit implements events.Emitter.
func (s *eventSink) Emit(evt events.Event) {
	if s == nil || evt == nil {
		return
	}
	s.logEvent(evt)

	switch ev := evt.(type) {
	case events.LossApplied:
		s.metrics.RecordLoss(ev.Gauge, ev.Amount)
		s.metrics.SetMultiplier(ev.Multiplier)
	case events.ProfitDistributed:
		s.recordRouted("reserve", ev.Reserve)
		s.recordRouted("rebase", ev.Rebase)
		s.recordRouted("gauges", ev.Gauges)
		s.recordRouted("other", ev.Other)
	case events.RewardsClaimed:
		s.metrics.RecordClaim()
	}
}

func (s *eventSink) recordRouted(destination string, amount *big.Int) {
	if amount == nil || amount.Sign() <= 0 {
		return
	}
	s.metrics.RecordProfit(destination, amount)
}

func (s *eventSink) logEvent(evt events.Event) {
	if s.log == nil {
		return
	}
	converter, ok := evt.(interface{ Event() *types.Event })
	if !ok {
		s.log.Info("event", "type", evt.EventType())
		return
	}
	record := converter.Event()
	args := make([]any, 0, 2+2*len(record.Attributes))
	args = append(args, "type", record.Type)
	for key, value := range record.Attributes {
		args = append(args, key, value)
	}
	s.log.Info("event", args...)
}

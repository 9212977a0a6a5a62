package main

import (
	"bytes"
	"log/slog"
	"math/big"
	"strings"
	"testing"

	"creditnet/core/events"
	"creditnet/crypto"
)

func testAddress(suffix byte) crypto.Address {
	raw := make([]byte, 20)
	raw[19] = suffix
	return crypto.NewAddress(crypto.CreditPrefix, raw)
}

func TestEventSinkLogsStructuredEvents(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	sink := newEventSink(logger, nil)

	sink.Emit(events.LossApplied{
		Gauge:      "market-a",
		Amount:     big.NewInt(30),
		Drained:    big.NewInt(10),
		Multiplier: big.NewInt(700_000_000_000_000_000),
	})
	sink.Emit(events.ProfitDistributed{
		Gauge:   "market-a",
		Amount:  big.NewInt(101),
		Reserve: big.NewInt(25),
		Rebase:  big.NewInt(26),
		Gauges:  big.NewInt(25),
		Other:   big.NewInt(25),
	})
	sink.Emit(events.RewardsClaimed{
		Voter:  testAddress(0x01),
		Amount: big.NewInt(30),
		Gauges: 3,
	})

	out := buf.String()
	for _, want := range []string{
		`"type":"pnl.loss"`,
		`"gauge":"market-a"`,
		`"multiplier":"700000000000000000"`,
		`"type":"pnl.profit"`,
		`"rebase":"26"`,
		`"type":"gauge.rewardsClaimed"`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("log output missing %s:\n%s", want, out)
		}
	}
}

func TestEventSinkTolerantOfNilCollaborators(t *testing.T) {
	sink := newEventSink(nil, nil)
	sink.Emit(events.GaugeWeightChanged{
		Voter:       testAddress(0x02),
		Gauge:       "market-a",
		Delta:       big.NewInt(5),
		Increase:    true,
		GaugeWeight: big.NewInt(5),
		TotalWeight: big.NewInt(5),
	})
	sink.Emit(nil)
}

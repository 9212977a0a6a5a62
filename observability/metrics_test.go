package observability

import (
	"math/big"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestProfitRoutedByDestination(t *testing.T) {
	m := PnL()
	m.RecordProfit("Rebase ", big.NewInt(26))
	m.RecordProfit("rebase", big.NewInt(4))
	m.RecordProfit("other", big.NewInt(25))

	if got := testutil.ToFloat64(m.profit.WithLabelValues("rebase")); got != 30 {
		t.Fatalf("expected rebase counter 30, got %v", got)
	}
	if got := testutil.ToFloat64(m.profit.WithLabelValues("other")); got != 25 {
		t.Fatalf("expected other counter 25, got %v", got)
	}
}

func TestLossCounterAndGauges(t *testing.T) {
	m := PnL()
	m.RecordLoss("market-a", big.NewInt(30))
	m.SetMultiplier(big.NewInt(700_000_000_000_000_000))
	m.SetSurplus(big.NewInt(80))

	if got := testutil.ToFloat64(m.losses.WithLabelValues("market-a")); got != 30 {
		t.Fatalf("expected loss counter 30, got %v", got)
	}
	if got := testutil.ToFloat64(m.multiplier); got != 700_000_000_000_000_000 {
		t.Fatalf("expected multiplier gauge, got %v", got)
	}
	if got := testutil.ToFloat64(m.surplus); got != 80 {
		t.Fatalf("expected surplus gauge 80, got %v", got)
	}
}

func TestNilReceiverSafe(t *testing.T) {
	var m *PnLMetrics
	m.RecordLoss("market-a", big.NewInt(1))
	m.RecordProfit("reserve", big.NewInt(1))
	m.RecordClaim()
	m.SetMultiplier(nil)
	m.SetSurplus(nil)
}

package observability

import (
	"math"
	"math/big"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// PnLMetrics tracks profit-and-loss engine activity for the daemon.
type PnLMetrics struct {
	losses     *prometheus.CounterVec
	profit     *prometheus.CounterVec
	claims     prometheus.Counter
	multiplier prometheus.Gauge
	surplus    prometheus.Gauge
}

var (
	pnlMetricsOnce sync.Once
	pnlRegistry    *PnLMetrics
)

// PnL returns the lazily-initialised metrics registry for the P&L surface.
func PnL() *PnLMetrics {
	pnlMetricsOnce.Do(func() {
		pnlRegistry = &PnLMetrics{
			losses: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "creditnet",
				Subsystem: "pnl",
				Name:      "losses_total",
				Help:      "Loss amounts absorbed, segmented by gauge.",
			}, []string{"gauge"}),
			profit: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "creditnet",
				Subsystem: "pnl",
				Name:      "profit_routed_total",
				Help:      "Profit amounts routed, segmented by destination.",
			}, []string{"destination"}),
			claims: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "creditnet",
				Subsystem: "gauges",
				Name:      "reward_claims_total",
				Help:      "Count of successful reward claims.",
			}),
			multiplier: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "creditnet",
				Subsystem: "pnl",
				Name:      "credit_multiplier",
				Help:      "Current credit redemption multiplier (1e18 scaled, reported as a float).",
			}),
			surplus: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "creditnet",
				Subsystem: "pnl",
				Name:      "surplus_buffer_units",
				Help:      "Current surplus buffer balance in credit units.",
			}),
		}
		prometheus.MustRegister(
			pnlRegistry.losses,
			pnlRegistry.profit,
			pnlRegistry.claims,
			pnlRegistry.multiplier,
			pnlRegistry.surplus,
		)
	})
	return pnlRegistry
}

// RecordLoss increments the loss counter for the supplied gauge.
func (m *PnLMetrics) RecordLoss(gauge string, amount *big.Int) {
	if m == nil {
		return
	}
	m.losses.WithLabelValues(normalizeLabel(gauge)).Add(bigFloat(amount))
}

// RecordProfit increments the routed-profit counter for a destination.
func (m *PnLMetrics) RecordProfit(destination string, amount *big.Int) {
	if m == nil {
		return
	}
	m.profit.WithLabelValues(normalizeLabel(destination)).Add(bigFloat(amount))
}

// RecordClaim counts a successful reward claim.
func (m *PnLMetrics) RecordClaim() {
	if m == nil {
		return
	}
	m.claims.Inc()
}

// SetMultiplier publishes the current multiplier.
func (m *PnLMetrics) SetMultiplier(value *big.Int) {
	if m == nil {
		return
	}
	m.multiplier.Set(bigFloat(value))
}

// SetSurplus publishes the current surplus buffer balance.
func (m *PnLMetrics) SetSurplus(value *big.Int) {
	if m == nil {
		return
	}
	m.surplus.Set(bigFloat(value))
}

func normalizeLabel(label string) string {
	trimmed := strings.TrimSpace(strings.ToLower(label))
	if trimmed == "" {
		return "unknown"
	}
	return trimmed
}

func bigFloat(v *big.Int) float64 {
	if v == nil {
		return 0
	}
	f, _ := new(big.Float).SetInt(v).Float64()
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return 0
	}
	return f
}

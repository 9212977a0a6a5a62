package events

import (
	"fmt"
	"math/big"

	"creditnet/core/types"
	"creditnet/crypto"
)

const (
	// TypeLossApplied is emitted whenever a reported loss is absorbed.
	TypeLossApplied = "pnl.loss"
	// TypeProfitDistributed is emitted for every routed gain.
	TypeProfitDistributed = "pnl.profit"
	// TypeSharingConfigUpdated is emitted when the profit split changes.
	TypeSharingConfigUpdated = "pnl.sharingConfig"
	// TypeReserveDonation is emitted for explicit surplus buffer deposits.
	TypeReserveDonation = "pnl.reserveDonation"
	// TypeReserveWithdrawal is emitted for authorized buffer withdrawals.
	TypeReserveWithdrawal = "pnl.reserveWithdrawal"
	// TypeGaugeWeightChanged is emitted on every vote increment/decrement.
	TypeGaugeWeightChanged = "gauge.weight"
	// TypeRewardsClaimed is emitted when a voter claims accrued rewards.
	TypeRewardsClaimed = "gauge.rewardsClaimed"
)

// LossApplied captures the outcome of a loss absorption.
type LossApplied struct {
	Gauge      string
	Amount     *big.Int
	Drained    *big.Int
	Multiplier *big.Int
}

// EventType implements the Event interface.
func (LossApplied) EventType() string { return TypeLossApplied }

// Event converts the loss into the generic event representation.
func (l LossApplied) Event() *types.Event {
	return &types.Event{
		Type: TypeLossApplied,
		Attributes: map[string]string{
			"gauge":      l.Gauge,
			"amount":     bigString(l.Amount),
			"drained":    bigString(l.Drained),
			"multiplier": bigString(l.Multiplier),
		},
	}
}

// ProfitDistributed captures the four-way routing of a gain.
type ProfitDistributed struct {
	Gauge   string
	Amount  *big.Int
	Reserve *big.Int
	Rebase  *big.Int
	Gauges  *big.Int
	Other   *big.Int
}

// EventType implements the Event interface.
func (ProfitDistributed) EventType() string { return TypeProfitDistributed }

// Event converts the distribution into the generic event representation.
func (p ProfitDistributed) Event() *types.Event {
	return &types.Event{
		Type: TypeProfitDistributed,
		Attributes: map[string]string{
			"gauge":   p.Gauge,
			"amount":  bigString(p.Amount),
			"reserve": bigString(p.Reserve),
			"rebase":  bigString(p.Rebase),
			"gauges":  bigString(p.Gauges),
			"other":   bigString(p.Other),
		},
	}
}

// SharingConfigUpdated records a successful profit split reconfiguration.
type SharingConfigUpdated struct {
	ReserveShare *big.Int
	RebaseShare  *big.Int
	GaugeShare   *big.Int
	OtherShare   *big.Int
	Recipient    crypto.Address
}

// EventType implements the Event interface.
func (SharingConfigUpdated) EventType() string { return TypeSharingConfigUpdated }

// Event converts the update into the generic event representation.
func (c SharingConfigUpdated) Event() *types.Event {
	recipient := ""
	if !c.Recipient.IsZero() {
		recipient = c.Recipient.String()
	}
	return &types.Event{
		Type: TypeSharingConfigUpdated,
		Attributes: map[string]string{
			"reserveShare": bigString(c.ReserveShare),
			"rebaseShare":  bigString(c.RebaseShare),
			"gaugeShare":   bigString(c.GaugeShare),
			"otherShare":   bigString(c.OtherShare),
			"recipient":    recipient,
		},
	}
}

// ReserveDonation records an explicit surplus buffer deposit.
type ReserveDonation struct {
	From   crypto.Address
	Amount *big.Int
}

// EventType implements the Event interface.
func (ReserveDonation) EventType() string { return TypeReserveDonation }

// Event converts the donation into the generic event representation.
func (d ReserveDonation) Event() *types.Event {
	return &types.Event{
		Type: TypeReserveDonation,
		Attributes: map[string]string{
			"from":   d.From.String(),
			"amount": bigString(d.Amount),
		},
	}
}

// ReserveWithdrawal records an authorized surplus buffer withdrawal.
type ReserveWithdrawal struct {
	To     crypto.Address
	Amount *big.Int
}

// EventType implements the Event interface.
func (ReserveWithdrawal) EventType() string { return TypeReserveWithdrawal }

// Event converts the withdrawal into the generic event representation.
func (w ReserveWithdrawal) Event() *types.Event {
	return &types.Event{
		Type: TypeReserveWithdrawal,
		Attributes: map[string]string{
			"to":     w.To.String(),
			"amount": bigString(w.Amount),
		},
	}
}

// GaugeWeightChanged records a vote increment or decrement.
type GaugeWeightChanged struct {
	Voter       crypto.Address
	Gauge       string
	Delta       *big.Int
	Increase    bool
	GaugeWeight *big.Int
	TotalWeight *big.Int
}

// EventType implements the Event interface.
func (GaugeWeightChanged) EventType() string { return TypeGaugeWeightChanged }

// Event converts the weight change into the generic event representation.
func (g GaugeWeightChanged) Event() *types.Event {
	direction := "decrement"
	if g.Increase {
		direction = "increment"
	}
	return &types.Event{
		Type: TypeGaugeWeightChanged,
		Attributes: map[string]string{
			"voter":       g.Voter.String(),
			"gauge":       g.Gauge,
			"delta":       bigString(g.Delta),
			"direction":   direction,
			"gaugeWeight": bigString(g.GaugeWeight),
			"totalWeight": bigString(g.TotalWeight),
		},
	}
}

// RewardsClaimed records a voter claiming accrued gauge rewards.
type RewardsClaimed struct {
	Voter  crypto.Address
	Amount *big.Int
	Gauges uint64
}

// EventType implements the Event interface.
func (RewardsClaimed) EventType() string { return TypeRewardsClaimed }

// Event converts the claim into the generic event representation.
func (r RewardsClaimed) Event() *types.Event {
	return &types.Event{
		Type: TypeRewardsClaimed,
		Attributes: map[string]string{
			"voter":  r.Voter.String(),
			"amount": bigString(r.Amount),
			"gauges": fmt.Sprintf("%d", r.Gauges),
		},
	}
}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

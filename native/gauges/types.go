package gauges

import (
	"math/big"

	"creditnet/crypto"
	"creditnet/native/fixed"
)

// Gauge captures the aggregate voting state for a single votable target. The
// reward index accumulates reward units per unit of weight, scaled by 1e18,
// and never decreases.
type Gauge struct {
	ID          string
	TotalWeight *big.Int
	RewardIndex *big.Int
}

// EnsureDefaults populates nil fields so serialisation is safe.
func (g *Gauge) EnsureDefaults() {
	if g == nil {
		return
	}
	if g.TotalWeight == nil {
		g.TotalWeight = big.NewInt(0)
	}
	if g.RewardIndex == nil {
		g.RewardIndex = big.NewInt(0)
	}
}

// Clone returns a deep copy of the gauge.
func (g *Gauge) Clone() *Gauge {
	if g == nil {
		return nil
	}
	return &Gauge{
		ID:          g.ID,
		TotalWeight: fixed.Copy(g.TotalWeight),
		RewardIndex: fixed.Copy(g.RewardIndex),
	}
}

// Allocation is the per (voter, gauge) voting record. SettledIndex snapshots
// the gauge reward index at the voter's last settlement; Unclaimed holds the
// reward accrued but not yet claimed. Entries are created on first vote and
// may return to a zero state but are never deleted.
type Allocation struct {
	Voter        crypto.Address
	Gauge        string
	Weight       *big.Int
	SettledIndex *big.Int
	Unclaimed    *big.Int
}

// EnsureDefaults populates nil fields so serialisation is safe.
func (a *Allocation) EnsureDefaults() {
	if a == nil {
		return
	}
	if a.Weight == nil {
		a.Weight = big.NewInt(0)
	}
	if a.SettledIndex == nil {
		a.SettledIndex = big.NewInt(0)
	}
	if a.Unclaimed == nil {
		a.Unclaimed = big.NewInt(0)
	}
}

// Clone returns a deep copy of the allocation.
func (a *Allocation) Clone() *Allocation {
	if a == nil {
		return nil
	}
	return &Allocation{
		Voter:        a.Voter,
		Gauge:        a.Gauge,
		Weight:       fixed.Copy(a.Weight),
		SettledIndex: fixed.Copy(a.SettledIndex),
		Unclaimed:    fixed.Copy(a.Unclaimed),
	}
}

// PendingReward reports the claimable amount a voter has accrued on one gauge.
type PendingReward struct {
	Gauge  string
	Amount *big.Int
}

package gauges

import (
	"errors"
	"math/big"

	"creditnet/core/events"
	"creditnet/crypto"
	nativecommon "creditnet/native/common"
	"creditnet/native/fixed"
)

var (
	errNilState           = errors.New("gauge ledger: state not configured")
	errInvalidDelta       = errors.New("gauge ledger: delta must be positive")
	errNoBudgetSource     = errors.New("gauge ledger: budget source not configured")
	errNoIssuanceSource   = errors.New("gauge ledger: issuance source not configured")
	errNoRewardPayer      = errors.New("gauge ledger: reward payer not configured")
	errUnknownGauge       = errors.New("gauge ledger: unknown gauge")
	errAllocatedDrift     = errors.New("gauge ledger: voter allocated total below gauge allocation")
	ErrInsufficientBudget = errors.New("gauge ledger: vote budget exceeded")
	ErrInsufficientWeight = errors.New("gauge ledger: allocated weight below delta")
	// ErrDebtCeiling is distinct from ErrInsufficientWeight so callers can
	// tell "not enough weight" apart from "would break collateralization".
	ErrDebtCeiling = errors.New("gauge ledger: weight share would fall below issuance share")
	// ErrNoWeight signals a reward routed at a gauge nobody is voting for.
	ErrNoWeight = errors.New("gauge ledger: gauge has no weight")
)

const moduleName = "gauges"

// ledgerState is the persistence surface the ledger mutates. Implementations
// must apply writes atomically per operation.
type ledgerState interface {
	GetGauge(id string) (*Gauge, error)
	PutGauge(gauge *Gauge) error
	GetAllocation(voter crypto.Address, gauge string) (*Allocation, error)
	PutAllocation(alloc *Allocation) error
	// VoterGauges returns the gauge IDs the voter has ever allocated to, in
	// first-allocation order.
	VoterGauges(voter crypto.Address) ([]string, error)
	AppendVoterGauge(voter crypto.Address, gauge string) error
	TotalWeight() (*big.Int, error)
	PutTotalWeight(total *big.Int) error
	VoterAllocated(voter crypto.Address) (*big.Int, error)
	PutVoterAllocated(voter crypto.Address, total *big.Int) error
}

// IssuanceSource exposes the lending module's per-gauge outstanding issuance.
// Consulted only by the debt-ceiling guard; read-only.
type IssuanceSource interface {
	Issuance(gauge string) (*big.Int, error)
	TotalIssuance() (*big.Int, error)
}

// BudgetSource reports a voter's total voting budget. The debt token supplies
// this from the voter's balance.
type BudgetSource interface {
	VoteBudget(voter crypto.Address) (*big.Int, error)
}

// RewardPayer moves claimed reward units from the module treasury to a voter.
type RewardPayer interface {
	PayReward(to crypto.Address, amount *big.Int) error
}

// Ledger tracks per-gauge voting weight and lazily settles the per-voter
// reward accumulator on every weight mutation.
type Ledger struct {
	state    ledgerState
	issuance IssuanceSource
	budget   BudgetSource
	payer    RewardPayer
	emitter  events.Emitter
	pauses   nativecommon.PauseView
}

// NewLedger constructs an unwired gauge ledger.
func NewLedger() *Ledger {
	return &Ledger{emitter: events.NoopEmitter{}}
}

// SetState wires the ledger to the external persistence layer.
func (l *Ledger) SetState(state ledgerState) { l.state = state }

// SetIssuanceSource wires the read-only lending issuance collaborator.
func (l *Ledger) SetIssuanceSource(src IssuanceSource) {
	if l == nil {
		return
	}
	l.issuance = src
}

// SetBudgetSource wires the voting budget collaborator.
func (l *Ledger) SetBudgetSource(src BudgetSource) {
	if l == nil {
		return
	}
	l.budget = src
}

// SetRewardPayer wires the collaborator paying out claimed rewards.
func (l *Ledger) SetRewardPayer(payer RewardPayer) {
	if l == nil {
		return
	}
	l.payer = payer
}

// SetEmitter wires the event sink used for weight and claim events.
func (l *Ledger) SetEmitter(emitter events.Emitter) {
	if l == nil || emitter == nil {
		return
	}
	l.emitter = emitter
}

// SetPauses wires the module pause view.
func (l *Ledger) SetPauses(p nativecommon.PauseView) {
	if l == nil {
		return
	}
	l.pauses = p
}

// Increment allocates delta additional weight from the voter's budget to the
// gauge. The voter's accumulator entry is settled before the weight changes so
// accrual always reflects the weight actually held during each interval.
func (l *Ledger) Increment(voter crypto.Address, gaugeID string, delta *big.Int) error {
	if l == nil || l.state == nil {
		return errNilState
	}
	if err := nativecommon.Guard(l.pauses, moduleName); err != nil {
		return err
	}
	if delta == nil || delta.Sign() <= 0 {
		return errInvalidDelta
	}
	if l.budget == nil {
		return errNoBudgetSource
	}

	allocated, err := l.state.VoterAllocated(voter)
	if err != nil {
		return err
	}
	budget, err := l.budget.VoteBudget(voter)
	if err != nil {
		return err
	}
	projected := new(big.Int).Add(allocated, delta)
	if budget == nil || projected.Cmp(budget) > 0 {
		return ErrInsufficientBudget
	}

	gauge, err := l.ensureGauge(gaugeID)
	if err != nil {
		return err
	}
	alloc, created, err := l.ensureAllocation(voter, gaugeID)
	if err != nil {
		return err
	}
	total, err := l.state.TotalWeight()
	if err != nil {
		return err
	}

	settleAllocation(alloc, gauge)

	alloc.Weight = new(big.Int).Add(alloc.Weight, delta)
	gauge.TotalWeight = new(big.Int).Add(gauge.TotalWeight, delta)
	newTotal := new(big.Int).Add(fixed.Copy(total), delta)

	if created {
		if err := l.state.AppendVoterGauge(voter, gaugeID); err != nil {
			return err
		}
	}
	if err := l.state.PutAllocation(alloc); err != nil {
		return err
	}
	if err := l.state.PutGauge(gauge); err != nil {
		return err
	}
	if err := l.state.PutTotalWeight(newTotal); err != nil {
		return err
	}
	if err := l.state.PutVoterAllocated(voter, projected); err != nil {
		return err
	}

	l.emitter.Emit(events.GaugeWeightChanged{
		Voter:       voter,
		Gauge:       gaugeID,
		Delta:       fixed.Copy(delta),
		Increase:    true,
		GaugeWeight: fixed.Copy(gauge.TotalWeight),
		TotalWeight: fixed.Copy(newTotal),
	})
	return nil
}

// Decrement releases delta weight from the voter's allocation on the gauge.
// The debt-ceiling guard rejects the change when the gauge's weight share of
// total weight would fall strictly below its issuance share of total
// issuance. No state is mutated on rejection.
func (l *Ledger) Decrement(voter crypto.Address, gaugeID string, delta *big.Int) error {
	if l == nil || l.state == nil {
		return errNilState
	}
	if err := nativecommon.Guard(l.pauses, moduleName); err != nil {
		return err
	}
	if delta == nil || delta.Sign() <= 0 {
		return errInvalidDelta
	}

	gauge, err := l.state.GetGauge(gaugeID)
	if err != nil {
		return err
	}
	if gauge == nil {
		return errUnknownGauge
	}
	gauge.EnsureDefaults()

	alloc, _, err := l.ensureAllocation(voter, gaugeID)
	if err != nil {
		return err
	}
	if alloc.Weight.Cmp(delta) < 0 {
		return ErrInsufficientWeight
	}

	total, err := l.state.TotalWeight()
	if err != nil {
		return err
	}
	newGaugeWeight := new(big.Int).Sub(gauge.TotalWeight, delta)
	newTotal := new(big.Int).Sub(fixed.Copy(total), delta)
	if newGaugeWeight.Sign() < 0 || newTotal.Sign() < 0 {
		return ErrInsufficientWeight
	}

	if err := l.checkDebtCeiling(gaugeID, newGaugeWeight, newTotal); err != nil {
		return err
	}

	allocated, err := l.state.VoterAllocated(voter)
	if err != nil {
		return err
	}
	newAllocated := new(big.Int).Sub(fixed.Copy(allocated), delta)
	// The per-voter total covers every gauge allocation; going negative
	// means the bookkeeping has drifted and must not be papered over.
	if newAllocated.Sign() < 0 {
		return errAllocatedDrift
	}

	settleAllocation(alloc, gauge)

	alloc.Weight = new(big.Int).Sub(alloc.Weight, delta)
	gauge.TotalWeight = newGaugeWeight

	if err := l.state.PutAllocation(alloc); err != nil {
		return err
	}
	if err := l.state.PutGauge(gauge); err != nil {
		return err
	}
	if err := l.state.PutTotalWeight(newTotal); err != nil {
		return err
	}
	if err := l.state.PutVoterAllocated(voter, newAllocated); err != nil {
		return err
	}

	l.emitter.Emit(events.GaugeWeightChanged{
		Voter:       voter,
		Gauge:       gaugeID,
		Delta:       fixed.Copy(delta),
		Increase:    false,
		GaugeWeight: fixed.Copy(gauge.TotalWeight),
		TotalWeight: fixed.Copy(newTotal),
	})
	return nil
}

// checkDebtCeiling applies the cross-multiplied share comparison so there is
// no rounding ambiguity: reject when
// newGaugeWeight*totalIssuance < issuance(gauge)*newTotalWeight.
func (l *Ledger) checkDebtCeiling(gaugeID string, newGaugeWeight, newTotalWeight *big.Int) error {
	if l.issuance == nil {
		return errNoIssuanceSource
	}
	issued, err := l.issuance.Issuance(gaugeID)
	if err != nil {
		return err
	}
	totalIssued, err := l.issuance.TotalIssuance()
	if err != nil {
		return err
	}
	issued = fixed.Copy(issued)
	totalIssued = fixed.Copy(totalIssued)
	if newTotalWeight.Sign() == 0 && totalIssued.Sign() == 0 {
		return nil
	}
	lhs := new(big.Int).Mul(newGaugeWeight, totalIssued)
	rhs := new(big.Int).Mul(issued, newTotalWeight)
	if lhs.Cmp(rhs) < 0 {
		return ErrDebtCeiling
	}
	return nil
}

// AddReward credits a reward amount to the gauge's cumulative index. Callers
// must redirect the amount elsewhere when the gauge carries no weight; the
// ledger reports that case with ErrNoWeight and mutates nothing.
func (l *Ledger) AddReward(gaugeID string, amount *big.Int) error {
	if l == nil || l.state == nil {
		return errNilState
	}
	if amount == nil || amount.Sign() <= 0 {
		return errInvalidDelta
	}
	gauge, err := l.ensureGauge(gaugeID)
	if err != nil {
		return err
	}
	if gauge.TotalWeight.Sign() == 0 {
		return ErrNoWeight
	}
	increment := fixed.MulDiv(amount, fixed.Scale(), gauge.TotalWeight)
	gauge.RewardIndex = new(big.Int).Add(gauge.RewardIndex, increment)
	return l.state.PutGauge(gauge)
}

// Settle folds the reward accrued since the voter's last snapshot into their
// unclaimed balance. It is idempotent and safe to call at any time.
func (l *Ledger) Settle(voter crypto.Address, gaugeID string) error {
	if l == nil || l.state == nil {
		return errNilState
	}
	gauge, err := l.state.GetGauge(gaugeID)
	if err != nil {
		return err
	}
	if gauge == nil {
		return errUnknownGauge
	}
	gauge.EnsureDefaults()
	alloc, _, err := l.ensureAllocation(voter, gaugeID)
	if err != nil {
		return err
	}
	settleAllocation(alloc, gauge)
	return l.state.PutAllocation(alloc)
}

// Claim settles every gauge in the voter's allocation set, zeroes the
// unclaimed balances, pays the total to the voter, and returns it. Gauges are
// visited in first-allocation order so results are reproducible.
func (l *Ledger) Claim(voter crypto.Address) (*big.Int, error) {
	if l == nil || l.state == nil {
		return nil, errNilState
	}
	if err := nativecommon.Guard(l.pauses, moduleName); err != nil {
		return nil, err
	}
	if l.payer == nil {
		return nil, errNoRewardPayer
	}

	gaugeIDs, err := l.state.VoterGauges(voter)
	if err != nil {
		return nil, err
	}

	total := big.NewInt(0)
	settled := make([]*Allocation, 0, len(gaugeIDs))
	for _, id := range gaugeIDs {
		gauge, err := l.state.GetGauge(id)
		if err != nil {
			return nil, err
		}
		if gauge == nil {
			continue
		}
		gauge.EnsureDefaults()
		alloc, _, err := l.ensureAllocation(voter, id)
		if err != nil {
			return nil, err
		}
		settleAllocation(alloc, gauge)
		total.Add(total, alloc.Unclaimed)
		alloc.Unclaimed = big.NewInt(0)
		settled = append(settled, alloc)
	}

	if total.Sign() > 0 {
		if err := l.payer.PayReward(voter, fixed.Copy(total)); err != nil {
			return nil, err
		}
	}
	for _, alloc := range settled {
		if err := l.state.PutAllocation(alloc); err != nil {
			return nil, err
		}
	}

	l.emitter.Emit(events.RewardsClaimed{
		Voter:  voter,
		Amount: fixed.Copy(total),
		Gauges: uint64(len(settled)),
	})
	return total, nil
}

// Pending reproduces the per-gauge claimable amounts without mutating state,
// reporting gauges in first-allocation order.
func (l *Ledger) Pending(voter crypto.Address) ([]PendingReward, *big.Int, error) {
	if l == nil || l.state == nil {
		return nil, nil, errNilState
	}
	gaugeIDs, err := l.state.VoterGauges(voter)
	if err != nil {
		return nil, nil, err
	}
	pending := make([]PendingReward, 0, len(gaugeIDs))
	total := big.NewInt(0)
	for _, id := range gaugeIDs {
		gauge, err := l.state.GetGauge(id)
		if err != nil {
			return nil, nil, err
		}
		if gauge == nil {
			continue
		}
		gauge.EnsureDefaults()
		alloc, _, err := l.ensureAllocation(voter, id)
		if err != nil {
			return nil, nil, err
		}
		owed := accruedSince(alloc, gauge)
		amount := new(big.Int).Add(alloc.Unclaimed, owed)
		pending = append(pending, PendingReward{Gauge: id, Amount: amount})
		total.Add(total, amount)
	}
	return pending, total, nil
}

// Allocated reports the voter's currently allocated weight across all gauges.
// The debt token consults this from its pre-transfer hook.
func (l *Ledger) Allocated(voter crypto.Address) (*big.Int, error) {
	if l == nil || l.state == nil {
		return nil, errNilState
	}
	allocated, err := l.state.VoterAllocated(voter)
	if err != nil {
		return nil, err
	}
	return fixed.Copy(allocated), nil
}

// GaugeWeight reports the gauge's current total weight, zero for unknown IDs.
func (l *Ledger) GaugeWeight(gaugeID string) (*big.Int, error) {
	if l == nil || l.state == nil {
		return nil, errNilState
	}
	gauge, err := l.state.GetGauge(gaugeID)
	if err != nil {
		return nil, err
	}
	if gauge == nil {
		return big.NewInt(0), nil
	}
	return fixed.Copy(gauge.TotalWeight), nil
}

func (l *Ledger) ensureGauge(id string) (*Gauge, error) {
	gauge, err := l.state.GetGauge(id)
	if err != nil {
		return nil, err
	}
	if gauge == nil {
		gauge = &Gauge{ID: id}
	}
	gauge.EnsureDefaults()
	return gauge, nil
}

func (l *Ledger) ensureAllocation(voter crypto.Address, gaugeID string) (*Allocation, bool, error) {
	alloc, err := l.state.GetAllocation(voter, gaugeID)
	if err != nil {
		return nil, false, err
	}
	created := false
	if alloc == nil {
		alloc = &Allocation{Voter: voter, Gauge: gaugeID}
		created = true
	}
	alloc.EnsureDefaults()
	return alloc, created, nil
}

// settleAllocation folds the index delta since the last snapshot into the
// unclaimed balance: owed = weight * (index - settled) / 1e18.
func settleAllocation(alloc *Allocation, gauge *Gauge) {
	owed := accruedSince(alloc, gauge)
	if owed.Sign() > 0 {
		alloc.Unclaimed = new(big.Int).Add(alloc.Unclaimed, owed)
	}
	alloc.SettledIndex = fixed.Copy(gauge.RewardIndex)
}

func accruedSince(alloc *Allocation, gauge *Gauge) *big.Int {
	if alloc.Weight.Sign() == 0 {
		return big.NewInt(0)
	}
	diff := new(big.Int).Sub(gauge.RewardIndex, alloc.SettledIndex)
	if diff.Sign() <= 0 {
		return big.NewInt(0)
	}
	return fixed.MulDiv(alloc.Weight, diff, fixed.Scale())
}

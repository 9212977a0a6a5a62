package gauges

import (
	"errors"
	"math/big"
	"testing"

	"creditnet/crypto"
	nativecommon "creditnet/native/common"
	"creditnet/native/fixed"
)

type mockLedgerState struct {
	gauges    map[string]*Gauge
	allocs    map[string]*Allocation
	sets      map[string][]string
	allocated map[string]*big.Int
	total     *big.Int
}

func newMockLedgerState() *mockLedgerState {
	return &mockLedgerState{
		gauges:    make(map[string]*Gauge),
		allocs:    make(map[string]*Allocation),
		sets:      make(map[string][]string),
		allocated: make(map[string]*big.Int),
		total:     big.NewInt(0),
	}
}

func (m *mockLedgerState) allocKey(voter crypto.Address, gauge string) string {
	return gauge + "/" + string(voter.Bytes())
}

func (m *mockLedgerState) GetGauge(id string) (*Gauge, error) {
	return m.gauges[id], nil
}

func (m *mockLedgerState) PutGauge(gauge *Gauge) error {
	m.gauges[gauge.ID] = gauge
	return nil
}

func (m *mockLedgerState) GetAllocation(voter crypto.Address, gauge string) (*Allocation, error) {
	return m.allocs[m.allocKey(voter, gauge)], nil
}

func (m *mockLedgerState) PutAllocation(alloc *Allocation) error {
	m.allocs[m.allocKey(alloc.Voter, alloc.Gauge)] = alloc
	return nil
}

func (m *mockLedgerState) VoterGauges(voter crypto.Address) ([]string, error) {
	return m.sets[string(voter.Bytes())], nil
}

func (m *mockLedgerState) AppendVoterGauge(voter crypto.Address, gauge string) error {
	key := string(voter.Bytes())
	for _, existing := range m.sets[key] {
		if existing == gauge {
			return nil
		}
	}
	m.sets[key] = append(m.sets[key], gauge)
	return nil
}

func (m *mockLedgerState) TotalWeight() (*big.Int, error) {
	return new(big.Int).Set(m.total), nil
}

func (m *mockLedgerState) PutTotalWeight(total *big.Int) error {
	m.total = total
	return nil
}

func (m *mockLedgerState) VoterAllocated(voter crypto.Address) (*big.Int, error) {
	if allocated, ok := m.allocated[string(voter.Bytes())]; ok {
		return new(big.Int).Set(allocated), nil
	}
	return big.NewInt(0), nil
}

func (m *mockLedgerState) PutVoterAllocated(voter crypto.Address, total *big.Int) error {
	m.allocated[string(voter.Bytes())] = total
	return nil
}

type stubBudget map[string]*big.Int

func (s stubBudget) VoteBudget(voter crypto.Address) (*big.Int, error) {
	if budget, ok := s[string(voter.Bytes())]; ok {
		return new(big.Int).Set(budget), nil
	}
	return big.NewInt(0), nil
}

type stubIssuance struct {
	perGauge map[string]*big.Int
	total    *big.Int
}

func (s stubIssuance) Issuance(gauge string) (*big.Int, error) {
	if issued, ok := s.perGauge[gauge]; ok {
		return new(big.Int).Set(issued), nil
	}
	return big.NewInt(0), nil
}

func (s stubIssuance) TotalIssuance() (*big.Int, error) {
	if s.total == nil {
		return big.NewInt(0), nil
	}
	return new(big.Int).Set(s.total), nil
}

type stubPayer struct {
	payments map[string]*big.Int
	err      error
}

func (s *stubPayer) PayReward(to crypto.Address, amount *big.Int) error {
	if s.err != nil {
		return s.err
	}
	if s.payments == nil {
		s.payments = make(map[string]*big.Int)
	}
	s.payments[string(to.Bytes())] = new(big.Int).Set(amount)
	return nil
}

func makeAddress(suffix byte) crypto.Address {
	raw := make([]byte, 20)
	raw[19] = suffix
	return crypto.NewAddress(crypto.CreditPrefix, raw)
}

func newTestLedger(state *mockLedgerState, budget stubBudget, issuance stubIssuance) *Ledger {
	ledger := NewLedger()
	ledger.SetState(state)
	ledger.SetBudgetSource(budget)
	ledger.SetIssuanceSource(issuance)
	ledger.SetRewardPayer(&stubPayer{})
	return ledger
}

func TestIncrementRequiresBudget(t *testing.T) {
	state := newMockLedgerState()
	voter := makeAddress(0x01)
	ledger := newTestLedger(state, stubBudget{string(voter.Bytes()): big.NewInt(100)}, stubIssuance{})

	if err := ledger.Increment(voter, "market-a", big.NewInt(60)); err != nil {
		t.Fatalf("first increment: %v", err)
	}
	if err := ledger.Increment(voter, "market-b", big.NewInt(50)); !errors.Is(err, ErrInsufficientBudget) {
		t.Fatalf("expected ErrInsufficientBudget, got %v", err)
	}
	if got := state.total; got.Cmp(big.NewInt(60)) != 0 {
		t.Fatalf("expected total weight 60, got %s", got)
	}
	if _, ok := state.gauges["market-b"]; ok {
		t.Fatalf("rejected increment must not materialise the gauge")
	}
}

func TestDecrementDebtCeilingGuard(t *testing.T) {
	state := newMockLedgerState()
	voter := makeAddress(0x02)
	budget := stubBudget{string(voter.Bytes()): big.NewInt(1000)}
	issuance := stubIssuance{
		perGauge: map[string]*big.Int{"market-a": big.NewInt(50)},
		total:    big.NewInt(100),
	}
	ledger := newTestLedger(state, budget, issuance)

	if err := ledger.Increment(voter, "market-a", big.NewInt(100)); err != nil {
		t.Fatalf("increment a: %v", err)
	}
	if err := ledger.Increment(voter, "market-b", big.NewInt(100)); err != nil {
		t.Fatalf("increment b: %v", err)
	}

	// Removing 40 leaves market-a with 60/160 = 37.5% of weight against a
	// 50% issuance share: rejected, state untouched.
	if err := ledger.Decrement(voter, "market-a", big.NewInt(40)); !errors.Is(err, ErrDebtCeiling) {
		t.Fatalf("expected ErrDebtCeiling, got %v", err)
	}
	if got := state.gauges["market-a"].TotalWeight; got.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("expected gauge weight unchanged at 100, got %s", got)
	}
	if got := state.total; got.Cmp(big.NewInt(200)) != 0 {
		t.Fatalf("expected total weight unchanged at 200, got %s", got)
	}

	// Removing weight from market-b instead raises market-a's share: allowed.
	if err := ledger.Decrement(voter, "market-b", big.NewInt(40)); err != nil {
		t.Fatalf("decrement b: %v", err)
	}
	if got := state.total; got.Cmp(big.NewInt(160)) != 0 {
		t.Fatalf("expected total weight 160, got %s", got)
	}
}

func TestDecrementBoundaryExactShareAccepted(t *testing.T) {
	state := newMockLedgerState()
	voter := makeAddress(0x03)
	budget := stubBudget{string(voter.Bytes()): big.NewInt(1000)}
	// market-a backs 20% of issuance; dropping to exactly a 20% weight share
	// is allowed, one unit below is not.
	issuance := stubIssuance{
		perGauge: map[string]*big.Int{"market-a": big.NewInt(20)},
		total:    big.NewInt(100),
	}
	ledger := newTestLedger(state, budget, issuance)

	if err := ledger.Increment(voter, "market-a", big.NewInt(100)); err != nil {
		t.Fatalf("increment a: %v", err)
	}
	if err := ledger.Increment(voter, "market-b", big.NewInt(100)); err != nil {
		t.Fatalf("increment b: %v", err)
	}

	// newGauge=25, newTotal=125: 25*100 == 20*125, exact share passes.
	if err := ledger.Decrement(voter, "market-a", big.NewInt(75)); err != nil {
		t.Fatalf("expected decrement to pass, got %v", err)
	}
	// newGauge=24, newTotal=124: 24*100 < 20*124 fails.
	if err := ledger.Decrement(voter, "market-a", big.NewInt(1)); !errors.Is(err, ErrDebtCeiling) {
		t.Fatalf("expected ErrDebtCeiling, got %v", err)
	}
}

func TestDecrementInsufficientWeightDistinctFromGuard(t *testing.T) {
	state := newMockLedgerState()
	voter := makeAddress(0x04)
	ledger := newTestLedger(state, stubBudget{string(voter.Bytes()): big.NewInt(100)}, stubIssuance{})

	if err := ledger.Increment(voter, "market-a", big.NewInt(10)); err != nil {
		t.Fatalf("increment: %v", err)
	}
	err := ledger.Decrement(voter, "market-a", big.NewInt(20))
	if !errors.Is(err, ErrInsufficientWeight) {
		t.Fatalf("expected ErrInsufficientWeight, got %v", err)
	}
	if errors.Is(err, ErrDebtCeiling) {
		t.Fatalf("insufficient weight must not be reported as a ceiling breach")
	}
}

func TestDecrementRejectsAllocatedTotalDrift(t *testing.T) {
	state := newMockLedgerState()
	voter := makeAddress(0x0C)
	ledger := newTestLedger(state, stubBudget{string(voter.Bytes()): big.NewInt(100)}, stubIssuance{})

	if err := ledger.Increment(voter, "market-a", big.NewInt(10)); err != nil {
		t.Fatalf("increment: %v", err)
	}
	// Corrupt the per-voter total below the gauge allocation; the decrement
	// must surface the inconsistency instead of clamping it away.
	state.allocated[string(voter.Bytes())] = big.NewInt(3)

	err := ledger.Decrement(voter, "market-a", big.NewInt(10))
	if err == nil {
		t.Fatalf("expected drift error")
	}
	if errors.Is(err, ErrInsufficientWeight) || errors.Is(err, ErrDebtCeiling) {
		t.Fatalf("drift must not masquerade as a weight or ceiling error, got %v", err)
	}
	if got := state.gauges["market-a"].TotalWeight; got.Cmp(big.NewInt(10)) != 0 {
		t.Fatalf("drift detection must not mutate state, gauge weight %s", got)
	}
}

func TestSettlementExactness(t *testing.T) {
	state := newMockLedgerState()
	voter := makeAddress(0x05)
	ledger := newTestLedger(state, stubBudget{string(voter.Bytes()): big.NewInt(1000)}, stubIssuance{})

	if err := ledger.Increment(voter, "market-a", big.NewInt(400)); err != nil {
		t.Fatalf("increment: %v", err)
	}
	// Index grows by 2.5 reward units per unit weight.
	delta := new(big.Int).Mul(big.NewInt(25), new(big.Int).Quo(fixed.Scale(), big.NewInt(10)))
	gauge := state.gauges["market-a"]
	gauge.RewardIndex = new(big.Int).Add(gauge.RewardIndex, delta)

	if err := ledger.Settle(voter, "market-a"); err != nil {
		t.Fatalf("settle: %v", err)
	}
	alloc := state.allocs[state.allocKey(voter, "market-a")]
	// owed = 400 * 2.5 = 1000
	if alloc.Unclaimed.Cmp(big.NewInt(1000)) != 0 {
		t.Fatalf("expected unclaimed 1000, got %s", alloc.Unclaimed)
	}
	// Settling again without index movement accrues nothing.
	if err := ledger.Settle(voter, "market-a"); err != nil {
		t.Fatalf("second settle: %v", err)
	}
	alloc = state.allocs[state.allocKey(voter, "market-a")]
	if alloc.Unclaimed.Cmp(big.NewInt(1000)) != 0 {
		t.Fatalf("settle must be idempotent, got %s", alloc.Unclaimed)
	}
}

func TestAddRewardSplitsAcrossWeights(t *testing.T) {
	state := newMockLedgerState()
	alice := makeAddress(0x06)
	bob := makeAddress(0x07)
	budget := stubBudget{
		string(alice.Bytes()): big.NewInt(500),
		string(bob.Bytes()):   big.NewInt(500),
	}
	ledger := newTestLedger(state, budget, stubIssuance{})

	if err := ledger.Increment(alice, "market-a", big.NewInt(50)); err != nil {
		t.Fatalf("alice increment: %v", err)
	}
	if err := ledger.Increment(bob, "market-a", big.NewInt(50)); err != nil {
		t.Fatalf("bob increment: %v", err)
	}
	if err := ledger.AddReward("market-a", big.NewInt(20)); err != nil {
		t.Fatalf("add reward: %v", err)
	}

	for _, voter := range []crypto.Address{alice, bob} {
		pending, total, err := ledger.Pending(voter)
		if err != nil {
			t.Fatalf("pending: %v", err)
		}
		if len(pending) != 1 || pending[0].Gauge != "market-a" {
			t.Fatalf("unexpected pending set: %+v", pending)
		}
		if total.Cmp(big.NewInt(10)) != 0 {
			t.Fatalf("expected 10 units pending, got %s", total)
		}
	}
}

func TestAddRewardNoWeight(t *testing.T) {
	state := newMockLedgerState()
	ledger := newTestLedger(state, stubBudget{}, stubIssuance{})

	if err := ledger.AddReward("market-a", big.NewInt(5)); !errors.Is(err, ErrNoWeight) {
		t.Fatalf("expected ErrNoWeight, got %v", err)
	}
	if gauge := state.gauges["market-a"]; gauge != nil && gauge.RewardIndex.Sign() != 0 {
		t.Fatalf("reward index must stay untouched, got %s", gauge.RewardIndex)
	}
}

func TestClaimOrderAndZeroing(t *testing.T) {
	state := newMockLedgerState()
	voter := makeAddress(0x08)
	budget := stubBudget{string(voter.Bytes()): big.NewInt(1000)}
	payer := &stubPayer{}
	ledger := newTestLedger(state, budget, stubIssuance{})
	ledger.SetRewardPayer(payer)

	for _, gauge := range []string{"market-c", "market-a", "market-b"} {
		if err := ledger.Increment(voter, gauge, big.NewInt(10)); err != nil {
			t.Fatalf("increment %s: %v", gauge, err)
		}
	}
	for _, gauge := range []string{"market-a", "market-b", "market-c"} {
		if err := ledger.AddReward(gauge, big.NewInt(10)); err != nil {
			t.Fatalf("reward %s: %v", gauge, err)
		}
	}

	pending, total, err := ledger.Pending(voter)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	// First-allocation order, not lexicographic.
	want := []string{"market-c", "market-a", "market-b"}
	for i, entry := range pending {
		if entry.Gauge != want[i] {
			t.Fatalf("expected gauge %s at position %d, got %s", want[i], i, entry.Gauge)
		}
	}
	if total.Cmp(big.NewInt(30)) != 0 {
		t.Fatalf("expected pending total 30, got %s", total)
	}

	claimed, err := ledger.Claim(voter)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if claimed.Cmp(big.NewInt(30)) != 0 {
		t.Fatalf("expected claim total 30, got %s", claimed)
	}
	if paid := payer.payments[string(voter.Bytes())]; paid == nil || paid.Cmp(big.NewInt(30)) != 0 {
		t.Fatalf("expected payout of 30, got %v", paid)
	}

	_, totalAfter, err := ledger.Pending(voter)
	if err != nil {
		t.Fatalf("pending after claim: %v", err)
	}
	if totalAfter.Sign() != 0 {
		t.Fatalf("expected nothing pending after claim, got %s", totalAfter)
	}
}

func TestPendingDoesNotMutate(t *testing.T) {
	state := newMockLedgerState()
	voter := makeAddress(0x09)
	ledger := newTestLedger(state, stubBudget{string(voter.Bytes()): big.NewInt(100)}, stubIssuance{})

	if err := ledger.Increment(voter, "market-a", big.NewInt(10)); err != nil {
		t.Fatalf("increment: %v", err)
	}
	if err := ledger.AddReward("market-a", big.NewInt(7)); err != nil {
		t.Fatalf("reward: %v", err)
	}

	before := state.allocs[state.allocKey(voter, "market-a")].Clone()
	if _, _, err := ledger.Pending(voter); err != nil {
		t.Fatalf("pending: %v", err)
	}
	after := state.allocs[state.allocKey(voter, "market-a")]
	if after.SettledIndex.Cmp(before.SettledIndex) != 0 || after.Unclaimed.Cmp(before.Unclaimed) != 0 {
		t.Fatalf("pending query mutated allocation state")
	}
}

func TestWeightChangeSettlesPriorAccrual(t *testing.T) {
	state := newMockLedgerState()
	voter := makeAddress(0x0A)
	ledger := newTestLedger(state, stubBudget{string(voter.Bytes()): big.NewInt(1000)}, stubIssuance{})

	if err := ledger.Increment(voter, "market-a", big.NewInt(50)); err != nil {
		t.Fatalf("increment: %v", err)
	}
	if err := ledger.AddReward("market-a", big.NewInt(20)); err != nil {
		t.Fatalf("reward: %v", err)
	}
	// Doubling the weight must not retroactively double the accrued reward.
	if err := ledger.Increment(voter, "market-a", big.NewInt(50)); err != nil {
		t.Fatalf("second increment: %v", err)
	}
	alloc := state.allocs[state.allocKey(voter, "market-a")]
	if alloc.Unclaimed.Cmp(big.NewInt(20)) != 0 {
		t.Fatalf("expected 20 accrued before weight change, got %s", alloc.Unclaimed)
	}
	if alloc.SettledIndex.Cmp(state.gauges["market-a"].RewardIndex) != 0 {
		t.Fatalf("settled index must snapshot the gauge index")
	}
}

func TestLedgerPaused(t *testing.T) {
	state := newMockLedgerState()
	voter := makeAddress(0x0B)
	ledger := newTestLedger(state, stubBudget{string(voter.Bytes()): big.NewInt(100)}, stubIssuance{})
	ledger.SetPauses(nativecommon.StaticPauses{"gauges": true})

	if err := ledger.Increment(voter, "market-a", big.NewInt(10)); !errors.Is(err, nativecommon.ErrModulePaused) {
		t.Fatalf("expected ErrModulePaused, got %v", err)
	}
	if state.total.Sign() != 0 {
		t.Fatalf("paused increment must not mutate state")
	}
}

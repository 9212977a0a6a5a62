package pnl

import (
	"errors"
	"math/big"

	"creditnet/core/events"
	"creditnet/crypto"
	nativecommon "creditnet/native/common"
	"creditnet/native/fixed"
	"creditnet/native/gauges"
	"creditnet/native/token"
)

var (
	errNilState            = errors.New("pnl engine: state not configured")
	errNilToken            = errors.New("pnl engine: token not configured")
	errNilRewards          = errors.New("pnl engine: reward sink not configured")
	errInvalidAmount       = errors.New("pnl engine: amount must be non-zero")
	ErrInsufficientReserve = errors.New("pnl engine: withdrawal exceeds surplus buffer")
	ErrTreasuryUnderfunded = errors.New("pnl engine: treasury cannot cover distribution")
	// ErrLossExceedsSupply rejects losses larger than circulating nominal
	// supply net of the just-burned reserve.
	ErrLossExceedsSupply = errors.New("pnl engine: loss exceeds circulating supply")
)

const moduleName = "pnl"

// engineState is the persistence surface for the global P&L records.
type engineState interface {
	GetLedger() (*Ledger, error)
	PutLedger(ledger *Ledger) error
	GetSharingConfig() (*SharingConfig, error)
	PutSharingConfig(config *SharingConfig) error
}

// DebtToken is the token collaborator consumed by the engine. Gains are
// assumed pre-minted to the module treasury before NotifyPnL reports them.
type DebtToken interface {
	Burn(caller, from crypto.Address, amount *big.Int) error
	Transfer(from, to crypto.Address, amount *big.Int) error
	DistributeRebase(from crypto.Address, amount *big.Int) error
	TotalSupply() (*big.Int, error)
	BalanceOf(addr crypto.Address) (*big.Int, error)
}

// RewardSink receives the gauge-weighted profit share.
type RewardSink interface {
	AddReward(gauge string, amount *big.Int) error
}

// Engine owns the multiplier, the surplus buffer, and the profit split. All
// state transitions are validate-then-write so a failed call leaves every
// record untouched.
type Engine struct {
	state         engineState
	token         DebtToken
	rewards       RewardSink
	roles         nativecommon.RoleView
	pauses        nativecommon.PauseView
	emitter       events.Emitter
	moduleAddress crypto.Address
}

// NewEngine constructs a P&L engine anchored on the module treasury address
// that holds pre-minted gains and the surplus buffer.
func NewEngine(moduleAddr crypto.Address) *Engine {
	return &Engine{moduleAddress: moduleAddr, emitter: events.NoopEmitter{}}
}

// SetState wires the engine to the external persistence layer.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetToken wires the debt token collaborator.
func (e *Engine) SetToken(t DebtToken) {
	if e == nil {
		return
	}
	e.token = t
}

// SetRewardSink wires the gauge reward accumulator.
func (e *Engine) SetRewardSink(sink RewardSink) {
	if e == nil {
		return
	}
	e.rewards = sink
}

// SetRoles wires the authority gating privileged calls.
func (e *Engine) SetRoles(roles nativecommon.RoleView) {
	if e == nil {
		return
	}
	e.roles = roles
}

// SetPauses wires the module pause view.
func (e *Engine) SetPauses(p nativecommon.PauseView) {
	if e == nil {
		return
	}
	e.pauses = p
}

// SetEmitter wires the event sink.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if e == nil || emitter == nil {
		return
	}
	e.emitter = emitter
}

// ModuleAddress returns the treasury address the engine accounts against.
func (e *Engine) ModuleAddress() crypto.Address {
	return e.moduleAddress
}

// NotifyPnL absorbs a signed profit-or-loss report for a gauge. Positive
// amounts route through the profit split, negative ones through loss
// absorption. Zero is rejected.
func (e *Engine) NotifyPnL(caller crypto.Address, gauge string, amount *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := nativecommon.RequireRole(e.roles, nativecommon.RolePnLReporter, caller); err != nil {
		return err
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if amount == nil || amount.Sign() == 0 {
		return errInvalidAmount
	}
	if amount.Sign() > 0 {
		return e.distribute(gauge, amount)
	}
	return e.applyLoss(gauge, new(big.Int).Neg(amount))
}

// applyLoss drains the surplus buffer first, burning the drained units, then
// shrinks the multiplier by whatever loss remains against the post-burn
// supply. A loss fully covered by the buffer leaves the multiplier
// bit-for-bit unchanged.
func (e *Engine) applyLoss(gauge string, amount *big.Int) error {
	if e.token == nil {
		return errNilToken
	}
	ledger, err := e.ensureLedger()
	if err != nil {
		return err
	}
	supply, err := e.token.TotalSupply()
	if err != nil {
		return err
	}

	drained := new(big.Int).Set(amount)
	if drained.Cmp(ledger.SurplusBuffer) > 0 {
		drained.Set(ledger.SurplusBuffer)
	}
	remaining := new(big.Int).Sub(amount, drained)
	postSupply := new(big.Int).Sub(supply, drained)

	if remaining.Sign() > 0 {
		if postSupply.Sign() <= 0 || remaining.Cmp(postSupply) > 0 {
			return ErrLossExceedsSupply
		}
	}

	if drained.Sign() > 0 {
		if err := e.token.Burn(e.moduleAddress, e.moduleAddress, drained); err != nil {
			return err
		}
		ledger.SurplusBuffer = new(big.Int).Sub(ledger.SurplusBuffer, drained)
	}
	if remaining.Sign() > 0 {
		// Burn first, then shrink: the post-burn supply is the denominator.
		numerator := new(big.Int).Sub(postSupply, remaining)
		ledger.Multiplier = fixed.MulDiv(ledger.Multiplier, numerator, postSupply)
	}

	if err := e.state.PutLedger(ledger); err != nil {
		return err
	}
	e.emitter.Emit(events.LossApplied{
		Gauge:      gauge,
		Amount:     fixed.Copy(amount),
		Drained:    drained,
		Multiplier: fixed.Copy(ledger.Multiplier),
	})
	return nil
}

// distribute splits a gain four ways per the sharing config. Reserve, gauge,
// and other sub-amounts are truncating fixed-point products; the last-computed
// rebase sub-amount absorbs the rounding remainder so the four sum exactly to
// the gain. A gauge share with no weight behind it, or a rebase share with no
// opted-in holders, is redirected to the reserve rather than dropped.
func (e *Engine) distribute(gauge string, amount *big.Int) error {
	if e.token == nil {
		return errNilToken
	}
	if e.rewards == nil {
		return errNilRewards
	}
	ledger, err := e.ensureLedger()
	if err != nil {
		return err
	}
	config, err := e.ensureSharingConfig()
	if err != nil {
		return err
	}

	reserveAmt := fixed.Mul(amount, config.ReserveShare)
	gaugeAmt := fixed.Mul(amount, config.GaugeShare)
	otherAmt := fixed.Mul(amount, config.OtherShare)
	rebaseAmt := new(big.Int).Sub(amount, reserveAmt)
	rebaseAmt.Sub(rebaseAmt, gaugeAmt)
	rebaseAmt.Sub(rebaseAmt, otherAmt)

	// Only the rebase and other legs debit the treasury now; reserve and
	// gauge units stay in it until withdrawal or claim. Verify funding before
	// any leg routes so a failed debit cannot leave a partial distribution.
	needed := new(big.Int).Add(rebaseAmt, otherAmt)
	if needed.Sign() > 0 {
		balance, err := e.token.BalanceOf(e.moduleAddress)
		if err != nil {
			return err
		}
		if balance.Cmp(needed) < 0 {
			return ErrTreasuryUnderfunded
		}
	}

	if gaugeAmt.Sign() > 0 {
		switch err := e.rewards.AddReward(gauge, gaugeAmt); {
		case err == nil:
		case errors.Is(err, gauges.ErrNoWeight):
			reserveAmt.Add(reserveAmt, gaugeAmt)
			gaugeAmt = big.NewInt(0)
		default:
			return err
		}
	}
	if rebaseAmt.Sign() > 0 {
		switch err := e.token.DistributeRebase(e.moduleAddress, rebaseAmt); {
		case err == nil:
		case errors.Is(err, token.ErrNoRebaseHolders):
			reserveAmt.Add(reserveAmt, rebaseAmt)
			rebaseAmt = big.NewInt(0)
		default:
			return err
		}
	}
	if otherAmt.Sign() > 0 {
		if err := e.token.Transfer(e.moduleAddress, config.Recipient, otherAmt); err != nil {
			return err
		}
	}
	if reserveAmt.Sign() > 0 {
		ledger.SurplusBuffer = new(big.Int).Add(ledger.SurplusBuffer, reserveAmt)
		if err := e.state.PutLedger(ledger); err != nil {
			return err
		}
	}

	e.emitter.Emit(events.ProfitDistributed{
		Gauge:   gauge,
		Amount:  fixed.Copy(amount),
		Reserve: reserveAmt,
		Rebase:  rebaseAmt,
		Gauges:  gaugeAmt,
		Other:   otherAmt,
	})
	return nil
}

// SetSharingConfig replaces the profit split wholesale after validation.
func (e *Engine) SetSharingConfig(caller crypto.Address, config *SharingConfig) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := nativecommon.RequireRole(e.roles, nativecommon.RoleSharingAdmin, caller); err != nil {
		return err
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if err := config.Validate(); err != nil {
		return err
	}
	if err := e.state.PutSharingConfig(config.Clone()); err != nil {
		return err
	}
	e.emitter.Emit(events.SharingConfigUpdated{
		ReserveShare: fixed.Copy(config.ReserveShare),
		RebaseShare:  fixed.Copy(config.RebaseShare),
		GaugeShare:   fixed.Copy(config.GaugeShare),
		OtherShare:   fixed.Copy(config.OtherShare),
		Recipient:    config.Recipient,
	})
	return nil
}

// DonateToReserve moves credit from the donor into the surplus buffer.
func (e *Engine) DonateToReserve(caller, from crypto.Address, amount *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := nativecommon.RequireRole(e.roles, nativecommon.RoleReserveManager, caller); err != nil {
		return err
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return errInvalidAmount
	}
	if e.token == nil {
		return errNilToken
	}
	ledger, err := e.ensureLedger()
	if err != nil {
		return err
	}
	if err := e.token.Transfer(from, e.moduleAddress, amount); err != nil {
		return err
	}
	ledger.SurplusBuffer = new(big.Int).Add(ledger.SurplusBuffer, amount)
	if err := e.state.PutLedger(ledger); err != nil {
		return err
	}
	e.emitter.Emit(events.ReserveDonation{From: from, Amount: fixed.Copy(amount)})
	return nil
}

// WithdrawFromReserve releases credit from the surplus buffer to a recipient.
func (e *Engine) WithdrawFromReserve(caller, to crypto.Address, amount *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := nativecommon.RequireRole(e.roles, nativecommon.RoleReserveManager, caller); err != nil {
		return err
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return errInvalidAmount
	}
	if e.token == nil {
		return errNilToken
	}
	ledger, err := e.ensureLedger()
	if err != nil {
		return err
	}
	if amount.Cmp(ledger.SurplusBuffer) > 0 {
		return ErrInsufficientReserve
	}
	if err := e.token.Transfer(e.moduleAddress, to, amount); err != nil {
		return err
	}
	ledger.SurplusBuffer = new(big.Int).Sub(ledger.SurplusBuffer, amount)
	if err := e.state.PutLedger(ledger); err != nil {
		return err
	}
	e.emitter.Emit(events.ReserveWithdrawal{To: to, Amount: fixed.Copy(amount)})
	return nil
}

// PayReward implements the gauge ledger's RewardPayer against the module
// treasury.
func (e *Engine) PayReward(to crypto.Address, amount *big.Int) error {
	if e == nil || e.token == nil {
		return errNilToken
	}
	return e.token.Transfer(e.moduleAddress, to, amount)
}

// Multiplier reports the current redemption multiplier.
func (e *Engine) Multiplier() (*big.Int, error) {
	ledger, err := e.ensureLedger()
	if err != nil {
		return nil, err
	}
	return fixed.Copy(ledger.Multiplier), nil
}

// SurplusBuffer reports the current reserve balance.
func (e *Engine) SurplusBuffer() (*big.Int, error) {
	ledger, err := e.ensureLedger()
	if err != nil {
		return nil, err
	}
	return fixed.Copy(ledger.SurplusBuffer), nil
}

// CreditValue converts a nominal credit amount to its current redeemable
// value through the multiplier.
func (e *Engine) CreditValue(nominal *big.Int) (*big.Int, error) {
	ledger, err := e.ensureLedger()
	if err != nil {
		return nil, err
	}
	return fixed.Mul(nominal, ledger.Multiplier), nil
}

func (e *Engine) ensureLedger() (*Ledger, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	ledger, err := e.state.GetLedger()
	if err != nil {
		return nil, err
	}
	if ledger == nil {
		ledger = &Ledger{}
	}
	ledger.EnsureDefaults()
	return ledger, nil
}

func (e *Engine) ensureSharingConfig() (*SharingConfig, error) {
	config, err := e.state.GetSharingConfig()
	if err != nil {
		return nil, err
	}
	if config == nil {
		config = DefaultSharingConfig()
	}
	return config, nil
}

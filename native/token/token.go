package token

import (
	"errors"
	"math/big"

	"creditnet/core/types"
	"creditnet/crypto"
	nativecommon "creditnet/native/common"
	"creditnet/native/fixed"
)

var (
	errNilState            = errors.New("credit token: state not configured")
	errInvalidAmount       = errors.New("credit token: amount must be positive")
	ErrInsufficientBalance = errors.New("credit token: insufficient balance")
	// ErrWeightLocked rejects transfers of balance currently backing gauge
	// voting weight. The voter must decrement gauges first.
	ErrWeightLocked = errors.New("credit token: balance locked behind gauge weight")
	// ErrNoRebaseHolders signals a rebase distribution with nobody opted in.
	ErrNoRebaseHolders = errors.New("credit token: no rebasing holders")
)

const moduleName = "token"

// tokenState is the persistence surface for accounts and global supply.
type tokenState interface {
	GetAccount(addr crypto.Address) (*types.Account, error)
	PutAccount(addr crypto.Address, account *types.Account) error
	GetSupply() (*Supply, error)
	PutSupply(supply *Supply) error
}

// LockView reports the portion of a holder's balance that is pledged as gauge
// voting weight and therefore unavailable for transfer.
type LockView interface {
	Allocated(addr crypto.Address) (*big.Int, error)
}

// Token is the single debt-token type: mintable, burnable, transferable with
// a pre-transfer weight check, and rebasing for opted-in holders. Rebasing
// balances are shares multiplied by a global index that only grows.
type Token struct {
	state  tokenState
	roles  nativecommon.RoleView
	locks  LockView
	pauses nativecommon.PauseView
}

// NewToken constructs an unwired token engine.
func NewToken() *Token {
	return &Token{}
}

// SetState wires the token to the external persistence layer.
func (t *Token) SetState(state tokenState) { t.state = state }

// SetRoles wires the authority consulted for mint and burn.
func (t *Token) SetRoles(roles nativecommon.RoleView) {
	if t == nil {
		return
	}
	t.roles = roles
}

// SetLockView wires the gauge ledger's allocated-weight view.
func (t *Token) SetLockView(locks LockView) {
	if t == nil {
		return
	}
	t.locks = locks
}

// SetPauses wires the module pause view.
func (t *Token) SetPauses(p nativecommon.PauseView) {
	if t == nil {
		return
	}
	t.pauses = p
}

// Mint creates amount new credit units for the recipient.
func (t *Token) Mint(caller, to crypto.Address, amount *big.Int) error {
	if t == nil || t.state == nil {
		return errNilState
	}
	if err := nativecommon.RequireRole(t.roles, nativecommon.RoleTokenMinter, caller); err != nil {
		return err
	}
	if err := nativecommon.Guard(t.pauses, moduleName); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return errInvalidAmount
	}
	supply, err := t.ensureSupply()
	if err != nil {
		return err
	}
	account, err := t.ensureAccount(to)
	if err != nil {
		return err
	}

	if account.RebaseOptOut {
		account.FlatCredit = new(big.Int).Add(account.FlatCredit, amount)
	} else {
		minted := fixed.MulDiv(amount, fixed.Scale(), supply.RebaseIndex)
		if minted.Sign() == 0 {
			minted = new(big.Int).Set(amount)
		}
		account.RebaseShares = new(big.Int).Add(account.RebaseShares, minted)
		supply.RebaseShares = new(big.Int).Add(supply.RebaseShares, minted)
	}
	supply.Total = new(big.Int).Add(supply.Total, amount)

	if err := t.state.PutAccount(to, account); err != nil {
		return err
	}
	return t.state.PutSupply(supply)
}

// Burn destroys amount credit units held by from, shrinking total supply.
// The loss engine uses this on the module's own reserve holdings.
func (t *Token) Burn(caller, from crypto.Address, amount *big.Int) error {
	if t == nil || t.state == nil {
		return errNilState
	}
	if err := nativecommon.RequireRole(t.roles, nativecommon.RoleTokenMinter, caller); err != nil {
		return err
	}
	if err := nativecommon.Guard(t.pauses, moduleName); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return errInvalidAmount
	}
	supply, err := t.ensureSupply()
	if err != nil {
		return err
	}
	account, err := t.ensureAccount(from)
	if err != nil {
		return err
	}
	if err := t.debit(account, supply, amount); err != nil {
		return err
	}
	supply.Total = new(big.Int).Sub(supply.Total, amount)

	if err := t.state.PutAccount(from, account); err != nil {
		return err
	}
	return t.state.PutSupply(supply)
}

// Transfer moves amount between holders after the pre-transfer hook verifies
// the sender's unlocked balance covers it.
func (t *Token) Transfer(from, to crypto.Address, amount *big.Int) error {
	if t == nil || t.state == nil {
		return errNilState
	}
	if err := nativecommon.Guard(t.pauses, moduleName); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return errInvalidAmount
	}
	supply, err := t.ensureSupply()
	if err != nil {
		return err
	}
	sender, err := t.ensureAccount(from)
	if err != nil {
		return err
	}
	if err := t.checkUnlocked(from, sender, supply, amount); err != nil {
		return err
	}
	recipient, err := t.ensureAccount(to)
	if err != nil {
		return err
	}

	if err := t.debit(sender, supply, amount); err != nil {
		return err
	}
	if recipient.RebaseOptOut {
		recipient.FlatCredit = new(big.Int).Add(recipient.FlatCredit, amount)
	} else {
		credited := fixed.MulDiv(amount, fixed.Scale(), supply.RebaseIndex)
		recipient.RebaseShares = new(big.Int).Add(recipient.RebaseShares, credited)
		supply.RebaseShares = new(big.Int).Add(supply.RebaseShares, credited)
	}

	if err := t.state.PutAccount(from, sender); err != nil {
		return err
	}
	if err := t.state.PutAccount(to, recipient); err != nil {
		return err
	}
	return t.state.PutSupply(supply)
}

// DistributeRebase moves amount from the payer into the rebase pool, growing
// every opted-in balance proportionally. Total supply is unchanged; the units
// were already minted to the payer.
func (t *Token) DistributeRebase(from crypto.Address, amount *big.Int) error {
	if t == nil || t.state == nil {
		return errNilState
	}
	if amount == nil || amount.Sign() <= 0 {
		return errInvalidAmount
	}
	supply, err := t.ensureSupply()
	if err != nil {
		return err
	}
	if supply.RebaseShares.Sign() == 0 {
		return ErrNoRebaseHolders
	}
	payer, err := t.ensureAccount(from)
	if err != nil {
		return err
	}
	if err := t.debit(payer, supply, amount); err != nil {
		return err
	}
	increment := fixed.MulDiv(amount, fixed.Scale(), supply.RebaseShares)
	supply.RebaseIndex = new(big.Int).Add(supply.RebaseIndex, increment)

	if err := t.state.PutAccount(from, payer); err != nil {
		return err
	}
	return t.state.PutSupply(supply)
}

// SetRebaseOptOut flips an account between rebasing shares and a flat
// balance, converting at the current index.
func (t *Token) SetRebaseOptOut(addr crypto.Address, optOut bool) error {
	if t == nil || t.state == nil {
		return errNilState
	}
	supply, err := t.ensureSupply()
	if err != nil {
		return err
	}
	account, err := t.ensureAccount(addr)
	if err != nil {
		return err
	}
	if account.RebaseOptOut == optOut {
		return nil
	}
	if optOut {
		value := fixed.MulDiv(account.RebaseShares, supply.RebaseIndex, fixed.Scale())
		supply.RebaseShares = new(big.Int).Sub(supply.RebaseShares, account.RebaseShares)
		account.RebaseShares = big.NewInt(0)
		account.FlatCredit = new(big.Int).Add(account.FlatCredit, value)
	} else {
		shares := fixed.MulDiv(account.FlatCredit, fixed.Scale(), supply.RebaseIndex)
		supply.RebaseShares = new(big.Int).Add(supply.RebaseShares, shares)
		account.RebaseShares = new(big.Int).Add(account.RebaseShares, shares)
		account.FlatCredit = big.NewInt(0)
	}
	account.RebaseOptOut = optOut

	if err := t.state.PutAccount(addr, account); err != nil {
		return err
	}
	return t.state.PutSupply(supply)
}

// BalanceOf reports the holder's current credit balance.
func (t *Token) BalanceOf(addr crypto.Address) (*big.Int, error) {
	if t == nil || t.state == nil {
		return nil, errNilState
	}
	supply, err := t.ensureSupply()
	if err != nil {
		return nil, err
	}
	account, err := t.ensureAccount(addr)
	if err != nil {
		return nil, err
	}
	return balance(account, supply), nil
}

// VoteBudget implements the gauge ledger's BudgetSource: the voting budget is
// the holder's full balance.
func (t *Token) VoteBudget(voter crypto.Address) (*big.Int, error) {
	return t.BalanceOf(voter)
}

// TotalSupply reports the circulating nominal supply.
func (t *Token) TotalSupply() (*big.Int, error) {
	if t == nil || t.state == nil {
		return nil, errNilState
	}
	supply, err := t.ensureSupply()
	if err != nil {
		return nil, err
	}
	return fixed.Copy(supply.Total), nil
}

func (t *Token) checkUnlocked(addr crypto.Address, account *types.Account, supply *Supply, amount *big.Int) error {
	held := balance(account, supply)
	if held.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	if t.locks == nil {
		return nil
	}
	locked, err := t.locks.Allocated(addr)
	if err != nil {
		return err
	}
	unlocked := new(big.Int).Sub(held, fixed.Copy(locked))
	if unlocked.Cmp(amount) < 0 {
		return ErrWeightLocked
	}
	return nil
}

// debit removes amount from the account, rounding share debits up so value is
// never created by truncation.
func (t *Token) debit(account *types.Account, supply *Supply, amount *big.Int) error {
	if account.RebaseOptOut {
		if account.FlatCredit.Cmp(amount) < 0 {
			return ErrInsufficientBalance
		}
		account.FlatCredit = new(big.Int).Sub(account.FlatCredit, amount)
		return nil
	}
	if balance(account, supply).Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	shares := divCeil(new(big.Int).Mul(amount, fixed.Scale()), supply.RebaseIndex)
	if shares.Cmp(account.RebaseShares) > 0 {
		shares = new(big.Int).Set(account.RebaseShares)
	}
	account.RebaseShares = new(big.Int).Sub(account.RebaseShares, shares)
	supply.RebaseShares = new(big.Int).Sub(supply.RebaseShares, shares)
	return nil
}

func (t *Token) ensureSupply() (*Supply, error) {
	supply, err := t.state.GetSupply()
	if err != nil {
		return nil, err
	}
	if supply == nil {
		supply = &Supply{}
	}
	supply.EnsureDefaults()
	return supply, nil
}

func (t *Token) ensureAccount(addr crypto.Address) (*types.Account, error) {
	account, err := t.state.GetAccount(addr)
	if err != nil {
		return nil, err
	}
	if account == nil {
		account = &types.Account{}
	}
	account.EnsureDefaults()
	return account, nil
}

func balance(account *types.Account, supply *Supply) *big.Int {
	if account.RebaseOptOut {
		return fixed.Copy(account.FlatCredit)
	}
	return fixed.MulDiv(account.RebaseShares, supply.RebaseIndex, fixed.Scale())
}

func divCeil(num, den *big.Int) *big.Int {
	if den == nil || den.Sign() == 0 {
		return big.NewInt(0)
	}
	quo, rem := new(big.Int).QuoRem(num, den, new(big.Int))
	if rem.Sign() != 0 {
		quo.Add(quo, big.NewInt(1))
	}
	return quo
}

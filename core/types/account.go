package types

import "math/big"

// Account is the balance-bearing record for a single address. Rebasing
// holders carry shares against the token's global rebase index; opted-out
// holders carry a flat credit balance instead.
type Account struct {
	Nonce uint64 `json:"nonce"`
	// RebaseShares is the share balance for rebasing holders. The token
	// converts it to credit units through the rebase index.
	RebaseShares *big.Int `json:"rebaseShares"`
	// FlatCredit is the unscaled balance for holders opted out of rebasing.
	FlatCredit *big.Int `json:"flatCredit"`
	// RebaseOptOut marks holders that receive no rebase distributions.
	RebaseOptOut bool `json:"rebaseOptOut,omitempty"`
}

// EnsureDefaults populates nil big.Int fields so serialisation is safe.
func (a *Account) EnsureDefaults() {
	if a == nil {
		return
	}
	if a.RebaseShares == nil {
		a.RebaseShares = big.NewInt(0)
	}
	if a.FlatCredit == nil {
		a.FlatCredit = big.NewInt(0)
	}
}

// Clone returns a deep copy of the account.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	clone := &Account{Nonce: a.Nonce, RebaseOptOut: a.RebaseOptOut}
	if a.RebaseShares != nil {
		clone.RebaseShares = new(big.Int).Set(a.RebaseShares)
	}
	if a.FlatCredit != nil {
		clone.FlatCredit = new(big.Int).Set(a.FlatCredit)
	}
	return clone
}

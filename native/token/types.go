package token

import (
	"math/big"

	"creditnet/native/fixed"
)

// Supply is the token's global accounting record. RebaseIndex starts at 1e18
// and only grows; the value of one rebase share is RebaseIndex/1e18 credit.
type Supply struct {
	// Total is the circulating nominal supply across flat and rebasing
	// holders, maintained explicitly on mint and burn.
	Total *big.Int
	// RebaseShares is the sum of all opted-in holders' share balances.
	RebaseShares *big.Int
	// RebaseIndex converts shares to credit units, scaled by 1e18.
	RebaseIndex *big.Int
}

// EnsureDefaults populates nil fields so serialisation is safe.
func (s *Supply) EnsureDefaults() {
	if s == nil {
		return
	}
	if s.Total == nil {
		s.Total = big.NewInt(0)
	}
	if s.RebaseShares == nil {
		s.RebaseShares = big.NewInt(0)
	}
	if s.RebaseIndex == nil || s.RebaseIndex.Sign() == 0 {
		s.RebaseIndex = fixed.One()
	}
}

// Clone returns a deep copy of the supply record.
func (s *Supply) Clone() *Supply {
	if s == nil {
		return nil
	}
	clone := &Supply{
		Total:        fixed.Copy(s.Total),
		RebaseShares: fixed.Copy(s.RebaseShares),
		RebaseIndex:  fixed.Copy(s.RebaseIndex),
	}
	clone.EnsureDefaults()
	return clone
}

package pnl

import (
	"errors"
	"math/big"

	"creditnet/crypto"
	"creditnet/native/fixed"
)

// Ledger is the process-wide P&L accounting record. The multiplier is the
// redemption value of one nominal credit unit, scaled by 1e18, initialised to
// 1.0 and non-increasing for the system's entire life. The surplus buffer is
// the reserve of credit units drained before losses touch the multiplier.
type Ledger struct {
	Multiplier    *big.Int
	SurplusBuffer *big.Int
}

// EnsureDefaults populates nil fields so serialisation is safe. A zero
// multiplier is a legitimate persisted value after a total loss; only a nil
// multiplier means the ledger was never initialised.
func (l *Ledger) EnsureDefaults() {
	if l == nil {
		return
	}
	if l.Multiplier == nil {
		l.Multiplier = fixed.One()
	}
	if l.SurplusBuffer == nil {
		l.SurplusBuffer = big.NewInt(0)
	}
}

// Clone returns a deep copy of the ledger.
func (l *Ledger) Clone() *Ledger {
	if l == nil {
		return nil
	}
	clone := &Ledger{SurplusBuffer: fixed.Copy(l.SurplusBuffer)}
	if l.Multiplier != nil {
		clone.Multiplier = new(big.Int).Set(l.Multiplier)
	}
	clone.EnsureDefaults()
	return clone
}

// SharingConfig is the four-way profit split. Shares are 1e18-scaled and must
// sum to exactly 1.0; a non-zero other share requires a recipient and vice
// versa.
type SharingConfig struct {
	ReserveShare *big.Int
	RebaseShare  *big.Int
	GaugeShare   *big.Int
	OtherShare   *big.Int
	Recipient    crypto.Address
}

// ErrInvalidConfig rejects sharing configurations violating the share-sum or
// recipient invariants.
var ErrInvalidConfig = errors.New("pnl engine: invalid profit sharing config")

// DefaultSharingConfig routes all profit to the rebase pool.
func DefaultSharingConfig() *SharingConfig {
	return &SharingConfig{
		ReserveShare: big.NewInt(0),
		RebaseShare:  fixed.One(),
		GaugeShare:   big.NewInt(0),
		OtherShare:   big.NewInt(0),
	}
}

// Validate checks the share-sum and recipient invariants without mutating the
// config.
func (c *SharingConfig) Validate() error {
	if c == nil {
		return ErrInvalidConfig
	}
	shares := []*big.Int{c.ReserveShare, c.RebaseShare, c.GaugeShare, c.OtherShare}
	sum := big.NewInt(0)
	for _, share := range shares {
		if share == nil || share.Sign() < 0 {
			return ErrInvalidConfig
		}
		sum.Add(sum, share)
	}
	if sum.Cmp(fixed.One()) != 0 {
		return ErrInvalidConfig
	}
	otherSet := c.OtherShare != nil && c.OtherShare.Sign() > 0
	if otherSet != !c.Recipient.IsZero() {
		return ErrInvalidConfig
	}
	return nil
}

// Clone returns a deep copy of the config.
func (c *SharingConfig) Clone() *SharingConfig {
	if c == nil {
		return nil
	}
	return &SharingConfig{
		ReserveShare: fixed.Copy(c.ReserveShare),
		RebaseShare:  fixed.Copy(c.RebaseShare),
		GaugeShare:   fixed.Copy(c.GaugeShare),
		OtherShare:   fixed.Copy(c.OtherShare),
		Recipient:    c.Recipient,
	}
}

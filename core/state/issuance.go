package state

import (
	"math/big"

	"creditnet/storage"
)

const (
	prefixIssuance   = "issuance/gauge/"
	keyTotalIssuance = "issuance/total"
)

// IssuanceStore persists the per-gauge outstanding issuance figures reported
// by the external lending module. The gauge ledger reads them through the
// IssuanceSource interface; this engine never computes them.
type IssuanceStore struct {
	db storage.Database
}

// NewIssuanceStore wraps the supplied database.
func NewIssuanceStore(db storage.Database) *IssuanceStore {
	return &IssuanceStore{db: db}
}

// Issuance returns the outstanding issuance attributed to the gauge.
func (s *IssuanceStore) Issuance(gauge string) (*big.Int, error) {
	return (&State{db: s.db}).loadBig(prefixIssuance + gauge)
}

// TotalIssuance returns the outstanding issuance across all gauges.
func (s *IssuanceStore) TotalIssuance() (*big.Int, error) {
	return (&State{db: s.db}).loadBig(keyTotalIssuance)
}

// SetIssuance records a gauge's issuance and keeps the running total
// consistent with the per-gauge figures.
func (s *IssuanceStore) SetIssuance(gauge string, amount *big.Int) error {
	st := &State{db: s.db}
	current, err := st.loadBig(prefixIssuance + gauge)
	if err != nil {
		return err
	}
	total, err := st.loadBig(keyTotalIssuance)
	if err != nil {
		return err
	}
	next := nonNil(amount)
	total = new(big.Int).Sub(total, current)
	total.Add(total, next)
	if err := st.store(prefixIssuance+gauge, next); err != nil {
		return err
	}
	return st.store(keyTotalIssuance, total)
}

// Package state persists the P&L engine records as RLP-encoded values in a
// key-value store. One State instance backs the pnl engine, the gauge ledger,
// and the debt token; callers serialize mutating operations.
package state

import (
	"encoding/hex"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/rlp"

	"creditnet/core/types"
	"creditnet/crypto"
	"creditnet/native/gauges"
	"creditnet/native/pnl"
	"creditnet/native/token"
	"creditnet/storage"
)

const (
	keyLedger        = "pnl/ledger"
	keySharingConfig = "pnl/sharing"
	keySupply        = "token/supply"
	keyTotalWeight   = "weights/total"

	prefixGauge          = "gauge/"
	prefixAllocation     = "alloc/"
	prefixVoterGauges    = "voterset/"
	prefixVoterAllocated = "voteralloc/"
	prefixAccount        = "acct/"
)

// State adapts a storage.Database to the engines' persistence interfaces.
type State struct {
	db storage.Database
}

// New wraps the supplied database.
func New(db storage.Database) *State {
	return &State{db: db}
}

// --- pnl engine state ---

type ledgerRecord struct {
	Multiplier    *big.Int
	SurplusBuffer *big.Int
}

// GetLedger loads the global multiplier and surplus buffer.
func (s *State) GetLedger() (*pnl.Ledger, error) {
	var rec ledgerRecord
	ok, err := s.load(keyLedger, &rec)
	if err != nil || !ok {
		return nil, err
	}
	return &pnl.Ledger{Multiplier: rec.Multiplier, SurplusBuffer: rec.SurplusBuffer}, nil
}

// PutLedger stores the global multiplier and surplus buffer.
func (s *State) PutLedger(ledger *pnl.Ledger) error {
	if ledger == nil {
		return errors.New("state: nil ledger")
	}
	ledger.EnsureDefaults()
	return s.store(keyLedger, &ledgerRecord{
		Multiplier:    ledger.Multiplier,
		SurplusBuffer: ledger.SurplusBuffer,
	})
}

type sharingRecord struct {
	ReserveShare    *big.Int
	RebaseShare     *big.Int
	GaugeShare      *big.Int
	OtherShare      *big.Int
	RecipientPrefix string
	RecipientBytes  []byte
}

// GetSharingConfig loads the profit split, nil when never configured.
func (s *State) GetSharingConfig() (*pnl.SharingConfig, error) {
	var rec sharingRecord
	ok, err := s.load(keySharingConfig, &rec)
	if err != nil || !ok {
		return nil, err
	}
	config := &pnl.SharingConfig{
		ReserveShare: rec.ReserveShare,
		RebaseShare:  rec.RebaseShare,
		GaugeShare:   rec.GaugeShare,
		OtherShare:   rec.OtherShare,
	}
	if len(rec.RecipientBytes) == 20 {
		config.Recipient = crypto.NewAddress(crypto.AddressPrefix(rec.RecipientPrefix), rec.RecipientBytes)
	}
	return config, nil
}

// PutSharingConfig stores the profit split wholesale.
func (s *State) PutSharingConfig(config *pnl.SharingConfig) error {
	if config == nil {
		return errors.New("state: nil sharing config")
	}
	rec := sharingRecord{
		ReserveShare: nonNil(config.ReserveShare),
		RebaseShare:  nonNil(config.RebaseShare),
		GaugeShare:   nonNil(config.GaugeShare),
		OtherShare:   nonNil(config.OtherShare),
	}
	if !config.Recipient.IsZero() {
		rec.RecipientPrefix = string(config.Recipient.Prefix())
		rec.RecipientBytes = config.Recipient.Bytes()
	}
	return s.store(keySharingConfig, &rec)
}

// --- gauge ledger state ---

type gaugeRecord struct {
	ID          string
	TotalWeight *big.Int
	RewardIndex *big.Int
}

// GetGauge loads a gauge record, nil when the gauge has never been touched.
func (s *State) GetGauge(id string) (*gauges.Gauge, error) {
	var rec gaugeRecord
	ok, err := s.load(prefixGauge+id, &rec)
	if err != nil || !ok {
		return nil, err
	}
	return &gauges.Gauge{ID: rec.ID, TotalWeight: rec.TotalWeight, RewardIndex: rec.RewardIndex}, nil
}

// PutGauge stores a gauge record.
func (s *State) PutGauge(gauge *gauges.Gauge) error {
	if gauge == nil {
		return errors.New("state: nil gauge")
	}
	gauge.EnsureDefaults()
	return s.store(prefixGauge+gauge.ID, &gaugeRecord{
		ID:          gauge.ID,
		TotalWeight: gauge.TotalWeight,
		RewardIndex: gauge.RewardIndex,
	})
}

type allocationRecord struct {
	VoterPrefix  string
	VoterBytes   []byte
	Gauge        string
	Weight       *big.Int
	SettledIndex *big.Int
	Unclaimed    *big.Int
}

// GetAllocation loads a (voter, gauge) allocation, nil when absent.
func (s *State) GetAllocation(voter crypto.Address, gauge string) (*gauges.Allocation, error) {
	var rec allocationRecord
	ok, err := s.load(allocationKey(voter, gauge), &rec)
	if err != nil || !ok {
		return nil, err
	}
	return &gauges.Allocation{
		Voter:        crypto.NewAddress(crypto.AddressPrefix(rec.VoterPrefix), rec.VoterBytes),
		Gauge:        rec.Gauge,
		Weight:       rec.Weight,
		SettledIndex: rec.SettledIndex,
		Unclaimed:    rec.Unclaimed,
	}, nil
}

// PutAllocation stores a (voter, gauge) allocation.
func (s *State) PutAllocation(alloc *gauges.Allocation) error {
	if alloc == nil {
		return errors.New("state: nil allocation")
	}
	alloc.EnsureDefaults()
	return s.store(allocationKey(alloc.Voter, alloc.Gauge), &allocationRecord{
		VoterPrefix:  string(alloc.Voter.Prefix()),
		VoterBytes:   alloc.Voter.Bytes(),
		Gauge:        alloc.Gauge,
		Weight:       alloc.Weight,
		SettledIndex: alloc.SettledIndex,
		Unclaimed:    alloc.Unclaimed,
	})
}

// VoterGauges returns the voter's gauge set in first-allocation order.
func (s *State) VoterGauges(voter crypto.Address) ([]string, error) {
	var set []string
	if _, err := s.load(prefixVoterGauges+addrKey(voter), &set); err != nil {
		return nil, err
	}
	return set, nil
}

// AppendVoterGauge adds a gauge to the voter's set if not already present.
func (s *State) AppendVoterGauge(voter crypto.Address, gauge string) error {
	set, err := s.VoterGauges(voter)
	if err != nil {
		return err
	}
	for _, existing := range set {
		if existing == gauge {
			return nil
		}
	}
	set = append(set, gauge)
	return s.store(prefixVoterGauges+addrKey(voter), set)
}

// TotalWeight returns the global weight across all gauges.
func (s *State) TotalWeight() (*big.Int, error) {
	return s.loadBig(keyTotalWeight)
}

// PutTotalWeight stores the global weight.
func (s *State) PutTotalWeight(total *big.Int) error {
	return s.store(keyTotalWeight, nonNil(total))
}

// VoterAllocated returns the voter's total allocated weight.
func (s *State) VoterAllocated(voter crypto.Address) (*big.Int, error) {
	return s.loadBig(prefixVoterAllocated + addrKey(voter))
}

// PutVoterAllocated stores the voter's total allocated weight.
func (s *State) PutVoterAllocated(voter crypto.Address, total *big.Int) error {
	return s.store(prefixVoterAllocated+addrKey(voter), nonNil(total))
}

// --- token state ---

// GetAccount loads a balance record, nil when the address has never held.
func (s *State) GetAccount(addr crypto.Address) (*types.Account, error) {
	var account types.Account
	ok, err := s.load(prefixAccount+addrKey(addr), &account)
	if err != nil || !ok {
		return nil, err
	}
	return &account, nil
}

// PutAccount stores a balance record.
func (s *State) PutAccount(addr crypto.Address, account *types.Account) error {
	if account == nil {
		return errors.New("state: nil account")
	}
	account.EnsureDefaults()
	return s.store(prefixAccount+addrKey(addr), account)
}

// GetSupply loads the global token supply record, nil before first mint.
func (s *State) GetSupply() (*token.Supply, error) {
	var supply token.Supply
	ok, err := s.load(keySupply, &supply)
	if err != nil || !ok {
		return nil, err
	}
	return &supply, nil
}

// PutSupply stores the global token supply record.
func (s *State) PutSupply(supply *token.Supply) error {
	if supply == nil {
		return errors.New("state: nil supply")
	}
	supply.EnsureDefaults()
	return s.store(keySupply, supply)
}

// --- helpers ---

func (s *State) load(key string, out interface{}) (bool, error) {
	raw, err := s.db.Get([]byte(key))
	if errors.Is(err, storage.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := rlp.DecodeBytes(raw, out); err != nil {
		return false, err
	}
	return true, nil
}

func (s *State) store(key string, value interface{}) error {
	raw, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	return s.db.Put([]byte(key), raw)
}

func (s *State) loadBig(key string) (*big.Int, error) {
	value := new(big.Int)
	ok, err := s.load(key, value)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return value, nil
}

func allocationKey(voter crypto.Address, gauge string) string {
	return prefixAllocation + gauge + "/" + addrKey(voter)
}

func addrKey(addr crypto.Address) string {
	return hex.EncodeToString(addr.Bytes())
}

func nonNil(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return v
}

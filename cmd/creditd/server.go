package main

import (
	"encoding/json"
	"errors"
	"log/slog"
	"math/big"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"creditnet/crypto"
	nativecommon "creditnet/native/common"
	"creditnet/native/gauges"
	"creditnet/native/pnl"
	"creditnet/native/token"
	"creditnet/observability"
)

// server exposes the engine surface over HTTP. Mutations are serialized
// behind a single mutex; the engines themselves are single-writer.
type server struct {
	mu       sync.Mutex
	log      *slog.Logger
	engine   *pnl.Engine
	ledger   *gauges.Ledger
	token    *token.Token
	issuance IssuanceSetter
	metrics  *observability.PnLMetrics
}

func newServer(log *slog.Logger, engine *pnl.Engine, ledger *gauges.Ledger, tok *token.Token, issuance IssuanceSetter, metrics *observability.PnLMetrics) *server {
	return &server{log: log, engine: engine, ledger: ledger, token: tok, issuance: issuance, metrics: metrics}
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/pnl/notify", s.handleNotify)
		r.Get("/pnl/status", s.handleStatus)
		r.Post("/pnl/sharing", s.handleSetSharing)
		r.Post("/reserve/donate", s.handleDonate)
		r.Post("/reserve/withdraw", s.handleWithdraw)
		r.Post("/issuance/{gauge}", s.handleSetIssuance)
		r.Post("/gauges/{gauge}/increment", s.handleIncrement)
		r.Post("/gauges/{gauge}/decrement", s.handleDecrement)
		r.Post("/rewards/claim", s.handleClaim)
		r.Get("/rewards/pending/{voter}", s.handlePending)
		r.Post("/token/mint", s.handleMint)
		r.Get("/token/supply", s.handleSupply)
		r.Get("/token/balance/{addr}", s.handleBalance)
	})
	return r
}

type notifyRequest struct {
	Caller string `json:"caller"`
	Gauge  string `json:"gauge"`
	Amount string `json:"amount"`
}

func (s *server) handleNotify(w http.ResponseWriter, r *http.Request) {
	var req notifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	caller, err := crypto.DecodeAddress(req.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	amount, ok := new(big.Int).SetString(req.Amount, 10)
	if !ok {
		writeError(w, http.StatusBadRequest, errors.New("invalid amount"))
		return
	}

	s.mu.Lock()
	err = s.engine.NotifyPnL(caller, req.Gauge, amount)
	s.mu.Unlock()
	if err != nil {
		s.writeEngineError(w, err)
		return
	}

	// Loss and routed-profit counters are fed by the event sink.
	s.publishStatus()
	writeJSON(w, http.StatusOK, map[string]string{"status": "applied"})
}

func (s *server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	multiplier, err := s.engine.Multiplier()
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	surplus, err := s.engine.SurplusBuffer()
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	supply, err := s.token.TotalSupply()
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"multiplier":    multiplier.String(),
		"surplusBuffer": surplus.String(),
		"totalSupply":   supply.String(),
	})
}

type sharingRequest struct {
	Caller       string `json:"caller"`
	ReserveShare string `json:"reserveShare"`
	RebaseShare  string `json:"rebaseShare"`
	GaugeShare   string `json:"gaugeShare"`
	OtherShare   string `json:"otherShare"`
	Recipient    string `json:"recipient,omitempty"`
}

func (s *server) handleSetSharing(w http.ResponseWriter, r *http.Request) {
	var req sharingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	caller, err := crypto.DecodeAddress(req.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	config := &pnl.SharingConfig{}
	if config.ReserveShare, err = parseBig(req.ReserveShare); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if config.RebaseShare, err = parseBig(req.RebaseShare); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if config.GaugeShare, err = parseBig(req.GaugeShare); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if config.OtherShare, err = parseBig(req.OtherShare); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Recipient != "" {
		if config.Recipient, err = crypto.DecodeAddress(req.Recipient); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
	}

	s.mu.Lock()
	err = s.engine.SetSharingConfig(caller, config)
	s.mu.Unlock()
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

type reserveRequest struct {
	Caller  string `json:"caller"`
	Account string `json:"account"`
	Amount  string `json:"amount"`
}

func (s *server) handleDonate(w http.ResponseWriter, r *http.Request) {
	s.handleReserveOp(w, r, true)
}

func (s *server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	s.handleReserveOp(w, r, false)
}

func (s *server) handleReserveOp(w http.ResponseWriter, r *http.Request, donate bool) {
	var req reserveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	caller, err := crypto.DecodeAddress(req.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	account, err := crypto.DecodeAddress(req.Account)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	amount, err := parseBig(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	s.mu.Lock()
	if donate {
		err = s.engine.DonateToReserve(caller, account, amount)
	} else {
		err = s.engine.WithdrawFromReserve(caller, account, amount)
	}
	s.mu.Unlock()
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.publishStatus()
	writeJSON(w, http.StatusOK, map[string]string{"status": "applied"})
}

type issuanceRequest struct {
	Caller string `json:"caller"`
	Amount string `json:"amount"`
}

// IssuanceSetter is implemented by the issuance store wired in main.
type IssuanceSetter interface {
	SetIssuance(gauge string, amount *big.Int) error
}

func (s *server) handleSetIssuance(w http.ResponseWriter, r *http.Request) {
	var req issuanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if _, err := crypto.DecodeAddress(req.Caller); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	amount, err := parseBig(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if s.issuance == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("issuance store not configured"))
		return
	}
	s.mu.Lock()
	err = s.issuance.SetIssuance(chi.URLParam(r, "gauge"), amount)
	s.mu.Unlock()
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "recorded"})
}

type weightRequest struct {
	Voter string `json:"voter"`
	Delta string `json:"delta"`
}

func (s *server) handleIncrement(w http.ResponseWriter, r *http.Request) {
	s.handleWeightOp(w, r, true)
}

func (s *server) handleDecrement(w http.ResponseWriter, r *http.Request) {
	s.handleWeightOp(w, r, false)
}

func (s *server) handleWeightOp(w http.ResponseWriter, r *http.Request, increment bool) {
	var req weightRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	voter, err := crypto.DecodeAddress(req.Voter)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	delta, err := parseBig(req.Delta)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	gauge := chi.URLParam(r, "gauge")

	s.mu.Lock()
	if increment {
		err = s.ledger.Increment(voter, gauge, delta)
	} else {
		err = s.ledger.Decrement(voter, gauge, delta)
	}
	s.mu.Unlock()
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "applied"})
}

type claimRequest struct {
	Voter string `json:"voter"`
}

func (s *server) handleClaim(w http.ResponseWriter, r *http.Request) {
	var req claimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	voter, err := crypto.DecodeAddress(req.Voter)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	s.mu.Lock()
	total, err := s.ledger.Claim(voter)
	s.mu.Unlock()
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"claimed": total.String()})
}

func (s *server) handlePending(w http.ResponseWriter, r *http.Request) {
	voter, err := crypto.DecodeAddress(chi.URLParam(r, "voter"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	s.mu.Lock()
	pending, total, err := s.ledger.Pending(voter)
	s.mu.Unlock()
	if err != nil {
		s.writeEngineError(w, err)
		return
	}

	entries := make([]map[string]string, 0, len(pending))
	for _, entry := range pending {
		entries = append(entries, map[string]string{
			"gauge":  entry.Gauge,
			"amount": entry.Amount.String(),
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"gauges": entries,
		"total":  total.String(),
	})
}

type mintRequest struct {
	Caller string `json:"caller"`
	To     string `json:"to"`
	Amount string `json:"amount"`
}

func (s *server) handleMint(w http.ResponseWriter, r *http.Request) {
	var req mintRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	caller, err := crypto.DecodeAddress(req.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	to, err := crypto.DecodeAddress(req.To)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	amount, err := parseBig(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	s.mu.Lock()
	err = s.token.Mint(caller, to, amount)
	s.mu.Unlock()
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "minted"})
}

func (s *server) handleSupply(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	supply, err := s.token.TotalSupply()
	s.mu.Unlock()
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"totalSupply": supply.String()})
}

func (s *server) handleBalance(w http.ResponseWriter, r *http.Request) {
	addr, err := crypto.DecodeAddress(chi.URLParam(r, "addr"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.mu.Lock()
	balance, err := s.token.BalanceOf(addr)
	s.mu.Unlock()
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"balance": balance.String()})
}

func (s *server) publishStatus() {
	multiplier, err := s.engine.Multiplier()
	if err == nil {
		s.metrics.SetMultiplier(multiplier)
	}
	surplus, err := s.engine.SurplusBuffer()
	if err == nil {
		s.metrics.SetSurplus(surplus)
	}
}

func (s *server) writeEngineError(w http.ResponseWriter, err error) {
	status := http.StatusBadRequest
	switch {
	case errors.Is(err, nativecommon.ErrUnauthorized):
		status = http.StatusForbidden
	case errors.Is(err, nativecommon.ErrModulePaused):
		status = http.StatusServiceUnavailable
	case errors.Is(err, gauges.ErrDebtCeiling),
		errors.Is(err, pnl.ErrInsufficientReserve),
		errors.Is(err, pnl.ErrTreasuryUnderfunded),
		errors.Is(err, gauges.ErrInsufficientBudget),
		errors.Is(err, gauges.ErrInsufficientWeight),
		errors.Is(err, token.ErrInsufficientBalance),
		errors.Is(err, token.ErrWeightLocked),
		errors.Is(err, pnl.ErrLossExceedsSupply):
		status = http.StatusConflict
	}
	s.log.Warn("request rejected", "err", err)
	writeError(w, status, err)
}

func parseBig(raw string) (*big.Int, error) {
	value, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return nil, errors.New("invalid integer value")
	}
	return value, nil
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

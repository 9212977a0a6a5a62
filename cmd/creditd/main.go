package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"creditnet/config"
	"creditnet/core/state"
	"creditnet/crypto"
	nativecommon "creditnet/native/common"
	"creditnet/native/gauges"
	"creditnet/native/pnl"
	"creditnet/native/token"
	"creditnet/observability"
	"creditnet/observability/logging"
	"creditnet/storage"
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			os.Stderr.WriteString(err.Error() + "\n")
			os.Exit(1)
		}
		cfg = config.Default()
	}

	logger := logging.Setup("creditd", cfg.Environment)

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		logger.Error("open database", "path", cfg.DataDir, "err", err)
		os.Exit(1)
	}
	defer db.Close()

	moduleAddr := moduleAddress(cfg)
	roles, err := cfg.BuildRoles()
	if err != nil {
		logger.Error("build roles", "err", err)
		os.Exit(1)
	}
	// The engine treasury mints and burns its own reserve holdings.
	roles.Grant(nativecommon.RoleTokenMinter, moduleAddr)
	pauses := cfg.BuildPauses()

	st := state.New(db)
	issuance := state.NewIssuanceStore(db)
	metrics := observability.PnL()
	sink := newEventSink(logger, metrics)

	tok := token.NewToken()
	tok.SetState(st)
	tok.SetRoles(roles)
	tok.SetPauses(pauses)

	ledger := gauges.NewLedger()
	ledger.SetState(st)
	ledger.SetBudgetSource(tok)
	ledger.SetPauses(pauses)
	ledger.SetIssuanceSource(issuance)
	ledger.SetEmitter(sink)

	engine := pnl.NewEngine(moduleAddr)
	engine.SetState(st)
	engine.SetToken(tok)
	engine.SetRewardSink(ledger)
	engine.SetRoles(roles)
	engine.SetPauses(pauses)
	engine.SetEmitter(sink)

	ledger.SetRewardPayer(engine)
	tok.SetLockView(ledger)

	// The treasury holds flat balances so buffer accounting stays exact.
	if err := tok.SetRebaseOptOut(moduleAddr, true); err != nil {
		logger.Error("configure treasury account", "err", err)
		os.Exit(1)
	}

	srv := newServer(logger, engine, ledger, tok, issuance, metrics)

	httpServer := &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           srv.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("listening", "addr", cfg.ListenAddress)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", "err", err)
	}
	logger.Info("stopped")
}

func moduleAddress(cfg *config.Config) crypto.Address {
	if cfg.ModuleAddress != "" {
		if addr, err := crypto.DecodeAddress(cfg.ModuleAddress); err == nil {
			return addr
		}
	}
	seed := make([]byte, 20)
	copy(seed, []byte("creditnet/pnl/module"))
	return crypto.NewAddress(crypto.GaugePrefix, seed)
}

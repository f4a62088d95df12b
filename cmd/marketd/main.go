package main

import (
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"nftmarket/config"
	"nftmarket/core/events"
	"nftmarket/core/state"
	"nftmarket/ledger"
	"nftmarket/native/market"
	"nftmarket/observability"
	"nftmarket/observability/logging"
	"nftmarket/rpc"
	"nftmarket/storage"
)

const envName = "NFTMARKET_ENV"

// defaultMarketAddress is the escrow identity used when the config does not
// name one. Sellers approve this address for token transfers.
var defaultMarketAddress = [20]byte{0x6d, 0x61, 0x72, 0x6b, 0x65, 0x74}

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv(envName))
	logger := logging.Setup("marketd", env)

	cfg, err := config.Load(*configFile)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	db, err := openDatabase(cfg)
	if err != nil {
		panic(fmt.Sprintf("Failed to open database: %v", err))
	}
	defer db.Close()

	manager := state.NewManager(db)
	if err := seedState(manager, cfg); err != nil {
		logger.Error("Failed to seed state", slog.Any("error", err))
		os.Exit(1)
	}

	marketAddr := defaultMarketAddress
	if strings.TrimSpace(cfg.MarketAddress) != "" {
		marketAddr, err = config.ParseAddress(cfg.MarketAddress)
		if err != nil {
			logger.Error("Invalid market address", slog.Any("error", err))
			os.Exit(1)
		}
	}

	engine := market.NewEngine()
	engine.SetState(manager)
	engine.SetTokenLedger(ledger.NewTokenBook(manager))
	engine.SetAssetLedger(ledger.NewAssetBook(manager))
	engine.SetMarketAddress(marketAddr)
	engine.SetMinAuctionDuration(cfg.MinAuctionDuration)
	engine.SetEmitter(events.MultiEmitter{observability.NewEmitter()})

	if addr := strings.TrimSpace(cfg.MetricsAddress); addr != "" {
		go serveMetrics(logger, addr)
	}

	server := rpc.NewServer(engine)
	logger.Info("marketd ready", slog.String("rpc", cfg.RPCAddress), slog.String("backend", cfg.Backend))
	if err := server.Start(cfg.RPCAddress); err != nil {
		logger.Error("RPC server stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

func openDatabase(cfg *config.Config) (storage.Database, error) {
	switch cfg.Backend {
	case config.BackendMemory:
		return storage.NewMemDB(), nil
	case config.BackendBolt:
		if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
			return nil, err
		}
		return storage.NewBoltDB(filepath.Join(cfg.DataDir, "market.db"))
	default:
		return storage.NewLevelDB(cfg.DataDir)
	}
}

// seedState applies the operator roster and commission policy from the config.
// Config values only fill in parameters no operator has set yet, so a restart
// does not override runtime changes.
func seedState(manager *state.Manager, cfg *config.Config) error {
	for _, raw := range cfg.OperatorAddresses {
		operator, err := config.ParseAddress(raw)
		if err != nil {
			return err
		}
		if err := manager.SetRole(market.RoleOperator, operator); err != nil {
			return err
		}
	}
	if strings.TrimSpace(cfg.CommissionWallet) != "" {
		if _, ok, err := manager.CommissionWallet(); err != nil {
			return err
		} else if !ok {
			wallet, err := config.ParseAddress(cfg.CommissionWallet)
			if err != nil {
				return err
			}
			if err := manager.SetCommissionWallet(wallet); err != nil {
				return err
			}
		}
	}
	if _, ok, err := manager.CommissionPercent(); err != nil {
		return err
	} else if !ok {
		if err := manager.SetCommissionPercent(cfg.CommissionPercent); err != nil {
			return err
		}
	}
	return nil
}

func serveMetrics(logger *slog.Logger, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error("metrics server stopped", slog.Any("error", err))
	}
}

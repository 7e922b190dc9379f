// Command relay runs the multi-chain transaction relay: it loads
// config, opens the repository, registers one Chain Monitor per
// configured chain, and serves the HTTP front-end until terminated.
package main

import (
	"context"
	"crypto/ecdsa"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog/log"

	"github.com/relaynet/txrelay/internal/chain"
	"github.com/relaynet/txrelay/internal/config"
	"github.com/relaynet/txrelay/internal/httpapi"
	"github.com/relaynet/txrelay/internal/logging"
	"github.com/relaynet/txrelay/internal/metrics"
	"github.com/relaynet/txrelay/internal/relay"
	"github.com/relaynet/txrelay/internal/repository"
)

func main() {
	cfg, err := config.Load("config.yaml")
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	logger := logging.New(cfg.Logging)
	logger.Info().Msg("starting txrelay")

	privKey, err := crypto.HexToECDSA(cfg.Relay.PrivateKeyHex)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid PK")
	}

	m := metrics.New()

	repo, err := repository.Open(cfg.Database.URL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open repository")
	}
	defer repo.Close()

	facade := relay.New(repo, logger, m)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for _, chainCfg := range cfg.Relay.Chains {
		if err := registerChain(ctx, facade, chainCfg, privKey); err != nil {
			logger.Fatal().Err(err).Str("chain", chainCfg.Name).Msg("failed to register chain")
		}
		logger.Info().Str("chain", chainCfg.Name).Msg("chain registered")
	}

	router := httpapi.NewRouter(cfg, repo, facade, logger, m)
	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info().Str("addr", cfg.Server.Addr).Msg("http server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("stopped")
}

func registerChain(ctx context.Context, facade *relay.Facade, chainCfg config.ChainConfig, privKey *ecdsa.PrivateKey) error {
	client, err := ethclient.DialContext(ctx, chainCfg.RPCURL)
	if err != nil {
		return err
	}
	rpc := chain.WrapEthClient(client)
	provider := chain.NewProvider(rpc, privKey, chainCfg.Chain)
	return facade.Register(ctx, chainCfg.Chain, provider, chainCfg.BlockFrequency)
}

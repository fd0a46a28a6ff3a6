// Package main runs the hub server: contract bindings, the wallet session,
// the periodic cache refresher and the HTTP API with its live feed.
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"realestate-token-hub/internal/api"
	"realestate-token-hub/internal/chain"
	"realestate-token-hub/internal/config"
	"realestate-token-hub/internal/contracts"
	"realestate-token-hub/internal/feed"
	"realestate-token-hub/internal/governance"
	"realestate-token-hub/internal/i18n"
	"realestate-token-hub/internal/logging"
	"realestate-token-hub/internal/marketplace"
	"realestate-token-hub/internal/portfolio"
	"realestate-token-hub/internal/property"
	"realestate-token-hub/internal/ratelimit"
	"realestate-token-hub/internal/storage"
	chstore "realestate-token-hub/internal/storage/clickhouse"
	"realestate-token-hub/internal/storage/memory"
	"realestate-token-hub/internal/storage/migrations"
	pgstore "realestate-token-hub/internal/storage/postgres"
	"realestate-token-hub/internal/txlog"
	"realestate-token-hub/internal/wallet"
)

// allStores holds all storage implementations.
type allStores struct {
	properties storage.PropertyStore
	listings   storage.ListingStore
	elections  storage.ElectionStore
	proposals  storage.ProposalStore
	txEvents   storage.TxEventStore
}

func main() {
	configPath := flag.String("config", "", "optional YAML config file")
	flags := config.BindFlags(flag.CommandLine)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	flags.Apply(cfg)

	base, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "create logger: %v\n", err)
		os.Exit(1)
	}
	defer base.Sync()
	logger := logging.Named(base, "server")

	if err := cfg.Validate(); err != nil {
		logger.Fatalf("Invalid configuration: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	deployment, err := contracts.LoadArtifacts(cfg.ArtifactsDir)
	if err != nil {
		logger.Fatalf("Failed to load contract artifacts: %v", err)
	}
	if !deployment.HasIssueDAO() {
		logger.Warn("No IssueDAO artifact, proposal endpoints are disabled")
	}

	client, err := chain.Dial(ctx, cfg.RPCEndpoint,
		chain.WithMaxRetries(cfg.RPCMaxRetries),
		chain.WithRetryDelay(cfg.RPCRetryDelay),
		chain.WithLogger(logging.Named(base, "chain")),
	)
	if err != nil {
		logger.Fatalf("Failed to connect to %s: %v", cfg.RPCEndpoint, err)
	}
	defer client.Close()

	stores, cleanup, err := createStores(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("Failed to create stores: %v", err)
	}
	defer cleanup()

	bus := feed.New(feed.DefaultBuffer)
	bindings := deployment.Bind(client)

	w := wallet.New(client, cfg.ChainID, bus, logging.Named(base, "wallet"))
	if cfg.HasWallet() {
		ok, err := w.Restore(ctx, wallet.KeySource{
			PrivateKey:   cfg.PrivateKey,
			KeystoreFile: cfg.KeystoreFile,
			Passphrase:   cfg.KeystorePassphrase,
		})
		switch {
		case err != nil:
			logger.Warnf("Wallet not restored: %v", err)
		case ok:
			addr, _ := w.Address()
			logger.Infow("Wallet restored", "address", addr.Hex())
		}
	}

	journal := txlog.NewJournal(stores.txEvents, bus, logging.Named(base, "txlog"))
	props := property.NewService(client, bindings, w, journal, stores.properties, bus, logging.Named(base, "property"))
	market := marketplace.NewService(client, bindings, w, journal, stores.listings, props, bus, logging.Named(base, "marketplace"))
	gov := governance.NewService(governance.Config{
		Backend:   client,
		Bindings:  bindings,
		Signer:    w,
		Journal:   journal,
		Elections: stores.elections,
		Proposals: stores.proposals,
		Props:     props,
		Feed:      bus,
		Log:       logging.Named(base, "governance"),
	})

	bundle := i18n.Default()
	defaultLang, ok := bundle.Parse(cfg.DefaultLang)
	if !ok {
		logger.Warnf("Unsupported default language %q, using %s", cfg.DefaultLang, defaultLang)
	}

	proxies, err := cfg.TrustedProxyNets()
	if err != nil {
		logger.Fatalf("Invalid trusted proxies: %v", err)
	}

	srv := api.New(api.Deps{
		Wallet:      w,
		Properties:  props,
		Market:      market,
		Governance:  gov,
		Portfolio:   portfolio.NewService(bindings, props, market),
		Journal:     journal,
		Feed:        bus,
		Bundle:      bundle,
		Limiter:     ratelimit.New(cfg.RateLimitRPS, cfg.RateLimitBurst, 10*time.Minute),
		DefaultLang: defaultLang,
		Log:         logging.Named(base, "api"),

		TrustedProxies: proxies,
	})

	// Channel to signal completion
	done := make(chan struct{})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Infof("Received signal %v, initiating graceful shutdown...", sig)
		cancel()

		select {
		case sig := <-sigCh:
			logger.Warnf("Received second signal %v, forcing immediate shutdown", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Warn("Graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
		}
	}()

	go w.WatchChain(ctx, cfg.ChainCheckInterval)

	r := &refresher{
		interval: cfg.RefreshInterval,
		jobs:     refreshJobs(props, market, gov),
		record:   srv.RecordRefresh,
		logger:   logging.Named(base, "refresh"),
	}
	go r.Run(ctx)

	if !isLoopback(cfg.HTTPAddr) {
		logger.Warnf("Listening on %s: the API has no authentication and signs with the wallet key", cfg.HTTPAddr)
	}
	go func() {
		if err := srv.Start(cfg.HTTPAddr); err != nil {
			logger.Errorf("HTTP server error: %v", err)
			cancel()
		}
	}()

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("HTTP shutdown: %v", err)
	}
	shutdownCancel()
	bus.Close()
	close(done)

	logger.Info("Shutdown complete")
}

// isLoopback reports whether addr only accepts local connections.
func isLoopback(addr string) bool {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return false
	}
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// createStores creates all required stores. PostgreSQL holds the chain
// caches and ClickHouse the transaction journal.
func createStores(ctx context.Context, cfg *config.Config, logger *zap.SugaredLogger) (*allStores, func(), error) {
	if cfg.UseMemory {
		stores := &allStores{
			properties: memory.NewPropertyStore(),
			listings:   memory.NewListingStore(),
			elections:  memory.NewElectionStore(),
			proposals:  memory.NewProposalStore(),
			txEvents:   memory.NewTxEventStore(),
		}
		return stores, func() {}, nil
	}

	pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}

	applied, err := migrations.RunPostgresMigrations(ctx, pool)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("postgres migrations: %w", err)
	}
	if len(applied) > 0 {
		logger.Infow("Applied postgres migrations", "versions", applied)
	}

	chConn, err := migrations.RunClickhouseMigrations(ctx, cfg.ClickhouseDSN)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("clickhouse migrations: %w", err)
	}

	stores := &allStores{
		properties: pgstore.NewPropertyStore(pool),
		listings:   pgstore.NewListingStore(pool),
		elections:  pgstore.NewElectionStore(pool),
		proposals:  pgstore.NewProposalStore(pool),
		txEvents:   chstore.NewTxEventStore(chConn),
	}

	cleanup := func() {
		chConn.Close()
		pool.Close()
	}

	return stores, cleanup, nil
}

package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/CamberLoid/tzama/internal/acl"
	"github.com/CamberLoid/tzama/internal/api"
	"github.com/CamberLoid/tzama/internal/config"
	"github.com/CamberLoid/tzama/internal/db"
	"github.com/CamberLoid/tzama/internal/handshake"
	"github.com/CamberLoid/tzama/internal/kms"
	"github.com/CamberLoid/tzama/internal/ledger"
	"github.com/CamberLoid/tzama/internal/logging"
	"github.com/CamberLoid/tzama/internal/metrics"
)

const DefaultConfigPath = "./tzama.toml"

func main() {
	app := &cli.App{
		Name:     "tzama-server",
		HelpName: "tzama-server",
		Version:  api.Version,
		Usage:    "confidential staking ledger with its decryption service",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Value: DefaultConfigPath, Usage: "path of the TOML config, created when missing"},
		},
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func run(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}
	logger := logging.Setup("tzama", logging.Options{Level: cfg.Log.Level, File: cfg.Log.File, Env: cfg.Log.Env})
	logger.Info("starting", slog.String("version", api.Version), slog.String("coprocessor", cfg.Coprocessor))

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := db.Open(cfg.DatabasePath())
	if err != nil {
		return err
	}
	defer store.Close()

	cop, signer, err := newCoprocessor(ctx, cfg, store, logger)
	if err != nil {
		return err
	}

	registry := acl.New()
	if err := store.LoadGrants(ctx, registry); err != nil {
		return err
	}
	state, err := store.LoadState(ctx)
	if err != nil {
		return err
	}
	policy, err := ledgerPolicy(cfg)
	if err != nil {
		return err
	}
	ledgerMetrics := metrics.Ledger()
	ledgerMetrics.SetAccounts(len(state.Accounts))
	ledgerMetrics.SetGrants(registry.Len())

	l := ledger.New(ledger.NewEngine(cop, cfg.Ledger(), policy), registry,
		ledger.WithStore(store),
		ledger.WithState(state),
		ledger.WithLogger(logger),
		ledger.WithMetrics(ledgerMetrics))

	maxGrant, err := cfg.GrantDuration()
	if err != nil {
		return err
	}
	k := kms.New(cop, registry, kms.Config{
		Domain:           handshake.Domain{ChainID: cfg.ChainID, VerifyingContract: cfg.KMS()},
		MaxGrantDuration: maxGrant,
	}, kms.WithLogger(logger), kms.WithMetrics(metrics.Decrypt()))

	srv := api.New(l, cop, k, api.Config{
		ChainID:             cfg.ChainID,
		Coprocessor:         signer,
		DefaultFaucetAmount: cfg.DefaultFaucetAmount,
	}, logger)

	httpServer := &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", slog.String("addr", cfg.ListenAddress),
			slog.String("ledger", cfg.Ledger().Hex()), slog.String("kms", cfg.KMS().Hex()))
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return err
		}
	}
	return nil
}

func ledgerPolicy(cfg *config.Config) (ledger.Policy, error) {
	admins, err := cfg.AdminPrincipals()
	if err != nil {
		return ledger.Policy{}, err
	}
	policy := ledger.Policy{Admins: admins}
	switch cfg.TotalStakedReaders {
	case config.ReadersAdmins:
		policy.TotalReaders = ledger.TotalToAdmins
	case config.ReadersCallerAndAdmins:
		policy.TotalReaders = ledger.TotalToCallerAndAdmins
	default:
		policy.TotalReaders = ledger.TotalToCaller
	}
	return policy, nil
}

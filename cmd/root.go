package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"staking-ledger/config"
	"staking-ledger/services"
	"staking-ledger/store"
	"staking-ledger/utils/logger"
)

var rootCmd = &cobra.Command{
	Use:   "staking-ledger",
	Short: "Referral and staking ledger service",
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "optional config file (yaml, json, toml or env)")
	rootCmd.AddCommand(ServeCmd(), MigrateCmd(), ImportLegacyCmd(), SnapshotCmd(), CreateAdminCmd())
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// setup loads configuration and initializes the global logger.
func setup(c *cobra.Command) (config.Config, *zap.SugaredLogger, error) {
	configFile, err := c.Flags().GetString("config")
	if err != nil {
		return config.Config{}, nil, err
	}
	cfg, err := config.Load(configFile)
	if err != nil {
		return config.Config{}, nil, err
	}
	log := logger.Init(cfg.Log.Level, cfg.Log.Format)
	return cfg, log, nil
}

// openLedger opens the configured store and builds the ledger on top of it.
// The returned close func releases the store.
func openLedger(ctx context.Context, cfg config.Config, log *zap.SugaredLogger) (*store.Repository, *services.LedgerService, func(), error) {
	kv, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open %s store: %w", cfg.Store.Driver, err)
	}
	repo := store.NewRepository(kv, log)
	ledger := services.NewLedgerService(repo, cfg.Rules, services.NewBcryptVerifier(cfg.Session.BcryptCost), log)
	ledger.ReserveUsernames(cfg.Admin.Usernames...)
	closeFn := func() {
		if err := kv.Close(); err != nil {
			log.Warnf("closing store: %v", err)
		}
	}
	return repo, ledger, closeFn, nil
}

package cmd

import (
	"github.com/spf13/cobra"
)

// MigrateCmd prepares the configured store. SQL backends create the kv table;
// LevelDB and Redis need nothing beyond a reachable store.
func MigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the store schema and verify connectivity",
		RunE: func(c *cobra.Command, _ []string) error {
			cfg, log, err := setup(c)
			if err != nil {
				return err
			}
			_, ledger, closeStore, err := openLedger(c.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer closeStore()

			if err := ledger.Ping(c.Context()); err != nil {
				return err
			}
			log.Infof("✅ %s store ready", cfg.Store.Driver)
			return nil
		},
	}
}

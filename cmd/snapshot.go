package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"staking-ledger/utils"
)

func SnapshotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Export both collections as JSON, to a file or to object storage",
		RunE:  snapshot,
	}
	cmd.Flags().StringP("out", "o", "", "write the snapshot to this file instead of uploading")
	return cmd
}

func snapshot(c *cobra.Command, _ []string) error {
	out, _ := c.Flags().GetString("out")

	cfg, log, err := setup(c)
	if err != nil {
		return err
	}
	_, ledger, closeStore, err := openLedger(c.Context(), cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	if out != "" {
		snap, err := ledger.ExportSnapshot(c.Context())
		if err != nil {
			return err
		}
		raw, err := json.MarshalIndent(snap, "", "  ")
		if err != nil {
			return err
		}
		if err := os.WriteFile(out, raw, 0o600); err != nil {
			return err
		}
		log.Infof("✅ Snapshot written to %s", out)
		return nil
	}

	if !cfg.Snapshot.Enabled() {
		return fmt.Errorf("snapshot storage not configured; set R2_* variables or pass --out")
	}
	r2, err := utils.NewR2Client(c.Context(), cfg.Snapshot)
	if err != nil {
		return err
	}
	key, err := ledger.UploadSnapshot(c.Context(), r2)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.OutOrStdout(), key)
	return nil
}

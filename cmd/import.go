package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"staking-ledger/services"
)

func ImportLegacyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import-legacy",
		Short: "Import users and transactions exported from browser storage",
		RunE:  importLegacy,
	}
	cmd.Flags().String("users", "", "JSON array of legacy users")
	cmd.Flags().String("transactions", "", "JSON array of legacy transactions")
	return cmd
}

func importLegacy(c *cobra.Command, _ []string) error {
	usersFile, _ := c.Flags().GetString("users")
	txFile, _ := c.Flags().GetString("transactions")
	if usersFile == "" && txFile == "" {
		return fmt.Errorf("at least one of --users or --transactions is required")
	}

	var users []services.LegacyUser
	if err := readJSONFile(usersFile, &users); err != nil {
		return err
	}
	var txs []services.LegacyTransaction
	if err := readJSONFile(txFile, &txs); err != nil {
		return err
	}

	cfg, log, err := setup(c)
	if err != nil {
		return err
	}
	_, ledger, closeStore, err := openLedger(c.Context(), cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	report, err := ledger.ImportLegacy(c.Context(), users, txs)
	if err != nil {
		return err
	}
	out, _ := json.MarshalIndent(report, "", "  ")
	fmt.Fprintln(c.OutOrStdout(), string(out))
	return nil
}

func readJSONFile(path string, dst interface{}) error {
	if path == "" {
		return nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

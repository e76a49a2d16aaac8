package cmd

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"staking-ledger/services"
)

// CreateAdminCmd provisions an account under one of the reserved admin
// usernames, which the public register route refuses.
func CreateAdminCmd() *cobra.Command {
	var username, password string

	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an account for a configured admin username",
		RunE: func(c *cobra.Command, _ []string) error {
			cfg, log, err := setup(c)
			if err != nil {
				return err
			}
			if !slices.Contains(cfg.Admin.Usernames, username) {
				return fmt.Errorf("%q is not listed in ADMIN_USERNAMES", username)
			}
			_, ledger, closeStore, err := openLedger(c.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer closeStore()

			acct, err := ledger.Register(c.Context(), services.RegisterRequest{
				Username:      username,
				Credential:    password,
				AllowReserved: true,
			})
			if err != nil {
				return err
			}
			log.Infof("✅ admin account %d (%s) created", acct.ID, acct.Username)
			return nil
		},
	}

	cmd.Flags().StringVar(&username, "username", "", "admin username")
	cmd.Flags().StringVar(&password, "password", "", "admin password")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/truecar-kr/truecar-backend/internal/app/repository"
	"github.com/truecar-kr/truecar-backend/internal/app/service"
	"github.com/truecar-kr/truecar-backend/internal/db"
)

func adminGate() service.AdminGate {
	return service.NewAdminGate(repository.NewAdminUserRepository(db.GetDB()))
}

// truecarctl grant-admin <email>...
var grantAdminCmd = &cobra.Command{
	Use:   "grant-admin <email>...",
	Short: "Grant admin rights to one or more emails",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := bootDB(); err != nil {
			return err
		}
		defer db.Close()

		gate := adminGate()
		for _, email := range args {
			if err := gate.Grant(cmd.Context(), email); err != nil {
				return fmt.Errorf("grant %s: %w", email, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "granted: %s\n", email)
		}
		return nil
	},
}

// truecarctl is-admin <email>
var isAdminCmd = &cobra.Command{
	Use:   "is-admin <email>",
	Short: "Report whether an email has admin rights",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := bootDB(); err != nil {
			return err
		}
		defer db.Close()

		fmt.Fprintln(cmd.OutOrStdout(), adminGate().IsAdmin(cmd.Context(), args[0]))
		return nil
	},
}

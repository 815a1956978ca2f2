package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "truecarctl",
	Short:         "TRUECAR 운영 도구",
	Long:          "Admin grants, review export and database maintenance for the TRUECAR reviews backend.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	// Admin
	rootCmd.AddCommand(grantAdminCmd)
	rootCmd.AddCommand(isAdminCmd)

	// Reviews
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(statsCmd)

	// Database
	rootCmd.AddCommand(migrateCmd)
}

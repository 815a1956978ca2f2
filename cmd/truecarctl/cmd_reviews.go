package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/truecar-kr/truecar-backend/internal/app/repository"
	"github.com/truecar-kr/truecar-backend/internal/db"
	"github.com/truecar-kr/truecar-backend/internal/sheet"
)

var exportOutput string

// truecarctl export -o reviews.xlsx
var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export every review (any status) to an XLSX workbook",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := bootDB(); err != nil {
			return err
		}
		defer db.Close()

		reviews, err := repository.NewReviewRepository(db.GetDB()).ListAll(cmd.Context())
		if err != nil {
			return err
		}

		f, err := os.Create(exportOutput)
		if err != nil {
			return err
		}
		if err := sheet.WriteReviews(f, reviews); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "exported %d reviews to %s\n", len(reviews), exportOutput)
		return nil
	},
}

// truecarctl stats
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print view statistics over active reviews",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := bootDB(); err != nil {
			return err
		}
		defer db.Close()

		stats, err := repository.NewReviewRepository(db.GetDB()).ViewStats(cmd.Context())
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "reviews.xlsx", "output file")
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"insightweaver/internal/dataset"
)

var datasetCmd = &cobra.Command{
	Use:   "dataset",
	Short: "Dataset preparation commands",
}

var datasetPrepareCmd = &cobra.Command{
	Use:   "prepare",
	Short: "Load the raw DataCo CSV export into the orders database",
	Long: `Reads the raw DataCo supply chain CSV (latin-1 encoded), normalizes
column names, derives shipping_delay_days and on_time_delivery, drops
duplicate order items and rows missing key fields, and writes the result
to the SQLite orders database.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		rows, err := dataset.Prepare(cfg.Dataset.CSVPath, cfg.Dataset.DBPath, logger)
		if err != nil {
			return err
		}
		fmt.Printf("Prepared %d orders into %s\n", rows, cfg.Dataset.DBPath)
		return nil
	},
}

func init() {
	datasetCmd.AddCommand(datasetPrepareCmd)
}

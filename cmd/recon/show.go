package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/franz/order-recon/internal/store"
	"github.com/franz/order-recon/internal/util"
	"github.com/spf13/cobra"
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the stored dataset",
	Long: `Print the combined dataset from the last successful update.

Use --columns to pick columns and --format to print as a table, csv or json.`,
	RunE: runShow,
}

func init() {
	rootCmd.AddCommand(showCmd)

	showCmd.Flags().IntP("limit", "l", 20, "limit number of rows (0 = no limit)")
	showCmd.Flags().StringSlice("columns", nil, "columns to print (default all)")
	showCmd.Flags().StringP("format", "f", "table", "output format: table, csv, json")
}

func runShow(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("limit")
	columns, _ := cmd.Flags().GetStringSlice("columns")
	format, _ := cmd.Flags().GetString("format")

	db, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	t, err := db.Load(context.Background())
	if errors.Is(err, store.ErrNoDataset) {
		util.WarnLog("No dataset found. Run 'recon update <archive.zip>' first.")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load dataset: %w", err)
	}

	v, err := newView(t, columns, limit)
	if err != nil {
		return err
	}
	return renderView(cmd.OutOrStdout(), v, format)
}

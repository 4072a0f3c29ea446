package main

import (
	"context"
	"fmt"
	"strings"

	pretty "github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/franz/order-recon/internal/store"
	"github.com/franz/order-recon/internal/util"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent update runs",
	RunE:  runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().IntP("limit", "l", 10, "number of runs to list (0 = all)")
}

func runHistory(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("limit")

	db, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	runs, err := db.ListRuns(context.Background(), limit)
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}
	if len(runs) == 0 {
		util.InfoLog("No runs recorded yet.")
		return nil
	}

	t := pretty.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.SetStyle(pretty.StyleLight)
	t.AppendHeader(pretty.Row{"Started", "Status", "Processed On", "Rows", "Columns", "Sources", "Error"})
	for _, r := range runs {
		t.AppendRow(runRow(r))
	}
	t.Render()
	return nil
}

func runRow(r store.Run) pretty.Row {
	processed := ""
	if !r.ProcessedOn.IsZero() {
		processed = r.ProcessedOn.Format(util.DateLayout)
	}
	return pretty.Row{
		r.StartedAt.Local().Format("2006-01-02 15:04:05"),
		string(r.Status),
		processed,
		util.FormatCount(r.Rows),
		r.Columns,
		strings.Join(r.Sources, ", "),
		r.Error,
	}
}

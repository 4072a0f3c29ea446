package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/franz/order-recon/internal/service"
	"github.com/franz/order-recon/internal/util"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var updateCmd = &cobra.Command{
	Use:   "update <archive.zip>",
	Short: "Rebuild the dataset from an uploaded archive",
	Long: `Read the source workbooks from a zip archive and replace the stored dataset.

The archive must contain ORDENES.xlsx. INVENTARIO.xlsx, ESTADO.xlsx,
PRECIOS.xlsx and GESTION.xlsx are joined onto the orders when present.
Any other entry is ignored.

Every order is aged against the processing date (--date, default today).
An unparseable order date fails the run unless --lenient-dates is set, in
which case the age is left empty.

The previous dataset is kept if anything fails.`,
	Args: cobra.ExactArgs(1),
	RunE: runUpdate,
}

func init() {
	rootCmd.AddCommand(updateCmd)

	updateCmd.Flags().String("date", "", "processing date YYYY-MM-DD (default today)")
	updateCmd.Flags().Bool("lenient-dates", false, "leave the age empty for unparseable order dates")
	updateCmd.Flags().Int("preview", 5, "rows of the combined dataset to print (0 = none)")

	viper.BindPFlag("lenient_dates", updateCmd.Flags().Lookup("lenient-dates"))
}

func runUpdate(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	dateFlag, _ := cmd.Flags().GetString("date")
	preview, _ := cmd.Flags().GetInt("preview")

	processedOn, err := util.ParseDate(dateFlag, time.Now())
	if err != nil {
		return err
	}

	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat archive: %w", err)
	}

	db, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	events := openEvents()
	defer events.Close()

	util.InfoLog("=== Update ===")
	util.InfoLog("Archive: %s (%s)", args[0], util.FormatBytes(info.Size()))
	util.InfoLog("Database: %s", db.Path())
	util.InfoLog("Processing date: %s", processedOn.Format(util.DateLayout))

	svc := service.New(db, service.Options{Events: events})
	res, err := svc.Update(ctx, f, info.Size(), service.UpdateOptions{
		ProcessedOn:  processedOn,
		LenientDates: GetConfigBool("lenient_dates"),
	})
	if err != nil {
		return fmt.Errorf("update failed: %w", err)
	}

	util.InfoLog("")
	util.SuccessLog("=== Update Summary ===")
	util.InfoLog("Run: %s", res.RunID)
	util.InfoLog("Total time: %v", res.Duration.Round(time.Millisecond))
	for _, st := range res.Steps {
		switch {
		case st.Skipped:
			util.InfoLog("  %-10s not uploaded", st.Source)
		case st.Duplicates > 0:
			util.WarnLog("  %-10s %s rows, %d duplicate keys dropped, %d matched, %d unmatched",
				st.Source, util.FormatCount(st.Rows), st.Duplicates, st.Matched, st.Unmatched)
		default:
			util.InfoLog("  %-10s %s rows, %d matched, %d unmatched",
				st.Source, util.FormatCount(st.Rows), st.Matched, st.Unmatched)
		}
	}
	if res.Aging.Invalid > 0 {
		util.WarnLog("Orders with an unparseable date: %d", res.Aging.Invalid)
	}
	for _, name := range res.Ignored {
		util.DebugLog("Ignored archive entry: %s", name)
	}
	util.InfoLog("Combined dataset: %s rows x %d columns",
		util.FormatCount(res.Combined.Len()), res.Combined.Width())

	if preview > 0 {
		v, err := newView(res.Combined, nil, preview)
		if err != nil {
			return err
		}
		if err := renderTable(cmd.OutOrStdout(), v); err != nil {
			return err
		}
	}

	sum := res.Summary()
	sum.DatabasePath = db.Path()
	sum.EventLogPath = events.Path()
	writeSummary(sum, "update.md")

	return nil
}

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/franz/order-recon/internal/delivery"
	"github.com/franz/order-recon/internal/partition"
	"github.com/franz/order-recon/internal/report"
	"github.com/franz/order-recon/internal/service"
	"github.com/franz/order-recon/internal/store"
	"github.com/franz/order-recon/internal/util"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write one workbook per responsible owner into a zip archive",
	Long: `Split the stored dataset by responsible owner and write the archive
Exportacion_Responsables_<YYYYMMDD>.zip with one workbook per owner.

Rows without an owner are left out. Nothing is written when the dataset
was built without GESTION.xlsx.`,
	RunE: runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().StringP("out", "o", ".", "directory for the export archive")
	exportCmd.Flags().String("date", "", "date used in the archive name YYYY-MM-DD (default today)")
}

func runExport(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	outDir, _ := cmd.Flags().GetString("out")
	dateFlag, _ := cmd.Flags().GetString("date")

	day, err := util.ParseDate(dateFlag, time.Now())
	if err != nil {
		return err
	}

	db, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	events := openEvents()
	defer events.Close()

	svc := service.New(db, service.Options{Events: events})
	part, err := svc.Partition(ctx)
	switch {
	case errors.Is(err, store.ErrNoDataset):
		util.WarnLog("No dataset found. Run 'recon update <archive.zip>' first.")
		return nil
	case errors.Is(err, service.ErrNotApplicable):
		util.WarnLog("Dataset has no %s column; no export written.", partition.AssignmentColumn)
		writeSummary(&report.SummaryReport{
			GeneratedAt:   time.Now(),
			NotApplicable: true,
			DatabasePath:  db.Path(),
			EventLogPath:  events.Path(),
		}, "export.md")
		return nil
	case err != nil:
		return fmt.Errorf("failed to partition dataset: %w", err)
	}

	if len(part.Exports) == 0 {
		util.WarnLog("No row has an owner; no export written.")
		return nil
	}

	if err := os.MkdirAll(outDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	name := delivery.ArchiveName(day)
	path := filepath.Join(outDir, name)

	util.InfoLog("=== Export ===")
	util.InfoLog("Owners: %d", len(part.Exports))
	util.InfoLog("Archive: %s", path)

	var bar *progressbar.ProgressBar
	if util.StdoutIsTerminal() && !util.IsQuiet() {
		bar = progressbar.NewOptions(len(part.Exports),
			progressbar.OptionSetDescription("Exporting"),
			progressbar.OptionSetWidth(40),
			progressbar.OptionShowCount(),
			progressbar.OptionSetItsString("workbooks"),
			progressbar.OptionClearOnFinish(),
			progressbar.OptionSetRenderBlankState(true),
		)
	}

	// Write to a .part file and rename so a failed export leaves no archive
	tmp := path + ".part"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create archive: %w", err)
	}

	entries, err := svc.WriteExport(ctx, f, part, name, func(e delivery.Entry) {
		if bar != nil {
			bar.Add(1)
		} else {
			util.DebugLog("Wrote %s (%d rows)", e.Name, e.Rows)
		}
	})
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp)
		return fmt.Errorf("export failed: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to finalize archive: %w", err)
	}
	if bar != nil {
		bar.Finish()
	}

	util.InfoLog("")
	util.SuccessLog("=== Export Summary ===")
	for _, e := range entries {
		util.InfoLog("  %-30s %s rows  %s", e.Name, util.FormatCount(e.Rows), util.FormatBytes(int64(e.Bytes)))
	}
	if part.Unassigned > 0 {
		util.WarnLog("Rows without an owner: %d", part.Unassigned)
	}

	res := &service.ExportResult{Name: name, Partition: part, Entries: entries}
	sum := res.Summary(path)
	sum.DatabasePath = db.Path()
	sum.EventLogPath = events.Path()
	writeSummary(sum, "export.md")

	return nil
}

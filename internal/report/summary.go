package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/franz/order-recon/internal/util"
)

// SummaryReport describes one reconciliation run for humans
type SummaryReport struct {
	GeneratedAt time.Time
	RunID       string
	ProcessedOn time.Time
	Duration    time.Duration

	Sources []SourceSummary

	// Combined dataset
	CombinedRows    int
	CombinedColumns int

	// Export, when one was produced
	Owners         []OwnerSummary
	Unassigned     int
	NotApplicable  bool
	MissingColumns []string

	DatabasePath string
	EventLogPath string
	ArchivePath  string
}

// SourceSummary is the per-source outcome of a run
type SourceSummary struct {
	Source     string
	Skipped    bool
	Rows       int
	Duplicates int
	Matched    int
	Unmatched  int
}

// OwnerSummary is one entry of the export archive
type OwnerSummary struct {
	Owner string
	File  string
	Rows  int
	Bytes int64
}

// WriteMarkdownReport writes the summary report as Markdown
func WriteMarkdownReport(report *SummaryReport, outputPath string) error {
	dir := filepath.Dir(outputPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	if err := os.WriteFile(outputPath, []byte(RenderMarkdown(report)), 0644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

// RenderMarkdown renders the report without touching the filesystem
func RenderMarkdown(report *SummaryReport) string {
	var md strings.Builder

	md.WriteString("# Order Reconciliation - Run Summary\n\n")
	md.WriteString(fmt.Sprintf("**Generated:** %s\n\n", report.GeneratedAt.Format("2006-01-02 15:04:05")))
	if report.RunID != "" {
		md.WriteString(fmt.Sprintf("**Run:** `%s`\n\n", report.RunID))
	}
	if !report.ProcessedOn.IsZero() {
		md.WriteString(fmt.Sprintf("**Processing date:** %s\n\n", report.ProcessedOn.Format(util.DateLayout)))
	}
	if report.DatabasePath != "" {
		md.WriteString(fmt.Sprintf("**Database:** `%s`\n\n", report.DatabasePath))
	}
	if report.EventLogPath != "" {
		md.WriteString(fmt.Sprintf("**Event Log:** `%s`\n\n", report.EventLogPath))
	}

	md.WriteString("---\n\n")

	md.WriteString("## 📊 Overview\n\n")
	md.WriteString("| Metric | Value |\n")
	md.WriteString("|--------|-------|\n")
	md.WriteString(fmt.Sprintf("| Combined Rows | %s |\n", util.FormatCount(report.CombinedRows)))
	md.WriteString(fmt.Sprintf("| Combined Columns | %d |\n", report.CombinedColumns))
	if report.Duration > 0 {
		md.WriteString(fmt.Sprintf("| Duration | %s |\n", report.Duration.Round(time.Millisecond)))
	}
	md.WriteString("\n")

	if len(report.Sources) > 0 {
		md.WriteString("## 🔗 Sources\n\n")
		md.WriteString("| Source | Rows | Duplicates | Matched | Unmatched |\n")
		md.WriteString("|--------|------|------------|---------|-----------|\n")
		for _, s := range report.Sources {
			if s.Skipped {
				md.WriteString(fmt.Sprintf("| %s | *not uploaded* | - | - | - |\n", s.Source))
				continue
			}
			md.WriteString(fmt.Sprintf("| %s | %d | %d | %d | %d |\n",
				s.Source, s.Rows, s.Duplicates, s.Matched, s.Unmatched))
		}
		md.WriteString("\n")
	}

	switch {
	case report.NotApplicable:
		md.WriteString("## 📦 Export\n\n")
		md.WriteString("*Partitioning not applicable: the combined dataset has no assignment column.*\n\n")
	case len(report.Owners) > 0:
		md.WriteString("## 📦 Export\n\n")
		if report.ArchivePath != "" {
			md.WriteString(fmt.Sprintf("**Archive:** `%s`\n\n", truncatePath(report.ArchivePath, 80)))
		}
		md.WriteString("| Owner | File | Rows | Size |\n")
		md.WriteString("|-------|------|------|------|\n")
		for _, o := range report.Owners {
			md.WriteString(fmt.Sprintf("| %s | `%s` | %d | %s |\n",
				o.Owner, o.File, o.Rows, util.FormatBytes(o.Bytes)))
		}
		md.WriteString("\n")
		if report.Unassigned > 0 {
			md.WriteString(fmt.Sprintf("%d rows had no owner and were left out of the archive.\n\n", report.Unassigned))
		}
	}

	if len(report.MissingColumns) > 0 {
		md.WriteString("## ⚠️ Missing Export Columns\n\n")
		md.WriteString("These columns were absent from the combined dataset and were exported empty:\n\n")
		for _, c := range report.MissingColumns {
			md.WriteString(fmt.Sprintf("- `%s`\n", c))
		}
		md.WriteString("\n")
	}

	md.WriteString("---\n\n")
	md.WriteString("*Generated by recon - Order Reconciliation*\n")

	return md.String()
}

// truncatePath truncates a file path to a maximum length
func truncatePath(path string, maxLen int) string {
	if len(path) <= maxLen {
		return path
	}
	// Truncate from the middle, keeping start and end
	start := maxLen/2 - 2
	end := len(path) - (maxLen/2 - 2)
	return path[:start] + "..." + path[end:]
}

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/franz/order-recon/internal/delivery"
	"github.com/franz/order-recon/internal/source"
	"github.com/franz/order-recon/internal/store"
	"github.com/franz/order-recon/internal/util"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run diagnostic checks on the environment and configuration",
	Long: `Run diagnostic checks to ensure recon can operate correctly.

This command checks:
- SQLite version
- Database accessibility and integrity
- Artifacts directory permissions and disk space
- An upload archive, when --archive is given

Use this command to troubleshoot issues before running an update.`,
	RunE: runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)

	doctorCmd.Flags().String("archive", "", "upload archive to check (optional)")
}

type checkResult struct {
	name    string
	message string
	error   bool
	warning bool
}

func runDoctor(cmd *cobra.Command, args []string) error {
	util.InfoLog("=== Recon Doctor - System Diagnostics ===")
	util.InfoLog("")

	results := []checkResult{}

	results = append(results, checkSQLite())
	results = append(results, checkDatabase(GetConfigString("db", "recon.db")))

	artifacts := GetConfigString("artifacts", "artifacts")
	results = append(results, checkArtifactsDirectory(artifacts))
	results = append(results, checkDiskSpace(artifacts, "artifacts"))

	if archive, _ := cmd.Flags().GetString("archive"); archive != "" {
		results = append(results, checkArchive(archive))
	}

	util.InfoLog("")
	util.InfoLog("=== Diagnostic Results ===")
	util.InfoLog("")

	hasErrors := false
	hasWarnings := false

	for _, r := range results {
		symbol := "✓"
		if r.error {
			symbol = "✗"
			hasErrors = true
		} else if r.warning {
			symbol = "⚠"
			hasWarnings = true
		}

		line := fmt.Sprintf("[%s] %s", symbol, r.name)
		if r.message != "" {
			line += fmt.Sprintf(": %s", r.message)
		}

		if r.error {
			util.ErrorLog("%s", line)
		} else if r.warning {
			util.WarnLog("%s", line)
		} else {
			util.SuccessLog("%s", line)
		}
	}

	util.InfoLog("")
	if hasErrors {
		util.ErrorLog("❌ Some critical checks failed. Please resolve errors before running recon.")
		return fmt.Errorf("system diagnostics failed")
	} else if hasWarnings {
		util.WarnLog("⚠️  Some checks produced warnings. Review them before proceeding.")
	} else {
		util.SuccessLog("✅ All checks passed! System is ready for recon operations.")
	}

	return nil
}

// checkSQLite verifies SQLite version
func checkSQLite() checkResult {
	// modernc.org/sqlite is compiled in, there is no external library to find
	version := store.SQLiteVersion()
	if version == "" {
		return checkResult{
			name:    "SQLite",
			error:   true,
			message: "unable to determine version",
		}
	}

	return checkResult{
		name:    "SQLite",
		message: fmt.Sprintf("version %s (built-in)", version),
	}
}

// checkDatabase verifies database file accessibility and reports the stored dataset
func checkDatabase(dbPath string) checkResult {
	if dbPath == "" {
		return checkResult{
			name:    "Database",
			warning: true,
			message: "no database path specified (use --db flag or config)",
		}
	}

	info, err := os.Stat(dbPath)
	if err != nil {
		if os.IsNotExist(err) {
			return checkResult{
				name:    "Database",
				message: fmt.Sprintf("%s (will be created on first update)", dbPath),
			}
		}
		return checkResult{
			name:    "Database",
			error:   true,
			message: fmt.Sprintf("cannot access %s: %v", dbPath, err),
		}
	}

	if !info.Mode().IsRegular() {
		return checkResult{
			name:    "Database",
			error:   true,
			message: fmt.Sprintf("%s is not a regular file", dbPath),
		}
	}

	db, err := store.Open(dbPath)
	if err != nil {
		return checkResult{
			name:    "Database",
			error:   true,
			message: fmt.Sprintf("cannot open %s: %v", dbPath, err),
		}
	}
	defer db.Close()

	if err := db.CheckIntegrity(); err != nil {
		return checkResult{
			name:    "Database",
			error:   true,
			message: fmt.Sprintf("integrity check failed: %v", err),
		}
	}

	size := util.FormatBytes(info.Size())
	ctx := context.Background()

	t, err := db.Load(ctx)
	if errors.Is(err, store.ErrNoDataset) {
		return checkResult{
			name:    "Database",
			warning: true,
			message: fmt.Sprintf("%s (%s, no dataset yet)", dbPath, size),
		}
	}
	if err != nil {
		return checkResult{
			name:    "Database",
			error:   true,
			message: fmt.Sprintf("cannot read dataset: %v", err),
		}
	}

	msg := fmt.Sprintf("%s (%s, %d rows x %d columns)", dbPath, size, t.Len(), t.Width())
	if runs, err := db.ListRuns(ctx, 1); err == nil && len(runs) > 0 && runs[0].Status == store.RunFailed {
		return checkResult{
			name:    "Database",
			warning: true,
			message: fmt.Sprintf("%s; last update failed: %s", msg, runs[0].Error),
		}
	}

	return checkResult{
		name:    "Database",
		message: msg,
	}
}

// checkArtifactsDirectory verifies the artifacts directory is writable
func checkArtifactsDirectory(path string) checkResult {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			if err := os.MkdirAll(path, 0755); err != nil {
				return checkResult{
					name:    "Artifacts directory",
					error:   true,
					message: fmt.Sprintf("cannot create %s: %v", path, err),
				}
			}
			return checkResult{
				name:    "Artifacts directory",
				message: fmt.Sprintf("%s (created)", path),
			}
		}
		return checkResult{
			name:    "Artifacts directory",
			error:   true,
			message: fmt.Sprintf("cannot access %s: %v", path, err),
		}
	}

	if !info.IsDir() {
		return checkResult{
			name:    "Artifacts directory",
			error:   true,
			message: fmt.Sprintf("%s is not a directory", path),
		}
	}

	testFile := filepath.Join(path, ".recon_write_test")
	f, err := os.Create(testFile)
	if err != nil {
		return checkResult{
			name:    "Artifacts directory",
			error:   true,
			message: fmt.Sprintf("cannot write to %s: %v", path, err),
		}
	}
	f.Close()
	os.Remove(testFile)

	return checkResult{
		name:    "Artifacts directory",
		message: fmt.Sprintf("%s (writable)", path),
	}
}

// checkDiskSpace verifies available disk space
func checkDiskSpace(path string, label string) checkResult {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(path, &stat); err != nil {
		return checkResult{
			name:    fmt.Sprintf("Disk space (%s)", label),
			warning: true,
			message: fmt.Sprintf("cannot determine disk space: %v", err),
		}
	}

	availBytes := stat.Bavail * uint64(stat.Bsize)
	totalBytes := stat.Blocks * uint64(stat.Bsize)
	usedBytes := totalBytes - (stat.Bfree * uint64(stat.Bsize))

	usedPercent := 0.0
	if totalBytes > 0 {
		usedPercent = float64(usedBytes) / float64(totalBytes) * 100
	}

	// Exports and reports are small, warn below 1GB or above 95% used
	warning := false
	warningMsg := ""
	if availBytes < 1<<30 {
		warning = true
		warningMsg = " (low space!)"
	} else if usedPercent > 95 {
		warning = true
		warningMsg = " (>95% used)"
	}

	return checkResult{
		name:    fmt.Sprintf("Disk space (%s)", label),
		warning: warning,
		message: fmt.Sprintf("%s available%s", util.FormatBytes(int64(availBytes)), warningMsg),
	}
}

// checkArchive opens an upload archive and reports which sources it carries
func checkArchive(path string) checkResult {
	f, err := os.Open(path)
	if err != nil {
		return checkResult{
			name:    "Archive",
			error:   true,
			message: fmt.Sprintf("cannot open %s: %v", path, err),
		}
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return checkResult{
			name:    "Archive",
			error:   true,
			message: fmt.Sprintf("cannot stat %s: %v", path, err),
		}
	}

	up, err := delivery.ReadArchive(f, info.Size())
	if err != nil {
		return checkResult{
			name:    "Archive",
			error:   true,
			message: err.Error(),
		}
	}

	present := up.Sources.Present()
	names := make([]string, len(present))
	for i, tag := range present {
		names[i] = string(tag)
	}

	if _, ok := up.Sources[source.Orders]; !ok {
		return checkResult{
			name:    "Archive",
			error:   true,
			message: fmt.Sprintf("%s has no ORDENES.xlsx (found: %s)", path, strings.Join(names, ", ")),
		}
	}

	msg := fmt.Sprintf("%s (%s)", path, strings.Join(names, ", "))
	if len(up.Ignored) > 0 {
		return checkResult{
			name:    "Archive",
			warning: true,
			message: fmt.Sprintf("%s; ignored: %s", msg, strings.Join(up.Ignored, ", ")),
		}
	}
	return checkResult{
		name:    "Archive",
		message: msg,
	}
}

package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/franz/order-recon/internal/report"
	"github.com/franz/order-recon/internal/store"
	"github.com/franz/order-recon/internal/util"
	"github.com/spf13/viper"
)

// GetConfigString retrieves a string config value with proper precedence:
// 1. Command-line flag (if set)
// 2. Environment variable (RECON_*)
// 3. Config file
// 4. Default value
func GetConfigString(key string, defaultValue string) string {
	val := viper.GetString(key)
	if val == "" {
		return defaultValue
	}
	return val
}

// GetConfigInt retrieves an int config value with proper precedence
func GetConfigInt(key string, defaultValue int) int {
	val := viper.GetInt(key)
	if val == 0 {
		return defaultValue
	}
	return val
}

// GetConfigBool retrieves a bool config value
func GetConfigBool(key string) bool {
	return viper.GetBool(key)
}

func openStore() (*store.Store, error) {
	dbPath := GetConfigString("db", "recon.db")
	db, err := store.OpenWithOptions(dbPath, &store.OpenOptions{
		NetworkOptimized: GetConfigBool("network_db"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

// openEvents creates the JSONL event log under the artifacts directory,
// falling back to a no-op logger
func openEvents() *report.EventLogger {
	level := report.LevelInfo
	if viper.GetBool("quiet") {
		level = report.LevelWarning
	} else if viper.GetBool("verbose") {
		level = report.LevelDebug
	}

	logger, err := report.NewEventLogger(GetConfigString("artifacts", "artifacts"), level)
	if err != nil {
		util.WarnLog("Failed to create event logger: %v", err)
		return report.NullLogger()
	}
	if logger.Path() != "" {
		util.DebugLog("Event log: %s", logger.Path())
	}
	return logger
}

// writeSummary saves sum as artifacts/reports/<timestamp>/<name>
func writeSummary(sum *report.SummaryReport, name string) {
	timestamp := time.Now().Format("20060102-150405")
	path := filepath.Join(GetConfigString("artifacts", "artifacts"), "reports", timestamp, name)

	if err := report.WriteMarkdownReport(sum, path); err != nil {
		util.WarnLog("Failed to write summary report: %v", err)
		return
	}
	util.SuccessLog("Summary report saved to: %s", path)
}

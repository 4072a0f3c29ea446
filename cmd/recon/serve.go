package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/franz/order-recon/internal/server"
	"github.com/franz/order-recon/internal/service"
	"github.com/franz/order-recon/internal/store"
	"github.com/franz/order-recon/internal/util"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve uploads and downloads over HTTP",
	Long: `Start the HTTP file delivery server.

Routes:
  POST /datasets              upload an archive (raw zip body or multipart field "archive")
                              query: date=YYYY-MM-DD, lenient=true
  GET  /datasets/current      the stored dataset as JSON, or ?format=xlsx
  GET  /datasets/current.db   a copy of the SQLite database
  GET  /exports               the per-owner export archive
  GET  /healthz               liveness

With --memory the dataset lives in process memory and is lost on exit.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("listen", ":8080", "address to listen on")
	serveCmd.Flags().Bool("memory", false, "keep the dataset in memory instead of the database")
	serveCmd.Flags().Int64("max-upload", server.DefaultMaxUpload, "maximum upload size in bytes")

	viper.BindPFlag("listen", serveCmd.Flags().Lookup("listen"))
	viper.BindPFlag("max_upload", serveCmd.Flags().Lookup("max-upload"))
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	addr := GetConfigString("listen", ":8080")
	inMemory, _ := cmd.Flags().GetBool("memory")

	events := openEvents()
	defer events.Close()

	cfg := server.Config{
		Logger:    util.Logger(),
		MaxUpload: viper.GetInt64("max_upload"),
	}

	if inMemory {
		util.WarnLog("Dataset kept in memory; it is lost when the server stops")
		cfg.Service = service.New(store.NewMemory(), service.Options{Events: events})
	} else {
		db, err := openStore()
		if err != nil {
			return err
		}
		defer db.Close()

		util.InfoLog("Database: %s", db.Path())
		cfg.Service = service.New(db, service.Options{Events: events})
		cfg.Snapshot = db
	}

	util.InfoLog("Serving on %s (Ctrl+C to stop)", addr)
	if err := server.New(cfg).Serve(ctx, addr); err != nil {
		return err
	}
	util.InfoLog("Server stopped")
	return nil
}

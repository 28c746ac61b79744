package main

import (
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/marker-api/internal/convert"
	"github.com/pdiddy/marker-api/internal/history"
	"github.com/pdiddy/marker-api/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the PDF to Markdown HTTP service",
	Long: `Serve listens for POST /convert uploads (multipart field "file") and
answers with the Markdown Marker produced, the number of pages, the time
taken, and h1/h2/h3 heading counts.

Marker loads its models on the first conversion unless PRELOAD_MODELS=true,
in which case loading happens before the listener starts.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().Int("port", 5000, "TCP port to listen on (env PORT)")
	serveCmd.Flags().String("host", "0.0.0.0", "interface to bind")
	serveCmd.Flags().Bool("preload", false, "load Marker before accepting requests (env PRELOAD_MODELS)")
	serveCmd.Flags().Int("workers", 1, "conversions allowed to run at once")
	serveCmd.Flags().String("history-db", "data/marker-api.db", "SQLite file for conversion history (empty disables)")

	_ = viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
	_ = viper.BindPFlag("server.host", serveCmd.Flags().Lookup("host"))
	_ = viper.BindPFlag("server.preload_models", serveCmd.Flags().Lookup("preload"))
	_ = viper.BindPFlag("server.workers", serveCmd.Flags().Lookup("workers"))
	_ = viper.BindPFlag("server.history_db", serveCmd.Flags().Lookup("history-db"))

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := slog.Default()

	conv, err := newConverter(ctx, cfg)
	if err != nil {
		return err
	}

	opts := []convert.Option{
		convert.WithWorkers(cfg.Server.Workers),
		convert.WithTempDir(cfg.Server.TempDir),
		convert.WithLogger(logger),
	}
	srvCfg := server.Config{
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
		Version:        version,
		Logger:         logger,
	}

	if cfg.Server.HistoryDB != "" {
		store, err := history.Open(cfg.Server.HistoryDB)
		if err != nil {
			return fmt.Errorf("opening history %s: %w", cfg.Server.HistoryDB, err)
		}
		defer store.Close()
		opts = append(opts, convert.WithRecorder(store))
		srvCfg.History = store
	}

	svc := convert.NewService(conv, opts...)

	logger.Info("starting marker-api",
		"version", version,
		"backend", conv.Name(),
		"workers", cfg.Server.Workers,
		"preload", cfg.Server.PreloadModels,
		"history", cfg.Server.HistoryDB)

	if cfg.Server.PreloadModels {
		if err := svc.Loader().Ensure(ctx); err != nil {
			return fmt.Errorf("preloading marker: %w", err)
		}
	}

	addr := net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port))
	return server.ListenAndServe(ctx, addr, server.New(svc, srvCfg).Handler(), cfg.Server.ShutdownTimeout, logger)
}

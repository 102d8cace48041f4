package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joescharf/repolens/internal/analyzer"
	"github.com/joescharf/repolens/internal/api"
	"github.com/joescharf/repolens/internal/quota"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the analysis HTTP API server",
	Long: `Start an HTTP server exposing repository analysis endpoints.

POST /api/v1/analyze returns a full report; POST /api/v1/analyze/stream
streams progress events over Server-Sent Events. Unauthenticated clients
are metered per IP; requests carrying their own provider API key bypass
metering.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveRun(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntP("port", "p", 8080, "port to listen on")
	_ = viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
}

func serveRun(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	// Durable quota backend with automatic in-memory fallback. A failed
	// open degrades the service instead of stopping it.
	var durable quota.Store
	if dbPath := viper.GetString("quota.db_path"); dbPath != "" {
		s, err := quota.NewSQLiteStore(dbPath)
		if err != nil {
			logger.Warn("quota: cannot open durable backend", "path", dbPath, "error", err)
		} else {
			durable = s
		}
	}
	store := quota.NewFallbackStore(durable, logger)
	defer func() { _ = store.Close() }()

	svc := buildService(analyzer.WithLogger(logger))

	window, err := time.ParseDuration(viper.GetString("quota.window"))
	if err != nil {
		window = quota.Window
	}
	server := api.NewServer(svc, store, logger, api.Config{
		TierLimit: viper.GetInt("quota.free_limit"),
		Window:    window,
		DevMode:   viper.GetBool("dev_mode"),
	})

	addr := fmt.Sprintf(":%d", viper.GetInt("server.port"))
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("serving analysis API", "addr", addr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	}
}

package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/credit-delta/internal/server"
	"github.com/sells-group/credit-delta/internal/store"
)

var (
	servePort  int
	serveStore bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP service for features and narratives",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		input, err := inputOptions(cfg)
		if err != nil {
			return err
		}
		srvCfg := server.Config{
			Input:          input,
			Features:       featureOptions(cfg),
			Narrative:      narrativeOptions(cfg),
			AllowedOrigins: cfg.Server.AllowedOrigins,
			MaxBodyBytes:   int64(cfg.Server.MaxBodyMB) << 20,
		}

		if serveStore {
			if err := cfg.Validate("save"); err != nil {
				return err
			}
			st, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.DatabaseURL, poolConfig(cfg))
			if err != nil {
				return eris.Wrap(err, "serve: open store")
			}
			defer st.Close() //nolint:errcheck
			if err := st.Migrate(ctx); err != nil {
				return eris.Wrap(err, "serve: migrate store")
			}
			srvCfg.Store = st
		}

		return startServer(ctx, server.New(srvCfg).Handler(), resolvePort(servePort, cfg.Server.Port))
	},
}

// resolvePort prefers the flag value and falls back to config.
func resolvePort(flag, configured int) int {
	if flag != 0 {
		return flag
	}
	return configured
}

// startServer serves h on port until ctx is done, then shuts down gracefully.
func startServer(ctx context.Context, h http.Handler, port int) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	go func() {
		<-ctx.Done()
		zap.L().Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			zap.L().Warn("server shutdown", zap.Error(err))
		}
	}()

	zap.L().Info("starting server", zap.Int("port", port))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return eris.Wrap(err, "server listen")
	}
	return nil
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	serveCmd.Flags().BoolVar(&serveStore, "store", false, "enable run persistence (save=true and /v1/runs)")
	rootCmd.AddCommand(serveCmd)
}

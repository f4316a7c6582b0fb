package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sagarc03/mediaproxy"
	"github.com/sagarc03/mediaproxy/config"
	mediahttp "github.com/sagarc03/mediaproxy/http"
	"github.com/sagarc03/mediaproxy/metrics"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long:  `Start the mediaproxy HTTP server.`,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().Int("port", 3000, "HTTP server port (env: PORT, MEDIAPROXY_SERVER_PORT)")
	serveCmd.Flags().String("backend", "", "storage backend: s3, minio, filesystem (default: filesystem)")
	serveCmd.Flags().String("storage-path", "", "filesystem backend directory (default: ./data)")
	serveCmd.Flags().String("bucket", "", "S3 bucket (env: S3_BUCKET)")
	serveCmd.Flags().String("region", "", "S3 region (env: AWS_REGION)")
	serveCmd.Flags().Int64("max-upload-bytes", 0, "direct upload ceiling in bytes, 0 for none (env: MAX_UPLOAD_BYTES)")

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.FromContext(cmd.Context())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	gw, closeGateway, err := openGateway(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	defer closeGateway()

	gw = mediaproxy.WithTimeout(gw, cfg.Storage.Timeout)

	handlerConfig := mediahttp.HandlerConfig{
		MaxPresignBodyBytes: cfg.Upload.MaxPresignBodyBytes,
		CORS: mediahttp.CORSConfig{
			Enabled:          cfg.CORS.Enabled,
			AllowedOrigins:   cfg.CORS.AllowedOrigins,
			AllowedMethods:   cfg.CORS.AllowedMethods,
			AllowedHeaders:   cfg.CORS.AllowedHeaders,
			ExposedHeaders:   cfg.CORS.ExposedHeaders,
			AllowCredentials: cfg.CORS.AllowCredentials,
			MaxAge:           cfg.CORS.MaxAge,
		},
	}

	if cfg.Metrics.Enabled {
		m := metrics.New()
		gw = metrics.InstrumentGateway(gw, metrics.NewStorageMetrics(m.Registry()))
		handlerConfig.Metrics = m.Handler()
		handlerConfig.Middleware = append(handlerConfig.Middleware, m.Middleware)
	}

	policy := mediaproxy.NewUploadPolicy(cfg.Upload.AllowedContentTypes, cfg.Upload.MaxUploadBytes)
	service, err := mediaproxy.NewService(gw, policy, mediaproxy.WithPresignExpiry(cfg.Upload.PresignExpiry))
	if err != nil {
		return fmt.Errorf("create service: %w", err)
	}

	handler := mediahttp.NewHandler(&handlerConfig, service)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      handler.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server started",
			"action", "SERVER_START",
			"addr", addr,
			"backend", cfg.Storage.Backend,
			"allowed_content_types", strings.Join(policy.AllowedContentTypes(), ","),
			"max_upload_bytes", policy.MaxUploadBytes(),
			"metrics", cfg.Metrics.Enabled,
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			slog.Error("server failed", "action", "SERVER_ERROR", "err", err)
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down server...")
	shutdownCtx := context.Background()
	if cfg.Server.ShutdownTimeout > 0 {
		var cancel context.CancelFunc
		shutdownCtx, cancel = context.WithTimeout(shutdownCtx, cfg.Server.ShutdownTimeout)
		defer cancel()
	}

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "action", "SERVER_ERROR", "err", err)
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

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

	"github.com/MeKo-Tech/matrixscan/internal/config"
	"github.com/MeKo-Tech/matrixscan/internal/server"
)

// serveCmd represents the serve command.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the live scanning server",
	Long: `Start an HTTP server that runs one scanning session per WebSocket connection.

The server provides the following endpoints:
  GET /ws                              - Live scanning session (WebSocket)
  GET /api/sessions                    - Live and recently ended sessions
  GET /api/sessions/{id}/barcodes      - Barcode list of a session (?format=handoff|yaml)
  GET /health                          - Health check endpoint
  GET /metrics                         - Prometheus metrics

Examples:
  matrixscan serve
  matrixscan serve --port 8080
  matrixscan serve --host 0.0.0.0 --port 3000 --rate-limit-enabled`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()

		srv, err := newScanServer(cfg)
		if err != nil {
			return fmt.Errorf("failed to initialize server: %w", err)
		}
		defer func() { _ = srv.Close() }()

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		host, port := cfg.Server.Host, cfg.Server.Port
		httpServer := &http.Server{
			Addr:              fmt.Sprintf("%s:%d", host, port),
			Handler:           srv.Router(),
			ReadHeaderTimeout: 5 * time.Second,
		}

		go func() {
			slog.Info("Starting scan server", "host", host, "port", port)
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("Server error", "error", err)
				cancel()
			}
		}()

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
		defer signal.Stop(sigChan)

		select {
		case sig := <-sigChan:
			slog.Info("Received shutdown signal", "signal", sig.String())
		case <-ctx.Done():
			slog.Info("Context cancelled, initiating shutdown")
		}

		shutdownTimeout := time.Duration(cfg.Server.ShutdownTimeout) * time.Second
		slog.Info("Starting graceful shutdown", "timeout", shutdownTimeout.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()

		// Ending the sessions first lets their handlers send session_end
		// before the HTTP server stops waiting for them.
		if err := srv.Close(); err != nil {
			slog.Error("Server cleanup error", "error", err)
		}
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("HTTP server shutdown error", "error", err)
		}

		slog.Info("Graceful shutdown completed")
		return nil
	},
}

// newScanServer builds the server from the configuration.
func newScanServer(cfg *config.Config) (*server.Server, error) {
	decOpts, err := cfg.DecoderOptions()
	if err != nil {
		return nil, err
	}
	preOpts, err := cfg.PreprocessOptions()
	if err != nil {
		return nil, err
	}
	dec, err := newDecoder(decOpts)
	if err != nil {
		return nil, err
	}

	var limiter *server.RateLimiter
	if rl := cfg.Server.RateLimit; rl.Enabled {
		limiter = server.NewRateLimiter(rl.SessionsPerMinute, rl.SessionsPerHour, rl.MaxSessionsPerDay, rl.MaxFrameBytesDay)
	}

	return server.NewServer(server.Config{
		CORSOrigin:  cfg.Server.CORSOrigin,
		MaxFrameMB:  int64(cfg.Server.MaxFrameMB),
		IdleTimeout: time.Duration(cfg.Server.IdleTimeoutSec) * time.Second,
		Decoder:     dec,
		Preprocess:  preOpts,
		Candidates:  cfg.CandidateOptions(),
		LabelMode:   cfg.LabelMode(),
		RateLimiter: limiter,
		Logger:      slog.Default(),
	})
}

func init() {
	rootCmd.AddCommand(serveCmd)
	fs := serveCmd.Flags()
	fs.StringP("host", "H", "localhost", "server host")
	fs.IntP("port", "p", 8080, "server port")
	fs.String("cors-origin", "*", "CORS allowed origins")
	fs.Int("max-frame-size", 8, "maximum encoded frame size in MB")
	fs.Int("idle-timeout", 60, "close sessions idle for this many seconds")
	fs.Int("shutdown-timeout", 10, "shutdown timeout in seconds")
	fs.String("labels", "compat", "label mode (compat, exact)")
	fs.Bool("rate-limit-enabled", false, "enable rate limiting")
	fs.Int("sessions-per-minute", 30, "maximum new sessions per minute per client")
	fs.Int("sessions-per-hour", 600, "maximum new sessions per hour per client")
	fs.Int("max-sessions-per-day", 0, "maximum new sessions per day per client (0 = unlimited)")
	fs.Int64("max-frame-bytes-per-day", 0, "maximum frame bytes per day per client (0 = unlimited)")

	bindFlag(fs, "host", "server.host")
	bindFlag(fs, "port", "server.port")
	bindFlag(fs, "cors-origin", "server.cors_origin")
	bindFlag(fs, "max-frame-size", "server.max_frame_mb")
	bindFlag(fs, "idle-timeout", "server.idle_timeout_sec")
	bindFlag(fs, "shutdown-timeout", "server.shutdown_timeout")
	bindFlag(fs, "labels", "labels.mode")
	bindFlag(fs, "rate-limit-enabled", "server.rate_limit.enabled")
	bindFlag(fs, "sessions-per-minute", "server.rate_limit.sessions_per_minute")
	bindFlag(fs, "sessions-per-hour", "server.rate_limit.sessions_per_hour")
	bindFlag(fs, "max-sessions-per-day", "server.rate_limit.max_sessions_per_day")
	bindFlag(fs, "max-frame-bytes-per-day", "server.rate_limit.max_frame_bytes_day")
}

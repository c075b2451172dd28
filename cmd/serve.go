package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kozaktomas/face-enroll/internal/config"
	"github.com/kozaktomas/face-enroll/internal/constants"
	"github.com/kozaktomas/face-enroll/internal/metrics"
	"github.com/kozaktomas/face-enroll/internal/oracle"
	"github.com/kozaktomas/face-enroll/internal/session"
	"github.com/kozaktomas/face-enroll/internal/web"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web server",
	Long: `Start the capture API. A browser client opens a session, posts camera
frames to it and follows guidance and results over server-sent events.
Prometheus metrics are served on /metrics.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 0, "Port to listen on (default from WEB_PORT or 8080)")
	serveCmd.Flags().String("host", "", "Host to bind to (default from WEB_HOST or 0.0.0.0)")
	serveCmd.Flags().Duration("idle-timeout", constants.SessionIdleTimeout, "Drop sessions untouched for this long")
}

// resolveServeHostPort applies the command-line overrides to the web config.
func resolveServeHostPort(cmd *cobra.Command, cfg *config.Config) {
	if port := mustGetInt(cmd, "port"); port > 0 {
		cfg.Web.Port = port
	}
	if host := mustGetString(cmd, "host"); host != "" {
		cfg.Web.Host = host
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	resolveServeHostPort(cmd, cfg)

	sc, err := session.ConfigFrom(cfg)
	if err != nil {
		return err
	}
	idle, err := cmd.Flags().GetDuration("idle-timeout")
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, kv, err := openCredentialStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer kv.Close()
	log.Info().Str("backend", cfg.Database.Backend).Msg("credential backend ready")

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	detector := oracle.NewHTTPDetector(cfg.Oracle.URL, cfg.Oracle.Timeout, oracle.WithMaxFrameSide(cfg.Oracle.MaxFrameSide))
	manager := session.NewManager(detector, store, sc, m)
	go manager.RunSweeper(ctx, constants.SessionSweepInterval, idle)

	server := web.NewServer(cfg, manager, reg)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("error during shutdown")
		}
	}()

	fmt.Printf("Starting Face Enroll API on http://%s:%d\n", cfg.Web.Host, cfg.Web.Port)
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hzrd149/process-pastry/internal/config"
	"github.com/hzrd149/process-pastry/internal/logger"
	"github.com/hzrd149/process-pastry/internal/metrics"
	"github.com/hzrd149/process-pastry/internal/orchestrator"
	"github.com/hzrd149/process-pastry/internal/process"
	"github.com/hzrd149/process-pastry/internal/server"
	itls "github.com/hzrd149/process-pastry/internal/tls"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the daemon: start the managed process and the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(configPath)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "pastry.toml", "path to the daemon TOML config")
	return cmd
}

func runServe(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	log := logger.NewLogger(cfg.LogLevel)
	slog.SetDefault(log)

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	mgr := process.New(process.Spec{
		Command: cfg.Command,
		WorkDir: cfg.WorkDir,
		EnvFile: cfg.EnvFile,
		Log:     cfg.Log,
	})
	mgr.SetLogger(log)

	orch := orchestrator.New(cfg.EnvFile, mgr)
	orch.ExampleFile = cfg.ExampleFile
	orch.SettleDelay = cfg.SettleDelay
	orch.SetLogger(log)

	opts := []server.Option{}
	if cfg.Auth.Enabled() {
		opts = append(opts, server.WithAuth(cfg.Auth.Username, cfg.Auth.Password))
	}
	if cfg.StaticDir != "" {
		opts = append(opts, server.WithStaticDir(cfg.StaticDir))
	}
	if cfg.ProxyTarget != "" {
		opts = append(opts, server.WithProxyTarget(cfg.ProxyTarget))
	}
	router := server.NewRouter(orch, "/api", opts...)

	tlsConfig, err := itls.Setup(cfg.TLS)
	if err != nil {
		return err
	}
	httpServer := &http.Server{
		Addr:              cfg.Listen,
		Handler:           router.Handler(),
		TLSConfig:         tlsConfig,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if tlsConfig != nil {
			log.Info("listening", "addr", cfg.Listen, "tls", true)
			errCh <- httpServer.ListenAndServeTLS("", "")
			return
		}
		log.Info("listening", "addr", cfg.Listen, "tls", false)
		errCh <- httpServer.ListenAndServe()
	}()

	mgr.Start()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		log.Info("shutting down", "signal", sig.String())
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			log.Error("http server failed", "error", err)
		}
	}

	mgr.Stop(cfg.StopTimeout)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(ctx)
	return nil
}

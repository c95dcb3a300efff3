package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/pflag"
	"go.uber.org/automaxprocs/maxprocs"

	"github.com/mdpress/mdpress"
	"github.com/mdpress/mdpress/internal/config"
)

// Version is set at build time via ldflags.
var Version = "dev"

// shutdownGrace bounds how long in-flight conversions may finish after
// a termination signal.
const shutdownGrace = 15 * time.Second

func main() {
	var (
		configPath string
		listen     string
		verbose    bool
	)
	fs := pflag.NewFlagSet("mdpressd", pflag.ContinueOnError)
	fs.StringVarP(&configPath, "config", "c", "", "YAML config file")
	fs.StringVarP(&listen, "listen", "l", "", "listen address (overrides config)")
	fs.BoolVarP(&verbose, "verbose", "v", false, "verbose logging")
	if err := fs.Parse(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.00",
		Level:           log.InfoLevel,
	})
	if verbose {
		logger.SetLevel(log.DebugLevel)
	}

	_, _ = maxprocs.Set(maxprocs.Logger(func(format string, args ...interface{}) {
		logger.Debug(fmt.Sprintf(format, args...))
	}))

	if err := serve(configPath, listen, logger); err != nil {
		logger.Error("server exited", "error", err)
		os.Exit(1)
	}
}

// serve builds the service from config and runs the HTTP server until
// a termination signal.
func serve(configPath, listen string, logger *log.Logger) error {
	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if listen != "" {
		cfg.Listen = listen
	}

	caps := mdpress.DetectCapabilities(cfg.Engines.ExecPath, cfg.Engines.RemoteURL)
	logger.Info("environment capabilities", "chrome", caps.Chrome, "exec", caps.Exec, "remote", caps.Remote)

	opts := []mdpress.Option{
		mdpress.WithCapabilities(caps),
		mdpress.WithLogger(logger),
		mdpress.WithMaxEngines(cfg.MaxEngines),
		mdpress.WithExecPath(cfg.Engines.ExecPath),
		mdpress.WithRemoteURL(cfg.Engines.RemoteURL),
	}
	if cfg.Engines.Reject {
		opts = append(opts, mdpress.WithBackpressure(mdpress.BackpressureReject))
	}
	if cfg.DeadlineMs > 0 {
		opts = append(opts, mdpress.WithDeadline(time.Duration(cfg.DeadlineMs)*time.Millisecond))
	}

	svc, err := mdpress.New(opts...)
	if err != nil {
		return err
	}
	defer svc.Close()

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           newRouter(svc, cfg, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return nil
}

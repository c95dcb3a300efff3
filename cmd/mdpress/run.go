package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"

	"github.com/mdpress/mdpress"
	"github.com/mdpress/mdpress/internal/config"
)

// run performs one conversion: read input, build the service from
// flags and config, convert, write the PDF.
func run(flags *cliFlags) error {
	logger := newLogger(flags.verbose)

	cfg, err := loadConfig(flags)
	if err != nil {
		return err
	}

	markdown, err := readInput(flags.input)
	if err != nil {
		return err
	}

	caps := mdpress.DetectCapabilities(cfg.Engines.ExecPath, cfg.Engines.RemoteURL)
	logger.Debug("environment capabilities", "chrome", caps.Chrome, "exec", caps.Exec, "remote", caps.Remote)

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

	svc, err := mdpress.New(opts...)
	if err != nil {
		return err
	}
	defer svc.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	req := mdpress.Request{
		Markdown:     markdown,
		Template:     cfg.Template,
		HeaderFooter: cfg.HeaderFooter,
		Deadline:     time.Duration(cfg.DeadlineMs) * time.Millisecond,
	}
	if page := pageFromConfig(cfg); page != nil {
		req.Page = page
	}

	start := time.Now()
	outcome, err := svc.Convert(ctx, req)
	if err != nil {
		var failure *mdpress.Failure
		if errors.As(err, &failure) {
			logger.Error("conversion failed", "kind", failure.Kind, "retryable", failure.Retryable())
		}
		return err
	}

	if outcome.ParseDegraded {
		logger.Warn("input contained unparseable markup; rendered as literal text")
	}
	logger.Debug("conversion complete", "engine", outcome.Engine, "bytes", len(outcome.PDF), "elapsed", time.Since(start).Round(time.Millisecond))

	if err := os.WriteFile(flags.output, outcome.PDF, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", flags.output, err)
	}
	fmt.Fprintf(os.Stderr, "wrote %s (%d bytes, %s engine)\n", flags.output, len(outcome.PDF), outcome.Engine)
	return nil
}

// newLogger builds the CLI logger; verbose enables debug level.
func newLogger(verbose bool) *log.Logger {
	level := log.WarnLevel
	if verbose {
		level = log.DebugLevel
	}
	return log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.00",
		Level:           level,
	})
}

// loadConfig merges the optional config file with flag overrides.
// Flags win.
func loadConfig(flags *cliFlags) (*config.Config, error) {
	cfg := config.Default()
	if flags.configPath != "" {
		loaded, err := config.Load(flags.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if flags.template != "" {
		cfg.Template = flags.template
	}
	if flags.pageSize != "" {
		cfg.Page.Size = flags.pageSize
	}
	if flags.orientation != "" {
		cfg.Page.Orientation = flags.orientation
	}
	if flags.margin > 0 {
		cfg.Page.Margin = flags.margin
	}
	if flags.headerFooter {
		cfg.HeaderFooter = true
	}
	if flags.deadlineMs > 0 {
		cfg.DeadlineMs = flags.deadlineMs
	}
	if flags.maxEngines > 0 {
		cfg.MaxEngines = flags.maxEngines
	}
	if flags.execPath != "" {
		cfg.Engines.ExecPath = flags.execPath
	}
	if flags.remoteURL != "" {
		cfg.Engines.RemoteURL = flags.remoteURL
	}
	return cfg, nil
}

// pageFromConfig builds page settings when the config overrides any
// page field; nil keeps the template defaults.
func pageFromConfig(cfg *config.Config) *mdpress.PageSettings {
	if cfg.Page.Size == "" && cfg.Page.Orientation == "" && cfg.Page.Margin == 0 {
		return nil
	}
	page := &mdpress.PageSettings{
		Size:        cfg.Page.Size,
		Orientation: cfg.Page.Orientation,
		Margin:      cfg.Page.Margin,
	}
	if page.Size == "" {
		page.Size = mdpress.PageSizeLetter
	}
	if page.Orientation == "" {
		page.Orientation = mdpress.OrientationPortrait
	}
	if page.Margin == 0 {
		page.Margin = mdpress.DefaultMargin
	}
	return page
}

// readInput reads the markdown source from a file or stdin.
func readInput(path string) (string, error) {
	if path == "" || path == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("reading stdin: %w", err)
		}
		return string(data), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	return string(data), nil
}

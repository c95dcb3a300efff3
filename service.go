package mdpress

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"
)

// defaultDeadline bounds the whole tier chain when the request does
// not set its own budget. Sized to fit typical serverless platform
// ceilings with headroom.
const defaultDeadline = 30 * time.Second

// serviceConfig holds internal configuration for Service.
type serviceConfig struct {
	deadline         time.Duration
	maxEngines       int
	policy           BackpressurePolicy
	advanceOnTimeout bool
	caps             Capabilities
	execPath         string
	remoteURL        string
	newEngine        func(EngineKind) Engine
	maxInputBytes    int
	logger           *log.Logger
}

// Option configures a Service.
type Option func(*serviceConfig)

// WithDeadline sets the default overall conversion budget.
// Panics if d <= 0 (programmer error, similar to time.NewTicker).
func WithDeadline(d time.Duration) Option {
	if d <= 0 {
		panic("mdpress: WithDeadline duration must be positive")
	}
	return func(c *serviceConfig) { c.deadline = d }
}

// WithMaxEngines bounds concurrent full-engine instances.
func WithMaxEngines(n int) Option {
	return func(c *serviceConfig) { c.maxEngines = n }
}

// WithBackpressure selects the saturated-pool policy.
func WithBackpressure(p BackpressurePolicy) Option {
	return func(c *serviceConfig) { c.policy = p }
}

// WithAdvanceOnTimeout controls whether a tier timeout falls through
// to the next tier (default) or terminates the request.
func WithAdvanceOnTimeout(advance bool) Option {
	return func(c *serviceConfig) { c.advanceOnTimeout = advance }
}

// WithCapabilities injects the environment capability signal. The
// service never probes the deployment platform itself.
func WithCapabilities(caps Capabilities) Option {
	return func(c *serviceConfig) { c.caps = caps }
}

// WithExecPath sets the packaged renderer binary for the constrained
// tier.
func WithExecPath(path string) Option {
	return func(c *serviceConfig) { c.execPath = path }
}

// WithRemoteURL sets the remote render service endpoint.
func WithRemoteURL(url string) Option {
	return func(c *serviceConfig) { c.remoteURL = url }
}

// WithMaxInputBytes overrides the input size ceiling.
func WithMaxInputBytes(n int) Option {
	return func(c *serviceConfig) { c.maxInputBytes = n }
}

// WithLogger sets the structured logger for degradation decisions.
func WithLogger(logger *log.Logger) Option {
	return func(c *serviceConfig) { c.logger = logger }
}

// withEngineFactory injects engine construction (tests).
func withEngineFactory(f func(EngineKind) Engine) Option {
	return func(c *serviceConfig) { c.newEngine = f }
}

// Service orchestrates the markdown-to-PDF pipeline: parse, styled
// render, and the engine degradation chain. One Service is shared by
// all concurrent requests.
type Service struct {
	cfg        serviceConfig
	parser     *Parser
	renderer   *styledRenderer
	registry   *Registry
	pool       *EnginePool
	controller *controller
}

// New creates a Service. Use options to customize behavior.
func New(opts ...Option) (*Service, error) {
	cfg := serviceConfig{
		deadline:         defaultDeadline,
		advanceOnTimeout: true,
		caps:             AllCapabilities(),
		maxInputBytes:    MaxInputBytes,
		logger:           log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	registry, err := NewRegistry()
	if err != nil {
		return nil, fmt.Errorf("building style registry: %w", err)
	}

	pool := NewEnginePool(PoolConfig{
		MaxEngines: cfg.maxEngines,
		Policy:     cfg.policy,
		ExecPath:   cfg.execPath,
		RemoteURL:  cfg.remoteURL,
		NewEngine:  cfg.newEngine,
	})

	return &Service{
		cfg:        cfg,
		parser:     NewParser(),
		renderer:   newStyledRenderer(),
		registry:   registry,
		pool:       pool,
		controller: newController(pool, cfg.caps, cfg.advanceOnTimeout, cfg.logger),
	}, nil
}

// Convert runs the full pipeline: validate, parse, render styled
// markup, then drive the engine chain under the overall deadline.
//
// On success the Outcome holds the PDF payload and the tier that
// produced it. On terminal failure the returned error is a *Failure
// carrying the ErrorKind and the per-tier trail; the Outcome is nil.
func (s *Service) Convert(ctx context.Context, req Request) (*Outcome, error) {
	tpl, err := s.validate(req)
	if err != nil {
		return nil, s.failure(err, nil)
	}

	deadline := req.Deadline
	if deadline <= 0 {
		deadline = s.cfg.deadline
	}
	ctx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	doc, degraded := s.parser.Parse(req.Markdown)
	if degraded {
		s.cfg.logger.Warn("markdown degraded to literal text")
	}
	if err := ctx.Err(); err != nil {
		return nil, s.failure(err, nil)
	}

	html, err := s.renderer.Render(doc, tpl)
	if err != nil {
		return nil, s.failure(err, nil)
	}

	opts := &RenderOptions{Page: tpl.Page, HeaderFooter: req.HeaderFooter}
	if req.Page != nil {
		opts.Page = *req.Page
	}

	job := &Job{HTML: html, Doc: doc, Template: tpl}
	pdf, engine, failures, err := s.controller.Render(ctx, job, opts)
	if err != nil {
		return nil, s.failure(err, failures)
	}

	return &Outcome{
		PDF:           pdf,
		ContentType:   pdfContentType,
		Engine:        engine,
		ParseDegraded: degraded,
	}, nil
}

// Close releases pooled engine resources.
func (s *Service) Close() error {
	return s.pool.Close()
}

// Templates lists the registered style template ids.
func (s *Service) Templates() []string {
	return s.registry.IDs()
}

// validate checks boundary constraints and resolves the template.
func (s *Service) validate(req Request) (*StyleTemplate, error) {
	if req.Markdown == "" {
		return nil, ErrEmptyMarkdown
	}
	if len(req.Markdown) > s.cfg.maxInputBytes {
		return nil, fmt.Errorf("%w: %d bytes (limit %d)", ErrInputTooLarge, len(req.Markdown), s.cfg.maxInputBytes)
	}
	if err := req.Page.Validate(); err != nil {
		return nil, err
	}

	id := req.Template
	if id == "" {
		id = TemplateDocument
	}
	return s.registry.Get(id)
}

// failure wraps a terminal error into the structured form the boundary
// layer consumes.
func (s *Service) failure(err error, tiers []TierFailure) *Failure {
	return &Failure{
		Kind:    KindOf(err),
		Message: err.Error(),
		Tiers:   tiers,
	}
}

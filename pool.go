package mdpress

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
)

// Pool sizing constants.
const (
	// MinPoolSize ensures at least one engine slot is available.
	MinPoolSize = 1

	// MaxPoolSize caps browser instances to limit memory (~200MB each).
	MaxPoolSize = 8

	// cpuDivisor leaves headroom for Chrome child processes.
	cpuDivisor = 2
)

// BackpressurePolicy decides what happens when every heavyweight
// engine slot is taken.
type BackpressurePolicy int

const (
	// BackpressureWait queues the request until a slot frees or the
	// caller's context expires.
	BackpressureWait BackpressurePolicy = iota

	// BackpressureReject fails immediately with ErrResourceExhausted.
	BackpressureReject
)

// PoolConfig configures an EnginePool.
type PoolConfig struct {
	MaxEngines int                // concurrent full-engine instances (0 = auto)
	Policy     BackpressurePolicy //
	ExecPath   string             // packaged renderer binary path
	RemoteURL  string             // remote render service endpoint
	NewEngine  func(EngineKind) Engine // engine factory override (tests)
}

// EnginePool owns acquisition and guaranteed release of render engine
// instances across concurrent requests. Full-engine (browser) leases
// are bounded by MaxEngines; lightweight tiers are uncounted but still
// leased so accounting covers every strategy.
type EnginePool struct {
	cfg   PoolConfig
	slots chan struct{}

	mu     sync.Mutex
	idle   map[EngineKind][]Engine
	held   int
	closed bool
}

// NewEnginePool creates a pool. Engines are created lazily on first
// acquire, not at pool creation.
func NewEnginePool(cfg PoolConfig) *EnginePool {
	n := ResolvePoolSize(cfg.MaxEngines)
	cfg.MaxEngines = n
	p := &EnginePool{
		cfg:   cfg,
		slots: make(chan struct{}, n),
		idle:  make(map[EngineKind][]Engine),
	}
	if p.cfg.NewEngine == nil {
		p.cfg.NewEngine = p.defaultEngine
	}
	return p
}

// defaultEngine constructs the production engine for a tier.
func (p *EnginePool) defaultEngine(kind EngineKind) Engine {
	switch kind {
	case EngineChrome:
		return newChromeEngine()
	case EngineExec:
		return newExecEngine(p.cfg.ExecPath)
	case EngineRemote:
		return newRemoteEngine(p.cfg.RemoteURL)
	default:
		return newMinimalEngine()
	}
}

// EngineLease is temporary, exclusive ownership of one engine
// instance. Release is idempotent and must run on every exit path.
type EngineLease struct {
	pool    *EnginePool
	engine  Engine
	counted bool
	once    sync.Once
}

// Engine returns the leased engine instance.
func (l *EngineLease) Engine() Engine { return l.engine }

// Release returns the engine to the pool. Safe to call more than once;
// only the first call has effect.
func (l *EngineLease) Release() {
	l.once.Do(func() {
		l.pool.release(l)
	})
}

// Acquire leases an engine of the given kind. Full-engine leases wait
// for a free slot (bounded by ctx under the wait policy) or fail fast
// under the reject policy. The caller must Release the lease on every
// path.
func (p *EnginePool) Acquire(ctx context.Context, kind EngineKind) (*EngineLease, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrPoolClosed
	}
	p.mu.Unlock()

	counted := kind == EngineChrome
	if counted {
		if err := p.acquireSlot(ctx); err != nil {
			return nil, err
		}
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		if counted {
			<-p.slots
		}
		return nil, ErrPoolClosed
	}

	var engine Engine
	if n := len(p.idle[kind]); n > 0 {
		engine = p.idle[kind][n-1]
		p.idle[kind] = p.idle[kind][:n-1]
	}
	p.held++
	p.mu.Unlock()

	// Create outside the lock: browser construction is slow.
	if engine == nil {
		engine = p.cfg.NewEngine(kind)
	}

	return &EngineLease{pool: p, engine: engine, counted: counted}, nil
}

// acquireSlot claims one heavyweight slot according to the
// backpressure policy.
func (p *EnginePool) acquireSlot(ctx context.Context) error {
	if p.cfg.Policy == BackpressureReject {
		select {
		case p.slots <- struct{}{}:
			return nil
		default:
			return fmt.Errorf("%w: %d engines in use", ErrResourceExhausted, p.cfg.MaxEngines)
		}
	}

	select {
	case p.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%w: waited for engine slot until deadline", ErrResourceExhausted)
		}
		return ctx.Err()
	}
}

// release returns a leased engine. After Close, engines are shut down
// instead of pooled.
func (p *EnginePool) release(l *EngineLease) {
	p.mu.Lock()
	p.held--
	closed := p.closed
	if !closed {
		kind := l.engine.Kind()
		p.idle[kind] = append(p.idle[kind], l.engine)
	}
	p.mu.Unlock()

	if closed {
		_ = l.engine.Close()
	}
	if l.counted {
		<-p.slots
	}
}

// Held reports the number of outstanding leases. Returns to zero when
// every request has completed, whatever the completion path.
func (p *EnginePool) Held() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.held
}

// Size returns the heavyweight slot capacity.
func (p *EnginePool) Size() int { return p.cfg.MaxEngines }

// Close shuts down every idle engine. Leased engines are shut down on
// release. Returns an aggregated error if multiple engines fail to
// close.
func (p *EnginePool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	var engines []Engine
	for kind, list := range p.idle {
		engines = append(engines, list...)
		delete(p.idle, kind)
	}
	p.mu.Unlock()

	var errs []error
	for _, e := range engines {
		if err := e.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ResolvePoolSize determines the engine slot count.
// Priority: explicit value > GOMAXPROCS-based calculation.
func ResolvePoolSize(engines int) int {
	if engines > 0 {
		return engines
	}

	// Auto-calculate based on GOMAXPROCS (adjusted by automaxprocs in mains)
	available := runtime.GOMAXPROCS(0)
	n := available / cpuDivisor

	if n < MinPoolSize {
		return MinPoolSize
	}
	if n > MaxPoolSize {
		return MaxPoolSize
	}
	return n
}

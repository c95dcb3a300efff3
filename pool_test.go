package mdpress

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// mockEngine is a scripted engine for pool and controller tests.
type mockEngine struct {
	kind     EngineKind
	payload  []byte
	err      error
	delay    time.Duration
	renders  atomic.Int32
	closes   atomic.Int32
	closeErr error
}

func (m *mockEngine) Kind() EngineKind { return m.kind }

func (m *mockEngine) Render(ctx context.Context, job *Job, opts *RenderOptions) ([]byte, error) {
	m.renders.Add(1)
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if m.err != nil {
		return nil, m.err
	}
	return m.payload, nil
}

func (m *mockEngine) Close() error {
	m.closes.Add(1)
	return m.closeErr
}

func TestEnginePool_AcquireRelease(t *testing.T) {
	t.Parallel()

	pool := NewEnginePool(PoolConfig{
		MaxEngines: 2,
		NewEngine:  func(kind EngineKind) Engine { return &mockEngine{kind: kind} },
	})

	lease, err := pool.Acquire(context.Background(), EngineChrome)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if got := pool.Held(); got != 1 {
		t.Errorf("Held() = %d, want 1", got)
	}
	if lease.Engine().Kind() != EngineChrome {
		t.Errorf("leased kind = %v, want chrome", lease.Engine().Kind())
	}

	lease.Release()
	if got := pool.Held(); got != 0 {
		t.Errorf("Held() after release = %d, want 0", got)
	}
}

func TestEnginePool_ReleaseIdempotent(t *testing.T) {
	t.Parallel()

	pool := NewEnginePool(PoolConfig{
		MaxEngines: 1,
		NewEngine:  func(kind EngineKind) Engine { return &mockEngine{kind: kind} },
	})

	lease, err := pool.Acquire(context.Background(), EngineChrome)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	lease.Release()
	lease.Release()
	lease.Release()

	if got := pool.Held(); got != 0 {
		t.Errorf("Held() = %d, want 0 after repeated release", got)
	}

	// The slot really came back: another acquire must not block.
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	next, err := pool.Acquire(ctx, EngineChrome)
	if err != nil {
		t.Fatalf("Acquire after release: %v", err)
	}
	next.Release()
}

func TestEnginePool_ReusesIdleEngine(t *testing.T) {
	t.Parallel()

	var created atomic.Int32
	pool := NewEnginePool(PoolConfig{
		MaxEngines: 1,
		NewEngine: func(kind EngineKind) Engine {
			created.Add(1)
			return &mockEngine{kind: kind}
		},
	})

	for range 3 {
		lease, err := pool.Acquire(context.Background(), EngineChrome)
		if err != nil {
			t.Fatalf("Acquire: %v", err)
		}
		lease.Release()
	}

	if got := created.Load(); got != 1 {
		t.Errorf("created %d engines, want 1 (idle reuse)", got)
	}
}

func TestEnginePool_RejectPolicy(t *testing.T) {
	t.Parallel()

	pool := NewEnginePool(PoolConfig{
		MaxEngines: 1,
		Policy:     BackpressureReject,
		NewEngine:  func(kind EngineKind) Engine { return &mockEngine{kind: kind} },
	})

	held, err := pool.Acquire(context.Background(), EngineChrome)
	if err != nil {
		t.Fatalf("first Acquire: %v", err)
	}
	defer held.Release()

	if _, err := pool.Acquire(context.Background(), EngineChrome); !errors.Is(err, ErrResourceExhausted) {
		t.Errorf("second Acquire error = %v, want ErrResourceExhausted", err)
	}
}

func TestEnginePool_WaitPolicyDeadline(t *testing.T) {
	t.Parallel()

	pool := NewEnginePool(PoolConfig{
		MaxEngines: 1,
		Policy:     BackpressureWait,
		NewEngine:  func(kind EngineKind) Engine { return &mockEngine{kind: kind} },
	})

	held, err := pool.Acquire(context.Background(), EngineChrome)
	if err != nil {
		t.Fatalf("first Acquire: %v", err)
	}
	defer held.Release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := pool.Acquire(ctx, EngineChrome); !errors.Is(err, ErrResourceExhausted) {
		t.Errorf("waiting Acquire error = %v, want ErrResourceExhausted", err)
	}
}

func TestEnginePool_WaitPolicyUnblocksOnRelease(t *testing.T) {
	t.Parallel()

	pool := NewEnginePool(PoolConfig{
		MaxEngines: 1,
		Policy:     BackpressureWait,
		NewEngine:  func(kind EngineKind) Engine { return &mockEngine{kind: kind} },
	})

	held, err := pool.Acquire(context.Background(), EngineChrome)
	if err != nil {
		t.Fatalf("first Acquire: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		lease, err := pool.Acquire(ctx, EngineChrome)
		if err == nil {
			lease.Release()
		}
		done <- err
	}()

	time.Sleep(10 * time.Millisecond)
	held.Release()

	if err := <-done; err != nil {
		t.Errorf("queued Acquire after release: %v", err)
	}
}

func TestEnginePool_LightweightTiersUncounted(t *testing.T) {
	t.Parallel()

	pool := NewEnginePool(PoolConfig{
		MaxEngines: 1,
		Policy:     BackpressureReject,
		NewEngine:  func(kind EngineKind) Engine { return &mockEngine{kind: kind} },
	})

	// Minimal leases do not consume the browser slot budget.
	var leases []*EngineLease
	for range 4 {
		lease, err := pool.Acquire(context.Background(), EngineMinimal)
		if err != nil {
			t.Fatalf("minimal Acquire: %v", err)
		}
		leases = append(leases, lease)
	}
	if got := pool.Held(); got != 4 {
		t.Errorf("Held() = %d, want 4", got)
	}
	for _, l := range leases {
		l.Release()
	}
	if got := pool.Held(); got != 0 {
		t.Errorf("Held() = %d, want 0", got)
	}
}

func TestEnginePool_ConcurrentLeaseAccounting(t *testing.T) {
	t.Parallel()

	pool := NewEnginePool(PoolConfig{
		MaxEngines: 4,
		NewEngine:  func(kind EngineKind) Engine { return &mockEngine{kind: kind} },
	})

	var wg sync.WaitGroup
	for i := range 32 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			kind := EngineChrome
			if i%2 == 0 {
				kind = EngineMinimal
			}
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			lease, err := pool.Acquire(ctx, kind)
			if err != nil {
				t.Errorf("Acquire: %v", err)
				return
			}
			defer lease.Release()
			_, _ = lease.Engine().Render(ctx, &Job{}, nil)
		}(i)
	}
	wg.Wait()

	if got := pool.Held(); got != 0 {
		t.Errorf("Held() = %d, want 0 after all requests completed", got)
	}
}

func TestEnginePool_Close(t *testing.T) {
	t.Parallel()

	engines := make(map[EngineKind]*mockEngine)
	var mu sync.Mutex
	pool := NewEnginePool(PoolConfig{
		MaxEngines: 2,
		NewEngine: func(kind EngineKind) Engine {
			e := &mockEngine{kind: kind}
			mu.Lock()
			engines[kind] = e
			mu.Unlock()
			return e
		},
	})

	lease, err := pool.Acquire(context.Background(), EngineChrome)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	lease.Release()

	if err := pool.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if got := engines[EngineChrome].closes.Load(); got != 1 {
		t.Errorf("idle engine closed %d times, want 1", got)
	}

	if _, err := pool.Acquire(context.Background(), EngineChrome); !errors.Is(err, ErrPoolClosed) {
		t.Errorf("Acquire after Close error = %v, want ErrPoolClosed", err)
	}

	// Second Close is a no-op.
	if err := pool.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

func TestEnginePool_CloseWithOutstandingLease(t *testing.T) {
	t.Parallel()

	var engine *mockEngine
	pool := NewEnginePool(PoolConfig{
		MaxEngines: 1,
		NewEngine: func(kind EngineKind) Engine {
			engine = &mockEngine{kind: kind}
			return engine
		},
	})

	lease, err := pool.Acquire(context.Background(), EngineChrome)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if err := pool.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// The in-flight engine shuts down when its lease ends.
	lease.Release()
	if got := engine.closes.Load(); got != 1 {
		t.Errorf("leased engine closed %d times after release, want 1", got)
	}
	if got := pool.Held(); got != 0 {
		t.Errorf("Held() = %d, want 0", got)
	}
}

func TestResolvePoolSize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		engines int
		want    int
	}{
		{name: "explicit wins", engines: 3, want: 3},
		{name: "explicit above cap kept", engines: 12, want: 12},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := ResolvePoolSize(tt.engines); got != tt.want {
				t.Errorf("ResolvePoolSize(%d) = %d, want %d", tt.engines, got, tt.want)
			}
		})
	}

	t.Run("auto within bounds", func(t *testing.T) {
		t.Parallel()
		got := ResolvePoolSize(0)
		if got < MinPoolSize || got > MaxPoolSize {
			t.Errorf("ResolvePoolSize(0) = %d, want within [%d, %d]", got, MinPoolSize, MaxPoolSize)
		}
	})
}

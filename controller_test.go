package mdpress

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
)

// scriptedPool builds a pool whose engines are mocks looked up by kind.
func scriptedPool(engines map[EngineKind]*mockEngine) *EnginePool {
	return NewEnginePool(PoolConfig{
		MaxEngines: 2,
		NewEngine: func(kind EngineKind) Engine {
			if e, ok := engines[kind]; ok {
				return e
			}
			return &mockEngine{kind: kind, payload: []byte("%PDF-mock")}
		},
	})
}

func testController(engines map[EngineKind]*mockEngine, caps Capabilities, advanceOnTimeout bool) *controller {
	return newController(scriptedPool(engines), caps, advanceOnTimeout, log.New(io.Discard))
}

func TestController_FirstTierSucceeds(t *testing.T) {
	t.Parallel()

	engines := map[EngineKind]*mockEngine{
		EngineChrome: {kind: EngineChrome, payload: []byte("%PDF-chrome")},
		EngineExec:   {kind: EngineExec, payload: []byte("%PDF-exec")},
	}
	c := testController(engines, AllCapabilities(), true)

	pdf, kind, failures, err := c.Render(context.Background(), &Job{}, nil)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if kind != EngineChrome {
		t.Errorf("engine = %v, want chrome", kind)
	}
	if string(pdf) != "%PDF-chrome" {
		t.Errorf("payload = %q", pdf)
	}
	if len(failures) != 0 {
		t.Errorf("failures = %v, want none", failures)
	}
	if got := engines[EngineExec].renders.Load(); got != 0 {
		t.Errorf("lower tier rendered %d times after success, want 0", got)
	}
}

func TestController_DegradesInOrder(t *testing.T) {
	t.Parallel()

	engines := map[EngineKind]*mockEngine{
		EngineChrome: {kind: EngineChrome, err: ErrEngineUnavailable},
		EngineExec:   {kind: EngineExec, err: ErrEngineRender},
		EngineRemote: {kind: EngineRemote, err: ErrNetworkUnavailable},
	}
	c := testController(engines, AllCapabilities(), true)

	pdf, kind, failures, err := c.Render(context.Background(), &Job{}, nil)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if kind != EngineMinimal {
		t.Errorf("engine = %v, want minimal", kind)
	}
	if len(pdf) == 0 {
		t.Error("empty payload from final tier")
	}

	wantOrder := []EngineKind{EngineChrome, EngineExec, EngineRemote}
	if len(failures) != len(wantOrder) {
		t.Fatalf("failure trail length = %d, want %d", len(failures), len(wantOrder))
	}
	for i, want := range wantOrder {
		if failures[i].Engine != want {
			t.Errorf("failures[%d].Engine = %v, want %v", i, failures[i].Engine, want)
		}
	}
}

func TestController_SkipsUnviableTiers(t *testing.T) {
	t.Parallel()

	engines := map[EngineKind]*mockEngine{
		EngineChrome: {kind: EngineChrome, payload: []byte("%PDF-chrome")},
		EngineExec:   {kind: EngineExec, payload: []byte("%PDF-exec")},
	}
	caps := Capabilities{Chrome: false, Exec: true, Remote: false}
	c := testController(engines, caps, true)

	_, kind, _, err := c.Render(context.Background(), &Job{}, nil)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if kind != EngineExec {
		t.Errorf("engine = %v, want exec (chrome ruled out)", kind)
	}
	if got := engines[EngineChrome].renders.Load(); got != 0 {
		t.Errorf("unviable tier rendered %d times, want 0", got)
	}
}

func TestController_AllTiersFail(t *testing.T) {
	t.Parallel()

	engines := map[EngineKind]*mockEngine{
		EngineChrome:  {kind: EngineChrome, err: ErrEngineUnavailable},
		EngineExec:    {kind: EngineExec, err: ErrEngineRender},
		EngineRemote:  {kind: EngineRemote, err: ErrRemoteQuota},
		EngineMinimal: {kind: EngineMinimal, err: ErrEngineRender},
	}
	c := testController(engines, AllCapabilities(), true)

	_, _, failures, err := c.Render(context.Background(), &Job{}, nil)
	if !errors.Is(err, ErrAllTiersFailed) {
		t.Fatalf("error = %v, want ErrAllTiersFailed", err)
	}
	if len(failures) != 4 {
		t.Errorf("failure trail length = %d, want 4", len(failures))
	}
	// The terminal error names every failing tier.
	for _, tier := range []string{"chrome", "exec", "remote", "minimal"} {
		if !strings.Contains(err.Error(), tier) {
			t.Errorf("terminal error missing tier %q: %v", tier, err)
		}
	}
}

func TestController_ResourceExhaustionIsTerminal(t *testing.T) {
	t.Parallel()

	engines := map[EngineKind]*mockEngine{
		EngineChrome:  {kind: EngineChrome, err: ErrResourceExhausted},
		EngineMinimal: {kind: EngineMinimal, payload: []byte("%PDF-min")},
	}
	c := testController(engines, Capabilities{Chrome: true}, true)

	_, _, _, err := c.Render(context.Background(), &Job{}, nil)
	if !errors.Is(err, ErrResourceExhausted) {
		t.Errorf("error = %v, want ErrResourceExhausted", err)
	}
	if got := engines[EngineMinimal].renders.Load(); got != 0 {
		t.Errorf("chain advanced past resource exhaustion: minimal rendered %d times", got)
	}
}

func TestController_CancellationIsTerminal(t *testing.T) {
	t.Parallel()

	engines := map[EngineKind]*mockEngine{
		EngineChrome:  {kind: EngineChrome, err: context.Canceled},
		EngineMinimal: {kind: EngineMinimal, payload: []byte("%PDF-min")},
	}
	c := testController(engines, Capabilities{Chrome: true}, true)

	_, _, _, err := c.Render(context.Background(), &Job{}, nil)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
	if got := engines[EngineMinimal].renders.Load(); got != 0 {
		t.Error("chain advanced past caller cancellation")
	}
}

func TestController_TimeoutAdvancePolicy(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		advance  bool
		wantKind EngineKind
		wantErr  error
	}{
		{name: "advance on timeout", advance: true, wantKind: EngineMinimal},
		{name: "stop on timeout", advance: false, wantErr: ErrEngineTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			engines := map[EngineKind]*mockEngine{
				EngineChrome:  {kind: EngineChrome, err: ErrEngineTimeout},
				EngineMinimal: {kind: EngineMinimal, payload: []byte("%PDF-min")},
			}
			c := testController(engines, Capabilities{Chrome: true}, tt.advance)

			_, kind, _, err := c.Render(context.Background(), &Job{}, nil)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Render: %v", err)
			}
			if kind != tt.wantKind {
				t.Errorf("engine = %v, want %v", kind, tt.wantKind)
			}
		})
	}
}

func TestController_BudgetStopsNewTiers(t *testing.T) {
	t.Parallel()

	engines := map[EngineKind]*mockEngine{
		EngineChrome: {kind: EngineChrome, err: ErrEngineRender, delay: 30 * time.Millisecond},
	}
	c := testController(engines, Capabilities{Chrome: true}, true)

	// Budget covers the first tier but leaves less than the floor for
	// anything after it.
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, _, _, err := c.Render(ctx, &Job{}, nil)
	if !errors.Is(err, ErrDeadlineExceeded) {
		t.Fatalf("error = %v, want ErrDeadlineExceeded", err)
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("render ran %v past a 50ms budget", elapsed)
	}
}

func TestController_LeasesReturnAfterRender(t *testing.T) {
	t.Parallel()

	engines := map[EngineKind]*mockEngine{
		EngineChrome: {kind: EngineChrome, err: ErrEngineUnavailable},
	}
	pool := scriptedPool(engines)
	c := newController(pool, AllCapabilities(), true, log.New(io.Discard))

	if _, _, _, err := c.Render(context.Background(), &Job{}, nil); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if got := pool.Held(); got != 0 {
		t.Errorf("Held() = %d after render, want 0", got)
	}
}

func TestControllerStateString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		state controllerState
		want  string
	}{
		{stateStart, "start"},
		{stateTryChrome, "try_chrome"},
		{stateTryExec, "try_exec"},
		{stateTryRemote, "try_remote"},
		{stateTryMinimal, "try_minimal"},
		{stateDone, "done"},
		{stateFailed, "failed"},
		{controllerState(42), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("%d.String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}

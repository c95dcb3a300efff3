package mdpress

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// controllerState enumerates the degradation state machine. One state
// per tier; Done and Failed are terminal.
type controllerState int

const (
	stateStart controllerState = iota
	stateTryChrome
	stateTryExec
	stateTryRemote
	stateTryMinimal
	stateDone
	stateFailed
)

// String returns the state name for logging.
func (s controllerState) String() string {
	switch s {
	case stateStart:
		return "start"
	case stateTryChrome:
		return "try_chrome"
	case stateTryExec:
		return "try_exec"
	case stateTryRemote:
		return "try_remote"
	case stateTryMinimal:
		return "try_minimal"
	case stateDone:
		return "done"
	case stateFailed:
		return "failed"
	}
	return "unknown"
}

// stateFor maps an engine tier to its machine state.
func stateFor(kind EngineKind) controllerState {
	switch kind {
	case EngineChrome:
		return stateTryChrome
	case EngineExec:
		return stateTryExec
	case EngineRemote:
		return stateTryRemote
	case EngineMinimal:
		return stateTryMinimal
	}
	return stateFailed
}

// minTierBudget is the smallest remaining budget worth starting a tier
// with. Below it the controller stops instead of launching a render
// that cannot finish.
const minTierBudget = 25 * time.Millisecond

// controller sequences render engine tiers, enforcing the overall
// wall-clock budget and deciding when to fall through to the next
// tier. The tier list comes from the environment capability signal,
// resolved once per process: tiers known to be unviable are never
// tried.
type controller struct {
	pool             *EnginePool
	tiers            []EngineKind
	advanceOnTimeout bool
	logger           *log.Logger
}

// newController builds a controller over the viable tiers.
func newController(pool *EnginePool, caps Capabilities, advanceOnTimeout bool, logger *log.Logger) *controller {
	return &controller{
		pool:             pool,
		tiers:            caps.Tiers(),
		advanceOnTimeout: advanceOnTimeout,
		logger:           logger,
	}
}

// Render drives the state machine:
//
//	Start -> TryChrome -> TryExec -> TryRemote -> TryMinimal -> Done|Failed
//
// skipping tiers the environment ruled out. It advances on engine
// failure according to the transition policy and returns the first
// successful payload, the tier that produced it, and the failure trail
// of every tier tried before it.
func (c *controller) Render(ctx context.Context, job *Job, opts *RenderOptions) ([]byte, EngineKind, []TierFailure, error) {
	state := stateStart
	var failures []TierFailure

	for i, kind := range c.tiers {
		if err := remainingBudget(ctx); err != nil {
			c.logger.Warn("render budget exhausted", "state", state, "tiers_failed", len(failures))
			return nil, EngineNone, failures, err
		}

		state = stateFor(kind)
		c.logger.Debug("trying render tier", "state", state, "attempt", i+1)

		pdf, err := c.renderTier(ctx, kind, job, opts)
		if err == nil {
			c.logger.Debug("render tier succeeded", "state", stateDone, "tier", state, "bytes", len(pdf))
			return pdf, kind, failures, nil
		}

		failures = append(failures, TierFailure{Engine: kind, Err: err})
		advance, terminal := c.transition(err)
		c.logger.Warn("render tier failed", "state", state, "error", err, "advance", advance)
		if !advance {
			return nil, EngineNone, failures, terminal
		}
	}

	c.logger.Warn("all render tiers exhausted", "state", stateFailed, "tiers_failed", len(failures))
	return nil, EngineNone, failures, fmt.Errorf("%w: %s", ErrAllTiersFailed, failureTrail(failures))
}

// renderTier leases an engine for one tier and renders with the
// remainder of the overall budget. The lease is released on every exit
// path.
func (c *controller) renderTier(ctx context.Context, kind EngineKind, job *Job, opts *RenderOptions) ([]byte, error) {
	lease, err := c.pool.Acquire(ctx, kind)
	if err != nil {
		return nil, err
	}
	defer lease.Release()

	return lease.Engine().Render(ctx, job, opts)
}

// transition decides whether a tier failure advances the chain or
// terminates the request. Resource exhaustion and caller cancellation
// are terminal; engine-level failures advance, timeouts advance per
// policy.
func (c *controller) transition(err error) (advance bool, terminal error) {
	switch {
	case errors.Is(err, ErrResourceExhausted), errors.Is(err, ErrPoolClosed):
		return false, err
	case errors.Is(err, context.Canceled):
		return false, err
	case errors.Is(err, ErrEngineTimeout), errors.Is(err, context.DeadlineExceeded):
		if c.advanceOnTimeout {
			return true, nil
		}
		return false, err
	case errors.Is(err, ErrEngineUnavailable),
		errors.Is(err, ErrEngineRender),
		errors.Is(err, ErrNetworkUnavailable),
		errors.Is(err, ErrRemoteQuota):
		return true, nil
	}
	// Unclassified engine errors behave like render errors.
	return true, nil
}

// remainingBudget checks the overall deadline before a tier starts.
func remainingBudget(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w: %v", ErrDeadlineExceeded, err)
		}
		return err
	}
	if deadline, ok := ctx.Deadline(); ok {
		if time.Until(deadline) < minTierBudget {
			return fmt.Errorf("%w: %s left", ErrDeadlineExceeded, time.Until(deadline).Round(time.Millisecond))
		}
	}
	return nil
}

// failureTrail formats the per-tier failure list for the terminal
// error message.
func failureTrail(failures []TierFailure) string {
	parts := make([]string, len(failures))
	for i, f := range failures {
		parts[i] = fmt.Sprintf("%s: %v", f.Engine, f.Err)
	}
	return strings.Join(parts, "; ")
}

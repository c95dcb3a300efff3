package mdpress

import "context"

// EngineKind identifies a render engine tier. The set is closed and
// ordered from highest to lowest fidelity.
type EngineKind int

const (
	EngineNone EngineKind = iota
	EngineChrome
	EngineExec
	EngineRemote
	EngineMinimal
)

// String returns the stable identifier for the kind.
func (k EngineKind) String() string {
	switch k {
	case EngineChrome:
		return "chrome"
	case EngineExec:
		return "exec"
	case EngineRemote:
		return "remote"
	case EngineMinimal:
		return "minimal"
	}
	return "none"
}

// Job is the unit of work handed to an engine: the styled markup plus
// the semantic tree it was rendered from. Browser-grade engines consume
// the markup; the minimal engine draws from the tree directly.
type Job struct {
	HTML     string
	Doc      *Node
	Template *StyleTemplate
}

// Engine turns styled markup into a paginated PDF. Implementations
// classify every failure as one of the engine sentinel errors
// (ErrEngineUnavailable, ErrEngineTimeout, ErrEngineRender,
// ErrNetworkUnavailable, ErrRemoteQuota) so the degradation controller
// can decide tier advancement with errors.Is alone.
//
// Render must respect ctx: cancellation or deadline expiry aborts the
// in-flight render promptly.
type Engine interface {
	Kind() EngineKind
	Render(ctx context.Context, job *Job, opts *RenderOptions) ([]byte, error)
	Close() error
}

// TierFailure records one failed tier in the degradation chain.
type TierFailure struct {
	Engine EngineKind
	Err    error
}

// Compile-time interface checks.
var (
	_ Engine = (*chromeEngine)(nil)
	_ Engine = (*execEngine)(nil)
	_ Engine = (*remoteEngine)(nil)
	_ Engine = (*minimalEngine)(nil)
)

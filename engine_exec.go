package mdpress

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// defaultExecBinary is the packaged renderer driven by the constrained
// tier. It reads HTML on stdin and writes PDF on stdout.
const defaultExecBinary = "wkhtmltopdf"

// commandRunner abstracts command execution to enable testing without
// real subprocesses.
type commandRunner interface {
	Run(ctx context.Context, name string, args []string, stdin string) (stdout []byte, stderr string, err error)
}

// execRunner implements commandRunner using os/exec.
type execRunner struct{}

func (r *execRunner) Run(ctx context.Context, name string, args []string, stdin string) ([]byte, string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = strings.NewReader(stdin)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	return stdout.Bytes(), stderr.String(), err
}

// execEngine is the constrained-environment tier: a trimmed packaged
// renderer binary. Lower fidelity ceiling than a full browser, much
// faster cold start, suited to restricted filesystem/binary-size
// limits.
type execEngine struct {
	path   string
	runner commandRunner
}

// newExecEngine creates an execEngine for the given binary path.
// An empty path selects the default packaged renderer.
func newExecEngine(path string) *execEngine {
	if path == "" {
		path = defaultExecBinary
	}
	return &execEngine{path: path, runner: &execRunner{}}
}

func (e *execEngine) Kind() EngineKind { return EngineExec }

// Render pipes the styled markup through the renderer binary.
func (e *execEngine) Render(ctx context.Context, job *Job, opts *RenderOptions) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, classifyCtxErr(err)
	}

	args := buildExecArgs(opts)
	out, stderr, err := e.runner.Run(ctx, e.path, args, job.HTML)
	if err != nil {
		switch {
		case errors.Is(err, exec.ErrNotFound):
			return nil, fmt.Errorf("%w: %s not found: %v", ErrEngineUnavailable, e.path, err)
		case ctx.Err() != nil:
			return nil, classifyCtxErr(ctx.Err())
		default:
			return nil, fmt.Errorf("%w: %s: %v", ErrEngineRender, strings.TrimSpace(stderr), err)
		}
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("%w: renderer produced no output", ErrEngineRender)
	}
	return out, nil
}

// Close is a no-op: the binary runs per-request, nothing is held.
func (e *execEngine) Close() error { return nil }

// buildExecArgs maps render options onto renderer flags. Trailing
// "- -" selects stdin input and stdout output.
func buildExecArgs(opts *RenderOptions) []string {
	args := []string{"--quiet", "--enable-local-file-access"}

	page := PageSettings{Size: PageSizeLetter, Orientation: OrientationPortrait, Margin: DefaultMargin}
	if opts != nil {
		page = opts.Page
	}

	args = append(args,
		"--page-size", strings.ToUpper(pageSizeName(page.Size)),
		"--orientation", orientationName(page.Orientation),
		"--margin-top", fmt.Sprintf("%.2fin", page.Margin),
		"--margin-bottom", fmt.Sprintf("%.2fin", page.Margin),
		"--margin-left", fmt.Sprintf("%.2fin", page.Margin),
		"--margin-right", fmt.Sprintf("%.2fin", page.Margin),
	)

	if opts != nil && opts.HeaderFooter {
		args = append(args, "--footer-right", "[page]/[topage]", "--footer-font-size", "8")
	}

	return append(args, "-", "-")
}

// pageSizeName maps our size constants onto the renderer's names.
func pageSizeName(size string) string {
	switch strings.ToLower(size) {
	case PageSizeA4:
		return "a4"
	case PageSizeLegal:
		return "legal"
	}
	return "letter"
}

// orientationName normalizes orientation for the renderer.
func orientationName(orientation string) string {
	if strings.ToLower(orientation) == OrientationLandscape {
		return "Landscape"
	}
	return "Portrait"
}

package mdpress

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// maxRemoteResponseBytes caps how much of a remote response is read.
const maxRemoteResponseBytes = 64 << 20 // 64 MiB

// remoteEngine delegates rendering to a network-accessible rendering
// service. No local heavyweight dependency, but network latency and
// two extra failure modes: the service being unreachable and its quota
// being exhausted.
type remoteEngine struct {
	url    string
	client *http.Client
}

// newRemoteEngine creates a remoteEngine posting to url. The overall
// request deadline is carried by the context, so the client itself has
// no timeout.
func newRemoteEngine(url string) *remoteEngine {
	return &remoteEngine{url: url, client: &http.Client{}}
}

func (e *remoteEngine) Kind() EngineKind { return EngineRemote }

// Render posts the styled markup and expects a PDF back.
func (e *remoteEngine) Render(ctx context.Context, job *Job, opts *RenderOptions) ([]byte, error) {
	if e.url == "" {
		return nil, fmt.Errorf("%w: no remote render service configured", ErrEngineUnavailable)
	}
	if err := ctx.Err(); err != nil {
		return nil, classifyCtxErr(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, strings.NewReader(job.HTML))
	if err != nil {
		return nil, fmt.Errorf("%w: building request: %v", ErrEngineRender, err)
	}
	req.Header.Set("Content-Type", "text/html; charset=utf-8")
	req.Header.Set("Accept", pdfContentType)
	if opts != nil {
		req.Header.Set("X-Page-Size", pageSizeName(opts.Page.Size))
		req.Header.Set("X-Page-Orientation", orientationName(opts.Page.Orientation))
		req.Header.Set("X-Page-Margin", fmt.Sprintf("%.2f", opts.Page.Margin))
		if opts.HeaderFooter {
			req.Header.Set("X-Header-Footer", "1")
		}
	}

	resp, err := e.client.Do(req)
	if err != nil {
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			return nil, fmt.Errorf("%w: %v", ErrEngineTimeout, err)
		case ctx.Err() != nil:
			return nil, ctx.Err()
		default:
			return nil, fmt.Errorf("%w: %v", ErrNetworkUnavailable, err)
		}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("%w: status %d", ErrRemoteQuota, resp.StatusCode)
	case resp.StatusCode == http.StatusServiceUnavailable:
		return nil, fmt.Errorf("%w: status %d", ErrNetworkUnavailable, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%w: status %d", ErrEngineRender, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRemoteResponseBytes))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
			return nil, classifyCtxErr(context.DeadlineExceeded)
		}
		return nil, fmt.Errorf("%w: reading response: %v", ErrNetworkUnavailable, err)
	}
	if len(body) == 0 {
		return nil, fmt.Errorf("%w: empty response", ErrEngineRender)
	}
	return body, nil
}

// Close is a no-op: connections are managed by the shared transport.
func (e *remoteEngine) Close() error {
	e.client.CloseIdleConnections()
	return nil
}

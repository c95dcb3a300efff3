package mdpress

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// marginBottomWithFooter leaves extra space for the native footer.
const marginBottomWithFooter = 0.75

// footerFontFamily is the font stack for native header/footer text.
const footerFontFamily = "sans-serif"

// chromeEngine is the full-fidelity tier: headless Chrome via go-rod.
// Highest quality (accurate CSS layout, web fonts), highest startup
// cost. The browser is launched lazily on first render and reused.
type chromeEngine struct {
	mu      sync.Mutex
	browser *rod.Browser
}

// newChromeEngine creates a chromeEngine. No browser is launched until
// the first render.
func newChromeEngine() *chromeEngine {
	return &chromeEngine{}
}

func (e *chromeEngine) Kind() EngineKind { return EngineChrome }

// ensureBrowser lazily launches and connects to the browser.
func (e *chromeEngine) ensureBrowser() (*rod.Browser, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.browser != nil {
		return e.browser, nil
	}

	l := launcher.New()

	// Use pre-installed browser if specified (Docker/containerized environments)
	if bin := os.Getenv("ROD_BROWSER_BIN"); bin != "" {
		l = l.Bin(bin)
	}

	// NoSandbox required for CI and containerized environments
	if os.Getenv("CI") == "true" || os.Getenv("ROD_BROWSER_BIN") != "" {
		l = l.NoSandbox(true)
	}

	u, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("%w: %w: %v", ErrEngineUnavailable, ErrBrowserConnect, err)
	}

	browser := rod.New().ControlURL(u)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("%w: %w: %v", ErrEngineUnavailable, ErrBrowserConnect, err)
	}
	e.browser = browser
	return browser, nil
}

// Render loads the styled markup in a fresh page and prints it to PDF.
func (e *chromeEngine) Render(ctx context.Context, job *Job, opts *RenderOptions) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, classifyCtxErr(err)
	}

	browser, err := e.ensureBrowser()
	if err != nil {
		return nil, err
	}

	tmpPath, cleanup, err := writeTempFile(job.HTML, "html")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEngineRender, err)
	}
	defer cleanup()

	page, err := browser.Page(proto.TargetCreateTarget{URL: "file://" + tmpPath})
	if err != nil {
		return nil, fmt.Errorf("%w: %w: %v", ErrEngineRender, ErrPageCreate, err)
	}
	defer page.Close()

	timeout := time.Hour
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
		if timeout <= 0 {
			return nil, fmt.Errorf("%w: %v", ErrEngineTimeout, context.DeadlineExceeded)
		}
	}

	if err := page.Context(ctx).Timeout(timeout).WaitLoad(); err != nil {
		if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) {
			return nil, classifyCtxErr(err)
		}
		return nil, fmt.Errorf("%w: %w: %v", ErrEngineRender, ErrPageLoad, err)
	}

	reader, err := page.Context(ctx).PDF(buildPrintOptions(opts))
	if err != nil {
		if ctx.Err() != nil {
			return nil, classifyCtxErr(ctx.Err())
		}
		return nil, fmt.Errorf("%w: %v", ErrEngineRender, err)
	}

	pdfBuf, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("%w: reading PDF stream: %v", ErrEngineRender, err)
	}
	return pdfBuf, nil
}

// Close releases browser resources.
func (e *chromeEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.browser != nil {
		err := e.browser.Close()
		e.browser = nil
		return err
	}
	return nil
}

// buildPrintOptions constructs proto.PagePrintToPDF from the render
// options: page geometry plus an optional native header/footer.
func buildPrintOptions(opts *RenderOptions) *proto.PagePrintToPDF {
	page := PageSettings{Size: PageSizeLetter, Orientation: OrientationPortrait, Margin: DefaultMargin}
	headerFooter := false
	if opts != nil {
		page = opts.Page
		headerFooter = opts.HeaderFooter
	}

	width, height := page.Dimensions()
	margin := page.Margin
	marginBottom := margin
	if headerFooter && marginBottom < marginBottomWithFooter {
		marginBottom = marginBottomWithFooter
	}

	pdfOpts := &proto.PagePrintToPDF{
		PaperWidth:      floatPtr(width),
		PaperHeight:     floatPtr(height),
		MarginTop:       floatPtr(margin),
		MarginBottom:    floatPtr(marginBottom),
		MarginLeft:      floatPtr(margin),
		MarginRight:     floatPtr(margin),
		PrintBackground: true,
	}

	if headerFooter {
		pdfOpts.DisplayHeaderFooter = true
		pdfOpts.HeaderTemplate = "<span></span>"
		pdfOpts.FooterTemplate = fmt.Sprintf(
			`<div style="font-size: 10px; font-family: %s; color: #aaa; width: 100%%; text-align: right; padding: 0 0.5in;"><span class="pageNumber"></span>/<span class="totalPages"></span></div>`,
			footerFontFamily)
	}

	return pdfOpts
}

// classifyCtxErr maps context errors onto the engine timeout class.
func classifyCtxErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrEngineTimeout, err)
	}
	return err
}

// floatPtr returns a pointer to a float64 value.
func floatPtr(v float64) *float64 {
	return &v
}

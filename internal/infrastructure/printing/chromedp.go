package printing

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/medimaging/backend/internal/domain/shared"
	"github.com/medimaging/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// imagesLoadedExpr is true once every <img> has finished decoding. All
// images are inline data URIs, so no network fetch is involved.
const imagesLoadedExpr = `Array.from(document.images).every(img => img.complete)`

var errEmptyPDF = errors.New("generated PDF is empty")

// PrintParams are the page settings passed to Chrome, in inches.
type PrintParams struct {
	PaperWidth      float64
	PaperHeight     float64
	MarginTop       float64
	MarginRight     float64
	MarginBottom    float64
	MarginLeft      float64
	Landscape       bool
	PrintBackground bool
}

// Browser is one running headless browser. Print may be called several
// times; Close is called exactly once by the renderer.
type Browser interface {
	Print(ctx context.Context, html string, params PrintParams) ([]byte, error)
	Close() error
}

// BrowserLauncher starts a fresh browser for one render call.
type BrowserLauncher interface {
	Launch(ctx context.Context) (Browser, error)
}

// ChromedpConfig contains configuration for the chromedp launcher
type ChromedpConfig struct {
	// RemoteURL is the DevTools websocket URL of a running Chrome. When
	// empty a local Chrome process is started per render.
	RemoteURL string
	// ExecPath overrides the Chrome binary lookup
	ExecPath string
	// Headless mode (default: true)
	Headless bool
	// NoSandbox runs Chrome without sandbox (required for Docker/root)
	NoSandbox bool
	// Logger for debug output
	Logger *zap.Logger
}

// ChromedpLauncher launches Chrome through the DevTools protocol.
type ChromedpLauncher struct {
	config *ChromedpConfig
	logger *zap.Logger
}

// NewChromedpLauncher creates a launcher. Nothing is started until Launch.
func NewChromedpLauncher(config *ChromedpConfig) *ChromedpLauncher {
	if config == nil {
		config = &ChromedpConfig{Headless: true, NoSandbox: true}
	}
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChromedpLauncher{config: config, logger: logger}
}

// allocatorOptions returns the exec allocator flags for a server environment.
func (l *ChromedpLauncher) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", l.config.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-dev-shm-usage", true), // Important for Docker
		chromedp.Flag("disable-background-timer-throttling", true),
		chromedp.Flag("disable-renderer-backgrounding", true),
		chromedp.Flag("font-render-hinting", "none"),
	)
	if l.config.NoSandbox {
		opts = append(opts,
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-setuid-sandbox", true),
		)
	}
	if l.config.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(l.config.ExecPath))
	}
	return opts
}

// Launch starts the browser and waits until it accepts commands. The browser
// lives until Close or until ctx is done.
func (l *ChromedpLauncher) Launch(ctx context.Context) (Browser, error) {
	var allocCtx context.Context
	var allocCancel context.CancelFunc
	if l.config.RemoteURL != "" {
		allocCtx, allocCancel = chromedp.NewRemoteAllocator(ctx, l.config.RemoteURL)
	} else {
		allocCtx, allocCancel = chromedp.NewExecAllocator(ctx, l.allocatorOptions()...)
	}

	browserCtx, browserCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(format string, args ...any) {
			l.logger.Debug(fmt.Sprintf(format, args...))
		}),
	)
	// Running no actions forces the browser to start.
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	return &chromeBrowser{
		ctx:         browserCtx,
		cancel:      browserCancel,
		allocCancel: allocCancel,
	}, nil
}

type chromeBrowser struct {
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
}

// Print opens a new tab, loads html into it and prints it.
func (b *chromeBrowser) Print(ctx context.Context, html string, params PrintParams) ([]byte, error) {
	tabCtx, tabCancel := chromedp.NewContext(b.ctx)
	defer tabCancel()
	stop := context.AfterFunc(ctx, tabCancel)
	defer stop()

	var pdfData []byte
	var loaded bool
	err := chromedp.Run(tabCtx,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			frameTree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(frameTree.Frame.ID, html).Do(ctx)
		}),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Poll(imagesLoadedExpr, &loaded, chromedp.WithPollingTimeout(DefaultRenderTimeout)),
		chromedp.ActionFunc(func(ctx context.Context) error {
			data, _, err := page.PrintToPDF().
				WithPrintBackground(params.PrintBackground).
				WithPaperWidth(params.PaperWidth).
				WithPaperHeight(params.PaperHeight).
				WithMarginTop(params.MarginTop).
				WithMarginRight(params.MarginRight).
				WithMarginBottom(params.MarginBottom).
				WithMarginLeft(params.MarginLeft).
				WithLandscape(params.Landscape).
				WithPreferCSSPageSize(false).
				Do(ctx)
			if err != nil {
				return err
			}
			pdfData = data
			return nil
		}),
	)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("print: %w", ctxErr)
		}
		return nil, fmt.Errorf("print: %w", err)
	}
	return pdfData, nil
}

// Close shuts the browser down gracefully and releases the allocator.
func (b *chromeBrowser) Close() error {
	err := chromedp.Cancel(b.ctx)
	b.cancel()
	b.allocCancel()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// RendererConfig contains the tunables of ChromedpRenderer.
type RendererConfig struct {
	// Timeout bounds one Render call including retries (default 60s)
	Timeout time.Duration
	// Retry decides how failed prints are repeated
	Retry RetryPolicy
	// Logger for render outcomes
	Logger *zap.Logger
}

// ChromedpRenderer renders HTML to PDF with one fresh browser per call.
type ChromedpRenderer struct {
	launcher BrowserLauncher
	timeout  time.Duration
	retry    RetryPolicy
	logger   *zap.Logger
}

// NewChromedpRenderer creates a renderer over the given launcher.
func NewChromedpRenderer(launcher BrowserLauncher, config RendererConfig) *ChromedpRenderer {
	if config.Timeout <= 0 {
		config.Timeout = DefaultRenderTimeout
	}
	if config.Retry.MaxAttempts <= 0 {
		config.Retry = DefaultRetryPolicy()
	}
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChromedpRenderer{
		launcher: launcher,
		timeout:  config.Timeout,
		retry:    config.Retry,
		logger:   logger,
	}
}

// Render launches a browser, prints req.HTML with retries and closes the
// browser on every exit path. Failures after the last attempt come back as
// a RENDER_FAILED or RENDER_TIMEOUT domain error wrapping the last cause.
func (r *ChromedpRenderer) Render(ctx context.Context, req *RenderRequest) (*RenderResult, error) {
	if err := req.normalize(); err != nil {
		return nil, err
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = r.timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ctx, span := telemetry.StartSpan(ctx, "printing.render",
		telemetry.WithAttribute("render.title", req.Title),
		telemetry.WithAttribute("render.paper_size", req.PaperSize.String()),
		telemetry.WithAttribute("render.landscape", req.Orientation.IsLandscape()),
	)
	defer span.End()

	startTime := time.Now()

	browser, err := r.launcher.Launch(ctx)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, r.failure(ctx, err, 0, timeout)
	}
	defer func() {
		if cerr := browser.Close(); cerr != nil {
			r.logger.Warn("failed to close browser", zap.Error(cerr))
		}
	}()

	params := buildPrintParams(req)
	labels := map[string]string{
		telemetry.ProfilingLabelOperation: "pdf_print",
		"paper_size":                      req.PaperSize.String(),
		"landscape":                       strconv.FormatBool(params.Landscape),
	}
	var pdfData []byte
	attempts, err := r.retry.Do(ctx, func(ctx context.Context, attempt int) error {
		var data []byte
		var err error
		telemetry.WithProfilingLabels(ctx, labels, func(ctx context.Context) {
			data, err = browser.Print(ctx, req.HTML, params)
		})
		if err == nil && len(data) == 0 {
			err = errEmptyPDF
		}
		if err != nil {
			r.logger.Warn("PDF render attempt failed",
				zap.String("title", req.Title),
				zap.Int("attempt", attempt),
				zap.Error(err))
			return err
		}
		pdfData = data
		return nil
	})
	telemetry.SetAttribute(span, "render.attempts", attempts)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, r.failure(ctx, err, attempts, timeout)
	}

	result := &RenderResult{
		PDFData:        pdfData,
		PageCount:      estimatePageCount(pdfData),
		Attempts:       attempts,
		RenderDuration: time.Since(startTime),
	}
	r.logger.Info("PDF rendered successfully",
		zap.String("title", req.Title),
		zap.Int("bytes", len(pdfData)),
		zap.Int("pages", result.PageCount),
		zap.Int("attempts", attempts),
		zap.Duration("duration", result.RenderDuration))
	return result, nil
}

func (r *ChromedpRenderer) failure(ctx context.Context, err error, attempts int, timeout time.Duration) error {
	r.logger.Error("PDF rendering failed", zap.Int("attempts", attempts), zap.Error(err))
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return shared.NewRenderError(shared.CodeRenderTimeout,
			fmt.Sprintf("PDF rendering timed out after %v", timeout), err)
	}
	if attempts == 0 {
		return shared.NewRenderError(shared.CodeRenderFailed, "could not start browser", err)
	}
	return shared.NewRenderError(shared.CodeRenderFailed,
		fmt.Sprintf("PDF rendering failed after %d attempts", attempts), err)
}

// buildPrintParams converts the request's millimeter page setup to inches.
func buildPrintParams(req *RenderRequest) PrintParams {
	width, height := req.PaperSize.Dimensions()
	return PrintParams{
		PaperWidth:      mmToInches(float64(width)),
		PaperHeight:     mmToInches(float64(height)),
		MarginTop:       mmToInches(float64(req.Margins.Top)),
		MarginRight:     mmToInches(float64(req.Margins.Right)),
		MarginBottom:    mmToInches(float64(req.Margins.Bottom)),
		MarginLeft:      mmToInches(float64(req.Margins.Left)),
		Landscape:       req.Orientation.IsLandscape(),
		PrintBackground: true,
	}
}

// mmToInches converts millimeters to inches
func mmToInches(mm float64) float64 {
	return mm / 25.4
}

// Ensure ChromedpRenderer implements PDFRenderer
var _ PDFRenderer = (*ChromedpRenderer)(nil)

package htmlimage

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// renderJob is everything one render needs. It is built from a settings
// snapshot and never shared between renders.
type renderJob struct {
	url          string
	format       Format
	settings     RenderSettings
	fonts        FontFallbacks
	userCSS      string
	fetchTimeout time.Duration
}

// engine performs the browser side of a render.
type engine interface {
	render(ctx context.Context, job renderJob, log *zap.Logger) (*Result, error)
	close()
}

// chromeEngine drives a headless Chrome over the DevTools protocol.
type chromeEngine struct {
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
}

func newChromeEngine(cfg rendererConfig) (*chromeEngine, error) {
	execPath, err := browserPath(cfg)
	if err != nil {
		return nil, err
	}

	allocOpts := append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-background-networking", true),
		chromedp.Flag("disable-sync", true),
		chromedp.Flag("disable-translate", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("headless", cfg.headless),
	)
	if execPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(execPath))
	}
	if cfg.noSandbox {
		allocOpts = append(allocOpts, chromedp.Flag("no-sandbox", true))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocOpts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	// Start the browser eagerly so errors surface at creation time.
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("htmlimage: starting browser: %w", err)
	}

	return &chromeEngine{
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
	}, nil
}

func (e *chromeEngine) close() {
	e.browserCancel()
	e.allocCancel()
}

func (e *chromeEngine) render(ctx context.Context, job renderJob, log *zap.Logger) (*Result, error) {
	tabCtx, tabCancel := chromedp.NewContext(e.browserCtx)
	defer tabCancel()

	stopForward := forwardCancel(ctx, tabCancel)
	defer stopForward()

	policy := newImagePolicy(job.settings)
	if policy.blockRequests() {
		chromedp.ListenTarget(tabCtx, func(ev any) {
			if paused, ok := ev.(*fetch.EventRequestPaused); ok {
				go failRequest(tabCtx, paused.RequestID)
			}
		})
	}

	if err := chromedp.Run(tabCtx, prepareTab(job, policy)); err != nil {
		return nil, fmt.Errorf("htmlimage: preparing tab: %w", contextErr(ctx, err))
	}
	log.Debug("tab prepared")

	if err := navigate(tabCtx, ctx, job); err != nil {
		return nil, err
	}
	log.Debug("document loaded")

	var (
		res *Result
		err error
	)
	switch job.format {
	case Bitmap:
		res, err = captureBitmap(tabCtx, job)
	case Vector:
		res, err = captureVector(tabCtx, job, log)
	default:
		return nil, job.format.check()
	}
	if err != nil {
		return nil, fmt.Errorf("htmlimage: capturing %v: %w", job.format, contextErr(ctx, err))
	}
	return res, nil
}

// navigate opens the document under the fetch deadline and checks that the
// main response is something the browser can present as a document.
func navigate(tabCtx, callerCtx context.Context, job renderJob) error {
	navCtx := tabCtx
	if job.fetchTimeout > 0 {
		var cancel context.CancelFunc
		navCtx, cancel = context.WithTimeout(tabCtx, job.fetchTimeout)
		defer cancel()
	}

	resp, err := chromedp.RunResponse(navCtx, chromedp.Navigate(job.url))
	if err != nil {
		return &FetchError{URL: job.url, Err: contextErr(callerCtx, err)}
	}
	if resp != nil {
		if resp.Status >= 400 {
			return &FetchError{URL: job.url, StatusCode: int(resp.Status)}
		}
		if !isDocumentMIME(resp.MimeType) {
			return &ParseError{URL: job.url, MIMEType: resp.MimeType}
		}
	}

	var hasRoot bool
	if err := chromedp.Run(tabCtx, chromedp.Evaluate(`document.documentElement !== null`, &hasRoot)); err != nil {
		return &ParseError{URL: job.url, Err: contextErr(callerCtx, err)}
	}
	if !hasRoot {
		return &ParseError{URL: job.url}
	}
	return nil
}

var documentTypes = map[string]bool{
	"":                      true,
	"text/html":             true,
	"application/xhtml+xml": true,
	"text/xml":              true,
	"application/xml":       true,
	"image/svg+xml":         true,
	"text/plain":            true,
}

func isDocumentMIME(mimeType string) bool {
	media, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		media = mimeType
	}
	return documentTypes[media]
}

func failRequest(tabCtx context.Context, id fetch.RequestID) {
	c := chromedp.FromContext(tabCtx)
	if c == nil || c.Target == nil {
		return
	}
	// The tab may already be gone; there is nobody left to report to.
	_ = fetch.FailRequest(id, network.ErrorReasonBlockedByClient).Do(cdp.WithExecutor(tabCtx, c.Target))
}

// forwardCancel cancels the tab when the caller's context ends, since the
// tab context descends from the browser rather than from the caller.
func forwardCancel(parent context.Context, cancel context.CancelFunc) func() {
	if parent == nil {
		return func() {}
	}
	done := make(chan struct{})
	go func() {
		select {
		case <-parent.Done():
			cancel()
		case <-done:
		}
	}()
	return func() { close(done) }
}

// contextErr prefers the caller's context error over the generic
// cancellation reported by a torn-down tab.
func contextErr(callerCtx context.Context, err error) error {
	if cerr := callerCtx.Err(); cerr != nil && errors.Is(err, context.Canceled) {
		return cerr
	}
	return err
}

package htmlimage

import (
	"bytes"
	"context"
	"fmt"

	"github.com/chromedp/cdproto/domsnapshot"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// contentSize returns the laid-out document size in CSS pixels.
func contentSize(ctx context.Context) (width, height float64, err error) {
	_, _, _, _, _, css, err := page.GetLayoutMetrics().Do(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("reading layout metrics: %w", err)
	}
	if css == nil {
		return 0, 0, nil
	}
	return css.Width, css.Height, nil
}

// captureBitmap lays the page out at the viewport size and captures the
// output bounds as a PNG.
func captureBitmap(tabCtx context.Context, job renderJob) (*Result, error) {
	var (
		buf           []byte
		width, height int
	)
	err := chromedp.Run(tabCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		cw, ch, err := contentSize(ctx)
		if err != nil {
			return err
		}
		width, height = job.settings.outputBounds(cw, ch)

		buf, err = page.CaptureScreenshot().
			WithFormat(page.CaptureScreenshotFormatPng).
			WithClip(&page.Viewport{Width: float64(width), Height: float64(height), Scale: 1}).
			WithCaptureBeyondViewport(!job.settings.Crop).
			WithFromSurface(true).
			Do(ctx)
		return err
	}))
	if err != nil {
		return nil, err
	}
	return &Result{data: buf, format: Bitmap, width: width, height: height}, nil
}

// snapshotStyles lists the computed styles the SVG writer consumes, in the
// order they appear in each layout node's style array.
var snapshotStyles = []string{
	"visibility",
	"opacity",
	"color",
	"background-color",
	"background-image",
	"background-position",
	"background-size",
	"background-repeat",
	"font-family",
	"font-size",
	"font-weight",
	"font-style",
	"text-decoration-line",
	"border-top-width",
	"border-right-width",
	"border-bottom-width",
	"border-left-width",
	"border-top-style",
	"border-right-style",
	"border-bottom-style",
	"border-left-style",
	"border-top-color",
	"border-right-color",
	"border-bottom-color",
	"border-left-color",
}

// captureVector lays the page out, snapshots the render tree and draws it
// as SVG sized to the output bounds. Images are read back from the tab and
// embedded.
func captureVector(tabCtx context.Context, job renderJob, log *zap.Logger) (*Result, error) {
	var (
		tree          *renderTree
		images        map[string]embeddedImage
		width, height int
	)
	err := chromedp.Run(tabCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		cw, ch, err := contentSize(ctx)
		if err != nil {
			return err
		}
		width, height = job.settings.outputBounds(cw, ch)

		docs, strs, err := domsnapshot.CaptureSnapshot(snapshotStyles).
			WithIncludePaintOrder(true).
			Do(ctx)
		if err != nil {
			return fmt.Errorf("capturing snapshot: %w", err)
		}
		if len(docs) == 0 {
			return nil
		}
		tree = newRenderTree(docs[0], strs)
		images = loadImages(ctx, tree.imageURLs(newImagePolicy(job.settings)), job.fetchTimeout, log)
		return nil
	}))
	if err != nil {
		return nil, err
	}
	if tree == nil {
		return nil, &ParseError{URL: job.url}
	}

	var buf bytes.Buffer
	writeSVG(&buf, tree, float64(width), float64(height), job.fonts, images)
	return &Result{data: buf.Bytes(), format: Vector, width: width, height: height}, nil
}

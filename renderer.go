package htmlimage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Renderer renders web pages to PNG or SVG images.
//
// A Renderer manages a headless browser instance that is reused across
// renders. Each render opens its own tab and works on a snapshot of the
// settings taken when the call starts, so it is safe for concurrent use and
// setters never affect a render already in flight.
//
// Call [Renderer.Close] when the Renderer is no longer needed to release
// browser resources.
type Renderer struct {
	cfg rendererConfig
	eng engine

	mu       sync.Mutex
	settings RenderSettings
	closed   bool
}

// NewRenderer creates a Renderer with the given options.
//
// It starts a headless browser in the background. The caller must call
// [Renderer.Close] when finished.
func NewRenderer(opts ...Option) (*Renderer, error) {
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}

	eng, err := newChromeEngine(cfg)
	if err != nil {
		return nil, err
	}
	return newRenderer(cfg, eng), nil
}

func newRenderer(cfg rendererConfig, eng engine) *Renderer {
	return &Renderer{
		cfg:      cfg,
		eng:      eng,
		settings: cfg.settings,
	}
}

// Close releases all resources held by the Renderer, including the
// browser process. Close is idempotent.
func (r *Renderer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true
	r.eng.close()
	return nil
}

// Settings returns a copy of the current render settings.
func (r *Renderer) Settings() RenderSettings {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.settings
}

// SetSettings replaces all render settings.
func (r *Renderer) SetSettings(s RenderSettings) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.settings = s
}

// SetMediaType replaces the CSS media type used by subsequent renders.
func (r *Renderer) SetMediaType(media string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.settings.SetMediaType(media)
}

// SetWindowSize replaces the viewport size and crop flag used by
// subsequent renders.
func (r *Renderer) SetWindowSize(width, height int, crop bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.settings.SetWindowSize(width, height, crop)
}

// SetLoadImages replaces the image loading toggles used by subsequent
// renders. Disabled images are never painted, but only disabling both
// kinds keeps the browser from downloading them.
func (r *Renderer) SetLoadImages(content, background bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.settings.SetLoadImages(content, background)
}

// Render renders the document at source in the given format.
//
// Source is a URL with an http, https, ftp or file scheme, or the path of a
// local file. Failures to retrieve the document are reported as
// [*FetchError], documents the browser cannot present as [*ParseError].
func (r *Renderer) Render(ctx context.Context, source string, format Format) (*Result, error) {
	if err := format.check(); err != nil {
		return nil, err
	}

	settings, err := r.snapshot()
	if err != nil {
		return nil, err
	}

	target, err := resolveSource(source, r.cfg.implicitHTTP)
	if err != nil {
		return nil, err
	}

	if r.cfg.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.timeout)
		defer cancel()
	}

	job := renderJob{
		url:          target,
		format:       format,
		settings:     settings,
		fonts:        r.cfg.fonts,
		userCSS:      r.cfg.userCSS,
		fetchTimeout: r.cfg.fetchTimeout,
	}

	log := r.cfg.logger.With(zap.String("url", target), zap.Stringer("format", format))
	log.Debug("render started",
		zap.String("media", settings.MediaType),
		zap.Int("width", settings.Width),
		zap.Int("height", settings.Height),
		zap.Bool("crop", settings.Crop),
	)
	start := time.Now()

	res, err := r.eng.render(ctx, job, log)
	if err != nil {
		log.Debug("render failed", zap.Error(err))
		return nil, err
	}

	log.Debug("render finished",
		zap.Int("bytes", res.Len()),
		zap.Int("output_width", res.Width()),
		zap.Int("output_height", res.Height()),
		zap.Duration("elapsed", time.Since(start)),
	)
	return res, nil
}

// RenderTo renders the document at source and commits the result to sink.
// Nothing reaches the sink unless the render succeeds.
func (r *Renderer) RenderTo(ctx context.Context, source string, sink Sink, format Format) error {
	if err := format.check(); err != nil {
		return err
	}
	if sink == nil {
		return ErrNilSink
	}

	res, err := r.Render(ctx, source, format)
	if err != nil {
		return err
	}
	if err := sink.Commit(res); err != nil {
		return fmt.Errorf("htmlimage: committing output: %w", err)
	}
	return nil
}

func (r *Renderer) snapshot() (RenderSettings, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return RenderSettings{}, ErrClosed
	}
	return r.settings, nil
}

// --- Package-level convenience functions ---

// Render renders source using a temporary [Renderer].
// This is convenient for one-off renders. For repeated use, create a
// [Renderer] with [NewRenderer] to reuse the browser instance.
func Render(ctx context.Context, source string, format Format, opts ...Option) (*Result, error) {
	if err := format.check(); err != nil {
		return nil, err
	}
	r, err := NewRenderer(opts...)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return r.Render(ctx, source, format)
}

// RenderTo renders source to sink using a temporary [Renderer].
func RenderTo(ctx context.Context, source string, sink Sink, format Format, opts ...Option) error {
	if err := format.check(); err != nil {
		return err
	}
	r, err := NewRenderer(opts...)
	if err != nil {
		return err
	}
	defer r.Close()
	return r.RenderTo(ctx, source, sink, format)
}

package htmlimage

import (
	"time"

	"go.uber.org/zap"
)

// rendererConfig holds internal configuration for a Renderer.
type rendererConfig struct {
	chromePath   string
	timeout      time.Duration
	fetchTimeout time.Duration
	noSandbox    bool
	headless     string
	autoDownload bool
	implicitHTTP bool
	fonts        FontFallbacks
	userCSS      string
	settings     RenderSettings
	logger       *zap.Logger
}

func defaultConfig() rendererConfig {
	return rendererConfig{
		timeout:      30 * time.Second,
		fetchTimeout: 20 * time.Second,
		headless:     "new",
		fonts:        DefaultFontFallbacks(),
		settings:     DefaultSettings(),
		logger:       zap.NewNop(),
	}
}

// Option configures a [Renderer].
type Option func(*rendererConfig)

// WithChromePath sets the path to the Chrome or Chromium executable.
// By default the library searches standard locations automatically.
func WithChromePath(path string) Option {
	return func(c *rendererConfig) {
		c.chromePath = path
	}
}

// WithTimeout sets the maximum duration for a single render, fetch included.
// Defaults to 30 seconds. A zero or negative value disables the timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *rendererConfig) {
		c.timeout = d
	}
}

// WithFetchTimeout bounds the navigation step: opening the connection,
// receiving the document and waiting for it to load. Defaults to 20
// seconds. A zero or negative value leaves only the overall timeout.
func WithFetchTimeout(d time.Duration) Option {
	return func(c *rendererConfig) {
		c.fetchTimeout = d
	}
}

// WithNoSandbox disables the Chrome sandbox. This is required when
// running as root, for example inside Docker containers.
func WithNoSandbox() Option {
	return func(c *rendererConfig) {
		c.noSandbox = true
	}
}

// WithAutoDownload downloads a compatible Chromium build when no
// executable path is configured. The download is cached between runs.
func WithAutoDownload() Option {
	return func(c *rendererConfig) {
		c.autoDownload = true
	}
}

// WithImplicitHTTP restores the legacy behavior of prefixing "http://" to
// scheme-less sources that do not name a local file. Without it such
// sources fail with [ErrMissingScheme].
func WithImplicitHTTP() Option {
	return func(c *rendererConfig) {
		c.implicitHTTP = true
	}
}

// WithFontFallbacks replaces the generic font family table used for vector
// output. Defaults to [DefaultFontFallbacks].
func WithFontFallbacks(f FontFallbacks) Option {
	return func(c *rendererConfig) {
		c.fonts = f
	}
}

// WithUserStyleSheet adds a stylesheet that applies after the browser's
// built-in sheets and before every author stylesheet of the document, so
// author rules still override it.
func WithUserStyleSheet(css string) Option {
	return func(c *rendererConfig) {
		c.userCSS = css
	}
}

// WithSettings sets the initial render settings. Defaults to
// [DefaultSettings].
func WithSettings(s RenderSettings) Option {
	return func(c *rendererConfig) {
		c.settings = s
	}
}

// WithLogger sets the logger used for render diagnostics. Defaults to a
// no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *rendererConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

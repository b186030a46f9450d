package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	htmlimage "github.com/porticus-lab/go-html-image"
)

// envPrefix namespaces environment overrides, e.g. HTMLIMAGE_WIDTH.
const envPrefix = "HTMLIMAGE"

// Config captures every knob of a CLI render, merged from flags, the
// environment and an optional config file.
type Config struct {
	Media            string        `mapstructure:"media"`
	Width            int           `mapstructure:"width"`
	Height           int           `mapstructure:"height"`
	Crop             bool          `mapstructure:"crop"`
	Images           bool          `mapstructure:"images"`
	BackgroundImages bool          `mapstructure:"background_images"`
	Timeout          time.Duration `mapstructure:"timeout"`
	FetchTimeout     time.Duration `mapstructure:"fetch_timeout"`
	ChromePath       string        `mapstructure:"chrome_path"`
	NoSandbox        bool          `mapstructure:"no_sandbox"`
	AutoDownload     bool          `mapstructure:"auto_download"`
	ImplicitHTTP     bool          `mapstructure:"implicit_http"`
	UserStylesheet   string        `mapstructure:"user_stylesheet"`
	Verbose          bool          `mapstructure:"verbose"`
}

// configKeys maps config keys to the flags that override them.
var configKeys = map[string]string{
	"media":             "media",
	"width":             "width",
	"height":            "height",
	"crop":              "crop",
	"images":            "images",
	"background_images": "background-images",
	"timeout":           "timeout",
	"fetch_timeout":     "fetch-timeout",
	"chrome_path":       "chrome-path",
	"no_sandbox":        "no-sandbox",
	"auto_download":     "auto-download",
	"implicit_http":     "implicit-http",
	"user_stylesheet":   "user-stylesheet",
	"verbose":           "verbose",
}

// registerFlags declares the render flags on fs.
func registerFlags(fs *pflag.FlagSet) {
	d := htmlimage.DefaultSettings()
	fs.String("config", "", "config file (YAML, TOML or JSON)")
	fs.String("media", d.MediaType, "CSS media type used for media queries")
	fs.Int("width", d.Width, "viewport width in CSS pixels")
	fs.Int("height", d.Height, "viewport height in CSS pixels")
	fs.Bool("crop", d.Crop, "clip the output to the viewport")
	fs.Bool("images", d.LoadImages, "load content images")
	fs.Bool("background-images", d.LoadBackgroundImages, "load CSS background images")
	fs.Duration("timeout", 30*time.Second, "overall render timeout")
	fs.Duration("fetch-timeout", 20*time.Second, "document fetch timeout")
	fs.String("chrome-path", "", "Chrome or Chromium executable")
	fs.Bool("no-sandbox", false, "disable the Chrome sandbox (needed as root)")
	fs.Bool("auto-download", false, "download Chromium when none is installed")
	fs.Bool("implicit-http", false, "treat scheme-less sources as http URLs")
	fs.String("user-stylesheet", "", "CSS file applied before the document's own styles")
	fs.BoolP("verbose", "v", false, "log render steps to stderr")
}

// Load builds a Config from defaults, an optional file at path, the
// environment and the changed flags in fs, in increasing precedence.
// Values that fail [Config.Validate] are reported as a [*UsageError].
func Load(path string, fs *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if fs != nil {
		for key, name := range configKeys {
			if f := fs.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return Config{}, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, &UsageError{Err: err}
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	d := htmlimage.DefaultSettings()
	v.SetDefault("media", d.MediaType)
	v.SetDefault("width", d.Width)
	v.SetDefault("height", d.Height)
	v.SetDefault("crop", d.Crop)
	v.SetDefault("images", d.LoadImages)
	v.SetDefault("background_images", d.LoadBackgroundImages)
	v.SetDefault("timeout", 30*time.Second)
	v.SetDefault("fetch_timeout", 20*time.Second)
	v.SetDefault("chrome_path", "")
	v.SetDefault("no_sandbox", false)
	v.SetDefault("auto_download", false)
	v.SetDefault("implicit_http", false)
	v.SetDefault("user_stylesheet", "")
	v.SetDefault("verbose", false)
}

// Validate rejects negative timeouts. Viewport sizes are passed to the
// browser as given.
func (c Config) Validate() error {
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must be >= 0, got %v", c.Timeout)
	}
	if c.FetchTimeout < 0 {
		return fmt.Errorf("fetch_timeout must be >= 0, got %v", c.FetchTimeout)
	}
	return nil
}

// Settings returns the render settings described by c.
func (c Config) Settings() htmlimage.RenderSettings {
	s := htmlimage.DefaultSettings()
	s.SetMediaType(c.Media)
	s.SetWindowSize(c.Width, c.Height, c.Crop)
	s.SetLoadImages(c.Images, c.BackgroundImages)
	return s
}

// Options returns the renderer options described by c. The user stylesheet
// is a path and is read by the caller.
func (c Config) Options() []htmlimage.Option {
	opts := []htmlimage.Option{
		htmlimage.WithSettings(c.Settings()),
		htmlimage.WithTimeout(c.Timeout),
		htmlimage.WithFetchTimeout(c.FetchTimeout),
	}
	if c.ChromePath != "" {
		opts = append(opts, htmlimage.WithChromePath(c.ChromePath))
	}
	if c.NoSandbox {
		opts = append(opts, htmlimage.WithNoSandbox())
	}
	if c.AutoDownload {
		opts = append(opts, htmlimage.WithAutoDownload())
	}
	if c.ImplicitHTTP {
		opts = append(opts, htmlimage.WithImplicitHTTP())
	}
	return opts
}

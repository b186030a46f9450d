package htmlimage

// Default render settings.
const (
	DefaultMediaType = "screen"
	DefaultWidth     = 1200
	DefaultHeight    = 600
)

// RenderSettings controls how a document is laid out and captured.
//
// The zero value is usable but carries an empty media type and a 0×0
// viewport; start from [DefaultSettings] instead. Values are passed to the
// browser unchanged: a negative or zero viewport is not corrected here and
// the browser decides what to do with it.
type RenderSettings struct {
	// MediaType is the CSS media type used to evaluate media queries,
	// e.g. "screen" or "print".
	MediaType string

	// Width and Height are the viewport size in CSS pixels.
	Width  int
	Height int

	// Crop clips the output to the viewport. When false the output grows to
	// the full content size.
	Crop bool

	// LoadImages loads content images (img, picture, video posters).
	// Disabled content images are never painted. Unless background images
	// are disabled too, image requests are not blocked at the network
	// layer, so the browser's preload scanner may still download them.
	LoadImages bool

	// LoadBackgroundImages loads CSS background images.
	LoadBackgroundImages bool
}

// DefaultSettings returns "screen" media, a 1200×600 viewport without
// cropping, and both kinds of images enabled.
func DefaultSettings() RenderSettings {
	return RenderSettings{
		MediaType:            DefaultMediaType,
		Width:                DefaultWidth,
		Height:               DefaultHeight,
		LoadImages:           true,
		LoadBackgroundImages: true,
	}
}

// SetMediaType replaces the media type.
func (s *RenderSettings) SetMediaType(media string) {
	s.MediaType = media
}

// SetWindowSize replaces the viewport size and the crop flag.
func (s *RenderSettings) SetWindowSize(width, height int, crop bool) {
	s.Width = width
	s.Height = height
	s.Crop = crop
}

// SetLoadImages replaces both image loading toggles. Only disabling both
// guarantees no image is requested; see [RenderSettings.LoadImages].
func (s *RenderSettings) SetLoadImages(content, background bool) {
	s.LoadImages = content
	s.LoadBackgroundImages = background
}

// outputBounds returns the size of the captured area for content laid out
// at contentWidth×contentHeight. Cropping yields exactly the viewport;
// otherwise each axis grows to cover the content but never shrinks below
// the viewport.
func (s RenderSettings) outputBounds(contentWidth, contentHeight float64) (width, height int) {
	if s.Crop {
		return s.Width, s.Height
	}
	return max(s.Width, ceilPx(contentWidth)), max(s.Height, ceilPx(contentHeight))
}

func ceilPx(v float64) int {
	n := int(v)
	if float64(n) < v {
		n++
	}
	return n
}

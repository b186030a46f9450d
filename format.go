package htmlimage

import (
	"fmt"
	"strings"
)

// Format selects the kind of output produced by a render.
type Format int

const (
	// Bitmap produces a PNG image.
	Bitmap Format = iota
	// Vector produces an SVG document.
	Vector
)

// ParseFormat maps a case-insensitive format token ("png" or "svg") to a
// Format.
func ParseFormat(token string) (Format, error) {
	switch {
	case strings.EqualFold(token, "png"):
		return Bitmap, nil
	case strings.EqualFold(token, "svg"):
		return Vector, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnsupportedFormat, token)
}

// Valid reports whether f is one of the supported formats.
func (f Format) Valid() bool {
	return f == Bitmap || f == Vector
}

func (f Format) String() string {
	switch f {
	case Bitmap:
		return "png"
	case Vector:
		return "svg"
	}
	return fmt.Sprintf("Format(%d)", int(f))
}

// MIMEType returns the media type of output in this format.
func (f Format) MIMEType() string {
	switch f {
	case Bitmap:
		return "image/png"
	case Vector:
		return "image/svg+xml"
	}
	return ""
}

func (f Format) check() error {
	if !f.Valid() {
		return fmt.Errorf("%w: %v", ErrUnsupportedFormat, f)
	}
	return nil
}

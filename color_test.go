package htmlimage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseColor(t *testing.T) {
	tests := []struct {
		in     string
		want   rgba
		wantOK bool
	}{
		{"rgb(255, 0, 0)", rgba{255, 0, 0, 1}, true},
		{"rgba(0, 128, 255, 0.5)", rgba{0, 128, 255, 0.5}, true},
		{"rgba(0, 0, 0, 0)", rgba{0, 0, 0, 0}, true},
		{"rgb(10 20 30 / 25%)", rgba{10, 20, 30, 0.25}, true},
		{"rgb(100%, 0%, 50%)", rgba{255, 0, 128, 1}, true},
		{"RGB(1, 2, 3)", rgba{1, 2, 3, 1}, true},
		{"rgb(300, -4, 12.6)", rgba{255, 0, 13, 1}, true},
		{"transparent", rgba{}, true},
		{"#ff0000", rgba{255, 0, 0, 1}, true},
		{"red", rgba{255, 0, 0, 1}, true},
		{"hsl(0, 100%, 50%)", rgba{255, 0, 0, 1}, true},
		{"color(srgb 1 0 0)", rgba{255, 0, 0, 1}, true},
		{"color(srgb 0 50% 1 / 0.5)", rgba{0, 128, 255, 0.5}, true},
		{"color(display-p3 1.2 -0.1 0)", rgba{255, 0, 0, 1}, true},
		{"color(srgb-linear 1 1 1)", rgba{255, 255, 255, 1}, true},
		{"rgb(none 20 30)", rgba{0, 20, 30, 1}, true},
		{"rgb(1, 2)", rgba{}, false},
		{"color(xyz 1 0 0)", rgba{}, false},
		{"color(srgb 1 0)", rgba{}, false},
		{"rgb(a, b, c)", rgba{}, false},
		{"", rgba{}, false},
	}
	for _, tt := range tests {
		got, ok := parseColor(tt.in)
		assert.Equal(t, tt.wantOK, ok, tt.in)
		if tt.wantOK {
			assert.Equal(t, tt.want, got, tt.in)
		}
	}
}

// Chrome keeps modern color syntaxes in their own space when serializing
// computed styles.
func TestParseColor_ModernSpaces(t *testing.T) {
	for _, in := range []string{
		"oklch(0.628 0.2577 29.23)",
		"oklab(0.628 0.2249 0.1258)",
		"lab(54.29 80.8 69.89)",
		"lch(54.29 106.84 40.85)",
		"oklch(0.628 0.2577 29.23 / 0.5)",
	} {
		got, ok := parseColor(in)
		require.True(t, ok, in)
		assert.InDelta(t, 255, got.R, 8, in)
		assert.InDelta(t, 0, got.G, 16, in)
		assert.InDelta(t, 0, got.B, 16, in)
	}

	got, ok := parseColor("oklch(0.628 0.2577 29.23 / 0.5)")
	require.True(t, ok)
	assert.InDelta(t, 0.5, got.A, 1e-9)

	got, ok = parseColor("oklch(1 none none)")
	require.True(t, ok)
	assert.Equal(t, rgba{255, 255, 255, 1}, got)
}

func TestRGBA_Visible(t *testing.T) {
	assert.True(t, rgba{A: 1}.visible(1))
	assert.False(t, rgba{A: 0}.visible(1))
	assert.False(t, rgba{A: 1}.visible(0))
}

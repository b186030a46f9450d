package htmlimage

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/mazznoer/csscolorparser"
)

// rgba is a computed CSS color.
type rgba struct {
	R, G, B int
	A       float64
}

// parseColor reads a computed CSS color. Chrome serializes legacy colors
// as rgb()/rgba() but keeps modern ones in their own space, so oklch(),
// oklab(), lab(), lch(), hsl(), hwb() and color() all have to be accepted.
func parseColor(s string) (rgba, bool) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return rgba{}, false
	}
	if strings.ContainsRune(s, '(') {
		s = noneComponent.ReplaceAllString(s, "0")
	}

	var (
		c   csscolorparser.Color
		err error
	)
	if args, ok := strings.CutPrefix(s, "color("); ok {
		c, err = parseColorFunction(args)
	} else {
		c, err = csscolorparser.Parse(s)
	}
	if err != nil {
		return rgba{}, false
	}
	c = c.Clamp()
	r, g, b, _ := c.RGBA255()
	return rgba{R: int(r), G: int(g), B: int(b), A: c.A}, true
}

// noneComponent turns the CSS "none" channel keyword into a zero.
var noneComponent = regexp.MustCompile(`\bnone\b`)

type colorSpaceError string

func (e colorSpaceError) Error() string { return "unsupported color space: " + string(e) }

// parseColorFunction handles the body of color(<space> c1 c2 c3 [/ a]).
// Wide-gamut RGB spaces are treated as sRGB and clamped.
func parseColorFunction(args string) (csscolorparser.Color, error) {
	args, ok := strings.CutSuffix(args, ")")
	if !ok {
		return csscolorparser.Color{}, colorSpaceError(args)
	}
	fields := strings.FieldsFunc(args, func(r rune) bool { return r == ' ' || r == '/' || r == ',' })
	if len(fields) != 4 && len(fields) != 5 {
		return csscolorparser.Color{}, colorSpaceError(args)
	}
	var v [4]float64
	v[3] = 1
	for i, f := range fields[1:] {
		n, err := parseUnit(f)
		if err != nil {
			return csscolorparser.Color{}, err
		}
		v[i] = n
	}
	switch fields[0] {
	case "srgb", "display-p3", "a98-rgb", "rec2020", "prophoto-rgb":
		return csscolorparser.Color{R: v[0], G: v[1], B: v[2], A: v[3]}, nil
	case "srgb-linear":
		return csscolorparser.FromLinearRGB(v[0], v[1], v[2], v[3]), nil
	default:
		return csscolorparser.Color{}, colorSpaceError(fields[0])
	}
}

// parseUnit reads a number or a percentage as a fraction of one.
func parseUnit(s string) (float64, error) {
	if pct, ok := strings.CutSuffix(s, "%"); ok {
		v, err := strconv.ParseFloat(pct, 64)
		return v / 100, err
	}
	return strconv.ParseFloat(s, 64)
}

func clampInt(v, lo, hi int) int {
	return min(max(v, lo), hi)
}

func clampFloat(v, lo, hi float64) float64 {
	return min(max(v, lo), hi)
}

// visible reports whether painting c at the given opacity shows anything.
func (c rgba) visible(opacity float64) bool {
	return c.A*opacity > 0
}

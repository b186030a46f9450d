package htmlimage

import (
	"strings"

	"github.com/chromedp/cdproto/page"
)

// FontFallbacks maps the generic CSS font families to concrete fonts.
//
// Vector output resolves glyph outlines at layout time, so every generic
// family must name a concrete font before the document is laid out. The
// table is a value: it is copied into each render and never mutated by the
// renderer.
type FontFallbacks struct {
	Serif     string
	SansSerif string
	Monospace string
}

// DefaultFontFallbacks returns Times New Roman, Arial and Courier New.
func DefaultFontFallbacks() FontFallbacks {
	return FontFallbacks{
		Serif:     "Times New Roman",
		SansSerif: "Arial",
		Monospace: "Courier New",
	}
}

// families converts the table to the browser's generic family settings.
func (f FontFallbacks) families() *page.FontFamilies {
	return &page.FontFamilies{
		Serif:     f.Serif,
		SansSerif: f.SansSerif,
		Fixed:     f.Monospace,
	}
}

func (f FontFallbacks) lookup(generic string) string {
	switch strings.ToLower(generic) {
	case "serif":
		return f.Serif
	case "sans-serif":
		return f.SansSerif
	case "monospace":
		return f.Monospace
	}
	return ""
}

// substitute rewrites a computed font-family list so each generic family is
// preceded by its concrete fallback. Names are single-quoted so the result
// can live inside a double-quoted XML attribute.
func (f FontFallbacks) substitute(list string) string {
	var out []string
	for _, name := range strings.Split(list, ",") {
		name = strings.Trim(strings.TrimSpace(name), `"'`)
		if name == "" {
			continue
		}
		if concrete := f.lookup(name); concrete != "" {
			out = append(out, quoteFamily(concrete))
			out = append(out, strings.ToLower(name))
			continue
		}
		out = append(out, quoteFamily(name))
	}
	return strings.Join(out, ", ")
}

func quoteFamily(name string) string {
	if strings.ContainsAny(name, " 0123456789") {
		return "'" + strings.ReplaceAll(name, "'", "") + "'"
	}
	return name
}

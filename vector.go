package htmlimage

import (
	"cmp"
	"fmt"
	"io"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf16"

	"github.com/chromedp/cdproto/domsnapshot"

	svg "github.com/ajstarks/svgo/float"
)

const (
	nodeTypeElement = 1
	nodeTypeText    = 3
)

// textBox is one post-layout run of a text node.
type textBox struct {
	bounds rect
	start  int // UTF-16 offset into the node's text
	length int // UTF-16 length
}

type rect struct {
	X, Y, W, H float64
}

// renderTree is a read-only view over a DOM snapshot: the flattened node
// and layout tables plus the shared string table they index into.
type renderTree struct {
	doc      *domsnapshot.DocumentSnapshot
	strs     []string
	stylePos map[string]int
	boxes    map[int][]textBox
	sources  map[int64]string
	layoutOf map[int64]int
}

func newRenderTree(doc *domsnapshot.DocumentSnapshot, strs []string) *renderTree {
	t := &renderTree{
		doc:      doc,
		strs:     strs,
		stylePos: make(map[string]int, len(snapshotStyles)),
		boxes:    make(map[int][]textBox),
		sources:  make(map[int64]string),
		layoutOf: make(map[int64]int),
	}
	for i, name := range snapshotStyles {
		t.stylePos[name] = i
	}
	if l := doc.Layout; l != nil {
		for i, node := range l.NodeIndex {
			if _, seen := t.layoutOf[node]; !seen {
				t.layoutOf[node] = i
			}
		}
	}
	if tb := doc.TextBoxes; tb != nil {
		for i, li := range tb.LayoutIndex {
			if i >= len(tb.Bounds) || i >= len(tb.Start) || i >= len(tb.Length) {
				break
			}
			t.boxes[int(li)] = append(t.boxes[int(li)], textBox{
				bounds: toRect(tb.Bounds[i]),
				start:  int(tb.Start[i]),
				length: int(tb.Length[i]),
			})
		}
	}
	if n := doc.Nodes; n != nil && n.CurrentSourceURL != nil {
		for i, node := range n.CurrentSourceURL.Index {
			if i < len(n.CurrentSourceURL.Value) {
				t.sources[node] = t.str(n.CurrentSourceURL.Value[i])
			}
		}
	}
	return t
}

func toRect(r domsnapshot.Rectangle) rect {
	if len(r) < 4 {
		return rect{}
	}
	return rect{X: r[0], Y: r[1], W: r[2], H: r[3]}
}

func (t *renderTree) str(i domsnapshot.StringIndex) string {
	if i < 0 || int(i) >= len(t.strs) {
		return ""
	}
	return t.strs[i]
}

func (t *renderTree) layoutLen() int {
	if t.doc.Layout == nil {
		return 0
	}
	return len(t.doc.Layout.NodeIndex)
}

func (t *renderTree) node(li int) int64 {
	return t.doc.Layout.NodeIndex[li]
}

func (t *renderTree) nodeType(node int64) int64 {
	n := t.doc.Nodes
	if n == nil || int(node) >= len(n.NodeType) {
		return 0
	}
	return n.NodeType[node]
}

func (t *renderTree) nodeName(node int64) string {
	n := t.doc.Nodes
	if n == nil || int(node) >= len(n.NodeName) {
		return ""
	}
	return strings.ToUpper(t.str(n.NodeName[node]))
}

func (t *renderTree) parent(node int64) int64 {
	n := t.doc.Nodes
	if n == nil || int(node) >= len(n.ParentIndex) {
		return -1
	}
	return n.ParentIndex[node]
}

func (t *renderTree) attr(node int64, name string) string {
	n := t.doc.Nodes
	if n == nil || int(node) >= len(n.Attributes) {
		return ""
	}
	pairs := n.Attributes[node]
	for i := 0; i+1 < len(pairs); i += 2 {
		if strings.EqualFold(t.str(domsnapshot.StringIndex(pairs[i])), name) {
			return t.str(domsnapshot.StringIndex(pairs[i+1]))
		}
	}
	return ""
}

func (t *renderTree) bounds(li int) rect {
	b := t.doc.Layout.Bounds
	if li >= len(b) {
		return rect{}
	}
	return toRect(b[li])
}

// style returns a computed style of layout node li. Text runs without their
// own styles inherit those of the nearest laid-out ancestor.
func (t *renderTree) style(li int, name string) string {
	pos, ok := t.stylePos[name]
	if !ok {
		return ""
	}
	for hops := 0; hops < 64; hops++ {
		styles := t.doc.Layout.Styles
		if li < len(styles) && pos < len(styles[li]) {
			return t.str(domsnapshot.StringIndex(styles[li][pos]))
		}
		parent := t.ancestorLayout(li)
		if parent < 0 {
			return ""
		}
		li = parent
	}
	return ""
}

func (t *renderTree) ancestorLayout(li int) int {
	for node := t.parent(t.node(li)); node >= 0; node = t.parent(node) {
		if pl, ok := t.layoutOf[node]; ok {
			return pl
		}
	}
	return -1
}

func (t *renderTree) text(li int) string {
	txt := t.doc.Layout.Text
	if li >= len(txt) {
		return ""
	}
	return t.str(txt[li])
}

// paintOrder returns layout indices in the order the browser paints them.
func (t *renderTree) paintOrder() []int {
	n := t.layoutLen()
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	po := t.doc.Layout.PaintOrders
	if len(po) == n {
		slices.SortStableFunc(order, func(a, b int) int { return cmp.Compare(po[a], po[b]) })
	}
	return order
}

func (t *renderTree) float(li int, name string, def float64) float64 {
	v := strings.TrimSuffix(strings.TrimSpace(t.style(li, name)), "px")
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func (t *renderTree) color(li int, name string) (rgba, bool) {
	return parseColor(t.style(li, name))
}

// canvasColor follows CSS background propagation: the root element's
// background paints the whole canvas, falling back to the body's and then
// to white.
func (t *renderTree) canvasColor() rgba {
	for _, want := range []string{"HTML", "BODY"} {
		for li := 0; li < t.layoutLen(); li++ {
			if t.nodeName(t.node(li)) != want {
				continue
			}
			if c, ok := t.color(li, "background-color"); ok && c.A > 0 {
				return c
			}
			break
		}
	}
	return rgba{R: 255, G: 255, B: 255, A: 1}
}

// painter draws one render tree onto an SVG canvas.
type painter struct {
	canvas *svg.SVG
	tree   *renderTree
	fonts  FontFallbacks
	images map[string]embeddedImage
	ids    int
}

// writeSVG draws the render tree as an SVG document of the given size.
// Images are drawn only when present in images, so the output never
// references anything outside itself.
func writeSVG(w io.Writer, t *renderTree, width, height float64, fonts FontFallbacks, images map[string]embeddedImage) {
	p := &painter{canvas: svg.New(w), tree: t, fonts: fonts, images: images}
	p.canvas.Startview(width, height, 0, 0, width, height)
	if title := t.str(t.doc.Title); title != "" {
		p.canvas.Title(title)
	}

	bg := t.canvasColor()
	p.canvas.Rect(0, 0, width, height, p.canvas.RGBA(bg.R, bg.G, bg.B, bg.A))

	if t.layoutLen() > 0 {
		for _, li := range t.paintOrder() {
			p.drawLayoutNode(li)
		}
	}
	p.canvas.End()
}

func (p *painter) nextID(prefix string) string {
	p.ids++
	return prefix + strconv.Itoa(p.ids)
}

func (p *painter) drawLayoutNode(li int) {
	t := p.tree
	switch t.style(li, "visibility") {
	case "hidden", "collapse":
		return
	}
	opacity := clampFloat(t.float(li, "opacity", 1), 0, 1)
	if opacity == 0 {
		return
	}

	node := t.node(li)
	switch t.nodeType(node) {
	case nodeTypeText:
		p.drawText(li, opacity)
	case nodeTypeElement:
		b := t.bounds(li)
		if b.W <= 0 || b.H <= 0 {
			return
		}
		if name := t.nodeName(node); name != "HTML" && name != "BODY" {
			if c, ok := t.color(li, "background-color"); ok && c.visible(opacity) {
				p.canvas.Rect(b.X, b.Y, b.W, b.H, p.canvas.RGBA(c.R, c.G, c.B, c.A*opacity))
			}
		}
		p.drawBackgroundImages(li, b, opacity)
		p.drawBorders(li, b, opacity)
		if t.nodeName(node) == "IMG" {
			p.drawImage(node, b, opacity)
		}
	}
}

func (p *painter) drawBorders(li int, b rect, opacity float64) {
	t := p.tree
	sides := []struct {
		name string
		rect func(w float64) rect
	}{
		{"top", func(w float64) rect { return rect{b.X, b.Y, b.W, w} }},
		{"right", func(w float64) rect { return rect{b.X + b.W - w, b.Y, w, b.H} }},
		{"bottom", func(w float64) rect { return rect{b.X, b.Y + b.H - w, b.W, w} }},
		{"left", func(w float64) rect { return rect{b.X, b.Y, w, b.H} }},
	}
	for _, side := range sides {
		width := t.float(li, "border-"+side.name+"-width", 0)
		if width <= 0 {
			continue
		}
		switch t.style(li, "border-"+side.name+"-style") {
		case "", "none", "hidden":
			continue
		}
		c, ok := t.color(li, "border-"+side.name+"-color")
		if !ok || !c.visible(opacity) {
			continue
		}
		r := side.rect(width)
		p.canvas.Rect(r.X, r.Y, r.W, r.H, p.canvas.RGBA(c.R, c.G, c.B, c.A*opacity))
	}
}

func opacityStyle(opacity float64) []string {
	if opacity < 1 {
		return []string{fmt.Sprintf("opacity:%.3g", opacity)}
	}
	return nil
}

func (p *painter) drawImage(node int64, b rect, opacity float64) {
	img, ok := p.images[p.tree.contentImage(node)]
	if !ok {
		return
	}
	attrs := append([]string{`preserveAspectRatio="none"`}, opacityStyle(opacity)...)
	p.canvas.Image(b.X, b.Y, ceilPx(b.W), ceilPx(b.H), attrEscaper.Replace(img.href), attrs...)
}

// drawBackgroundImages paints the url() layers of li's background, last
// layer first. Layers are positioned and clipped against the border box.
func (p *painter) drawBackgroundImages(li int, b rect, opacity float64) {
	t := p.tree
	layers := splitTop(t.style(li, "background-image"), ',')
	positions := splitTop(t.style(li, "background-position"), ',')
	sizes := splitTop(t.style(li, "background-size"), ',')
	repeats := splitTop(t.style(li, "background-repeat"), ',')

	for i := len(layers) - 1; i >= 0; i-- {
		img, ok := p.images[t.resolve(layerURL(layers[i]))]
		if !ok {
			continue
		}
		tile := tileSize(layerValue(sizes, i), b, img)
		if tile.W <= 0 || tile.H <= 0 {
			continue
		}
		tile.X, tile.Y = tilePosition(layerValue(positions, i), b, tile.W, tile.H)
		repeatX, repeatY := repeatAxes(layerValue(repeats, i))
		p.drawTiles(b, img, tile, repeatX, repeatY, opacity)
	}
}

func (p *painter) drawTiles(b rect, img embeddedImage, tile rect, repeatX, repeatY bool, opacity float64) {
	href := attrEscaper.Replace(img.href)
	if !repeatX && !repeatY {
		id := p.nextID("clip")
		p.canvas.Def()
		p.canvas.ClipPath(`id="` + id + `"`)
		p.canvas.Rect(b.X, b.Y, b.W, b.H)
		p.canvas.ClipEnd()
		p.canvas.DefEnd()
		p.canvas.Group(`clip-path="url(#` + id + `)"`)
		attrs := append([]string{`preserveAspectRatio="none"`}, opacityStyle(opacity)...)
		p.canvas.Image(tile.X, tile.Y, ceilPx(tile.W), ceilPx(tile.H), href, attrs...)
		p.canvas.Gend()
		return
	}

	area := b
	if !repeatX {
		area.X, area.W = tile.X, tile.W
	}
	if !repeatY {
		area.Y, area.H = tile.Y, tile.H
	}
	area, ok := area.intersect(b)
	if !ok {
		return
	}
	id := p.nextID("bg")
	p.canvas.Def()
	p.canvas.Pattern(id, tile.X, tile.Y, tile.W, tile.H, "user")
	p.canvas.Image(0, 0, ceilPx(tile.W), ceilPx(tile.H), href, `preserveAspectRatio="none"`)
	p.canvas.PatternEnd()
	p.canvas.DefEnd()
	fill := "fill:url(#" + id + ")"
	if opacity < 1 {
		fill += fmt.Sprintf(";opacity:%.3g", opacity)
	}
	p.canvas.Rect(area.X, area.Y, area.W, area.H, fill)
}

func (r rect) intersect(o rect) (rect, bool) {
	x0, y0 := max(r.X, o.X), max(r.Y, o.Y)
	x1, y1 := min(r.X+r.W, o.X+o.W), min(r.Y+r.H, o.Y+o.H)
	if x1 <= x0 || y1 <= y0 {
		return rect{}, false
	}
	return rect{x0, y0, x1 - x0, y1 - y0}, true
}

// layerValue picks the value for layer i; shorter lists repeat.
func layerValue(values []string, i int) string {
	if len(values) == 0 {
		return ""
	}
	return values[i%len(values)]
}

// tileSize resolves a computed background-size against box b. Images
// without an intrinsic size fill the box.
func tileSize(size string, b rect, img embeddedImage) rect {
	iw, ih := float64(img.width), float64(img.height)
	if iw <= 0 || ih <= 0 {
		iw, ih = b.W, b.H
	}
	switch size {
	case "cover":
		s := max(b.W/iw, b.H/ih)
		return rect{W: iw * s, H: ih * s}
	case "contain":
		s := min(b.W/iw, b.H/ih)
		return rect{W: iw * s, H: ih * s}
	}
	parts := splitTop(size, ' ')
	if len(parts) == 0 {
		return rect{W: iw, H: ih}
	}
	if len(parts) == 1 {
		parts = append(parts, "auto")
	}
	w, wok := cssLength(parts[0], b.W)
	h, hok := cssLength(parts[1], b.H)
	switch {
	case wok && hok:
		return rect{W: w, H: h}
	case wok:
		return rect{W: w, H: w * ih / iw}
	case hok:
		return rect{W: h * iw / ih, H: h}
	}
	return rect{W: iw, H: ih}
}

// tilePosition places a tile of size w×h inside b per a computed
// background-position.
func tilePosition(pos string, b rect, w, h float64) (x, y float64) {
	parts := splitTop(pos, ' ')
	for len(parts) < 2 {
		parts = append(parts, "0%")
	}
	return b.X + cssOffset(parts[0], b.W-w), b.Y + cssOffset(parts[1], b.H-h)
}

var calcOffset = regexp.MustCompile(`^calc\(\s*(-?[\d.]+)%\s*([+-])\s*([\d.]+)px\s*\)$`)

// cssOffset resolves a position component whose percentage refers to free.
func cssOffset(v string, free float64) float64 {
	if m := calcOffset.FindStringSubmatch(v); m != nil {
		pct, _ := strconv.ParseFloat(m[1], 64)
		px, _ := strconv.ParseFloat(m[3], 64)
		if m[2] == "-" {
			px = -px
		}
		return free*pct/100 + px
	}
	n, _ := cssLength(v, free)
	return n
}

// cssLength reads a px or percentage length; "auto" and anything else
// report false.
func cssLength(v string, ref float64) (float64, bool) {
	if pct, ok := strings.CutSuffix(v, "%"); ok {
		n, err := strconv.ParseFloat(pct, 64)
		return ref * n / 100, err == nil
	}
	if px, ok := strings.CutSuffix(v, "px"); ok {
		n, err := strconv.ParseFloat(px, 64)
		return n, err == nil
	}
	if v == "0" {
		return 0, true
	}
	return 0, false
}

func repeatAxes(repeat string) (x, y bool) {
	switch repeat {
	case "repeat-x":
		return true, false
	case "repeat-y":
		return false, true
	case "no-repeat":
		return false, false
	}
	parts := strings.Fields(repeat)
	if len(parts) == 2 {
		return parts[0] != "no-repeat", parts[1] != "no-repeat"
	}
	return true, true
}

func (p *painter) drawText(li int, opacity float64) {
	t := p.tree
	boxes := t.boxes[li]
	if len(boxes) == 0 {
		return
	}
	units := utf16.Encode([]rune(t.text(li)))

	c, ok := t.color(li, "color")
	if !ok {
		c = rgba{A: 1}
	}
	if !c.visible(opacity) {
		return
	}
	size := t.float(li, "font-size", 16)
	decoration := t.style(li, "text-decoration-line")
	fill := p.canvas.RGBA(c.R, c.G, c.B, c.A*opacity)

	style := []string{
		fill,
		"font-family:" + p.fonts.substitute(t.style(li, "font-family")),
		fmt.Sprintf("font-size:%.4gpx", size),
	}
	if wgt := t.style(li, "font-weight"); wgt != "" && wgt != "400" && wgt != "normal" {
		style = append(style, "font-weight:"+wgt)
	}
	if fs := t.style(li, "font-style"); fs != "" && fs != "normal" {
		style = append(style, "font-style:"+fs)
	}
	attrStyle := sanitizeStyle(strings.Join(style, ";"))

	for _, box := range boxes {
		run := utf16Slice(units, box.start, box.length)
		if strings.TrimFunc(run, unicode.IsSpace) == "" {
			continue
		}
		b := box.bounds
		// Line boxes center the glyphs' em box, whatever the line height.
		mid := b.Y + b.H/2
		p.canvas.Text(b.X, mid, run,
			attrStyle,
			fmt.Sprintf(`textLength="%.2f"`, b.W),
			`lengthAdjust="spacingAndGlyphs"`,
			`dominant-baseline="central"`,
			`xml:space="preserve"`,
		)
		thickness := max(1, size/15)
		if strings.Contains(decoration, "underline") {
			p.canvas.Rect(b.X, mid+size*0.4, b.W, thickness, fill)
		}
		if strings.Contains(decoration, "line-through") {
			p.canvas.Rect(b.X, mid+size*0.05, b.W, thickness, fill)
		}
	}
}

// utf16Slice extracts a run addressed in UTF-16 code units, as text box
// offsets are.
func utf16Slice(units []uint16, start, length int) string {
	start = clampInt(start, 0, len(units))
	end := clampInt(start+length, start, len(units))
	return string(utf16.Decode(units[start:end]))
}

// attrEscaper makes a value safe inside a double-quoted XML attribute.
var attrEscaper = strings.NewReplacer(`&`, "&amp;", `"`, "&quot;", `<`, "&lt;", `>`, "&gt;")

// sanitizeStyle prepares a style declaration for svgo, which treats any
// argument containing '=' as a raw attribute and does not escape values.
func sanitizeStyle(s string) string {
	s = strings.NewReplacer(`"`, "'", `=`, "").Replace(s)
	return strings.NewReplacer(`&`, "&amp;", `<`, "&lt;", `>`, "&gt;").Replace(s)
}

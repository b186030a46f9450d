package htmlimage

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"mime"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// embeddedImage is an image inlined into the SVG as a data URL.
type embeddedImage struct {
	href          string
	width, height int // intrinsic size; zero when the format is not decodable
}

// newEmbeddedImage encodes data as a data URL. The declared MIME type is
// used when it names an image, otherwise the type is sniffed.
func newEmbeddedImage(data []byte, mimeType string) (embeddedImage, error) {
	media, _, err := mime.ParseMediaType(mimeType)
	if err != nil || !strings.HasPrefix(media, "image/") {
		media, _, _ = mime.ParseMediaType(http.DetectContentType(data))
	}
	if !strings.HasPrefix(media, "image/") {
		return embeddedImage{}, fmt.Errorf("not an image: %s", media)
	}
	img := embeddedImage{href: "data:" + media + ";base64," + base64.StdEncoding.EncodeToString(data)}
	if cfg, _, err := image.DecodeConfig(bytes.NewReader(data)); err == nil {
		img.width, img.height = cfg.Width, cfg.Height
	}
	return img, nil
}

// decodeDataURL returns the payload and media type of a data: URL.
func decodeDataURL(u string) ([]byte, string, error) {
	meta, payload, ok := strings.Cut(strings.TrimPrefix(u, "data:"), ",")
	if !ok {
		return nil, "", errors.New("malformed data URL")
	}
	if media, ok := strings.CutSuffix(meta, ";base64"); ok {
		data, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			data, err = base64.RawStdEncoding.DecodeString(payload)
		}
		return data, media, err
	}
	s, err := url.PathUnescape(payload)
	return []byte(s), meta, err
}

// fetchImageScript reads an image through the page, so the document's
// cookies and origin apply. It resolves to the body as base64.
const fetchImageScript = `(async () => {
  const resp = await fetch(%s);
  if (!resp.ok) throw new Error('status ' + resp.status);
  const blob = await resp.blob();
  const url = await new Promise((resolve, reject) => {
    const r = new FileReader();
    r.onload = () => resolve(r.result);
    r.onerror = () => reject(r.error);
    r.readAsDataURL(blob);
  });
  return { type: blob.type, data: url.slice(url.indexOf(',') + 1) };
})()`

// imageLoader pulls image bytes out of a loaded tab.
type imageLoader struct {
	frameID cdp.FrameID
	mimes   map[string]string
}

func newImageLoader(ctx context.Context) *imageLoader {
	l := &imageLoader{mimes: make(map[string]string)}
	tree, err := page.GetResourceTree().Do(ctx)
	if err != nil || tree == nil || tree.Frame == nil {
		return l
	}
	l.frameID = tree.Frame.ID
	for _, r := range tree.Resources {
		if !r.Failed && !r.Canceled {
			l.mimes[r.URL] = r.MimeType
		}
	}
	return l
}

// fetch returns the bytes of u, preferring the copy the page already
// downloaded.
func (l *imageLoader) fetch(ctx context.Context, u string) ([]byte, string, error) {
	if strings.HasPrefix(u, "data:") {
		return decodeDataURL(u)
	}
	if mimeType, ok := l.mimes[u]; ok && l.frameID != "" {
		data, err := page.GetResourceContent(l.frameID, u).Do(ctx)
		if err == nil && len(data) > 0 {
			return data, mimeType, nil
		}
	}

	var res struct {
		Type string `json:"type"`
		Data string `json:"data"`
	}
	// Marshalling a string cannot fail.
	quoted, _ := json.Marshal(u)
	err := chromedp.Evaluate(fmt.Sprintf(fetchImageScript, quoted), &res,
		func(p *runtime.EvaluateParams) *runtime.EvaluateParams { return p.WithAwaitPromise(true) },
	).Do(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("fetching in page: %w", err)
	}
	data, err := base64.StdEncoding.DecodeString(res.Data)
	return data, res.Type, err
}

// loadImages embeds every image in urls that can be read within timeout
// each. Images that cannot are left out and will not be drawn.
func loadImages(ctx context.Context, urls []string, timeout time.Duration, log *zap.Logger) map[string]embeddedImage {
	images := make(map[string]embeddedImage, len(urls))
	if len(urls) == 0 {
		return images
	}
	loader := newImageLoader(ctx)
	for _, u := range urls {
		if ctx.Err() != nil {
			break
		}
		img, err := loader.load(ctx, u, timeout)
		if err != nil {
			log.Debug("image not embedded", zap.String("image", u), zap.Error(err))
			continue
		}
		images[u] = img
	}
	return images
}

func (l *imageLoader) load(ctx context.Context, u string, timeout time.Duration) (embeddedImage, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	data, mimeType, err := l.fetch(ctx, u)
	if err != nil {
		return embeddedImage{}, err
	}
	return newEmbeddedImage(data, mimeType)
}

// resolve makes ref absolute against the document's base URL.
func (t *renderTree) resolve(ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" || strings.HasPrefix(ref, "data:") {
		return ref
	}
	base := t.str(t.doc.BaseURL)
	if base == "" {
		base = t.str(t.doc.DocumentURL)
	}
	b, err := url.Parse(base)
	if err != nil || base == "" {
		return ref
	}
	r, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return b.ResolveReference(r).String()
}

// contentImage returns the URL an IMG element displays.
func (t *renderTree) contentImage(node int64) string {
	if src := t.sources[node]; src != "" {
		return src
	}
	return t.resolve(t.attr(node, "src"))
}

// imageURLs lists the distinct images the tree paints under policy.
func (t *renderTree) imageURLs(policy imagePolicy) []string {
	var urls []string
	seen := make(map[string]bool)
	add := func(u string) {
		if u != "" && !seen[u] {
			seen[u] = true
			urls = append(urls, u)
		}
	}
	for li := 0; li < t.layoutLen(); li++ {
		node := t.node(li)
		if t.nodeType(node) != nodeTypeElement {
			continue
		}
		if policy.content && t.nodeName(node) == "IMG" {
			add(t.contentImage(node))
		}
		if policy.background {
			for _, layer := range splitTop(t.style(li, "background-image"), ',') {
				add(t.resolve(layerURL(layer)))
			}
		}
	}
	return urls
}

var cssURL = regexp.MustCompile(`^url\(\s*(?:"((?:[^"\\]|\\.)*)"|'((?:[^'\\]|\\.)*)'|([^)\s]*))\s*\)$`)

// layerURL returns the reference of a url() image layer, or "" for
// gradients and "none".
func layerURL(layer string) string {
	m := cssURL.FindStringSubmatch(strings.TrimSpace(layer))
	if m == nil {
		return ""
	}
	u := m[1] + m[2] + m[3]
	return strings.NewReplacer(`\"`, `"`, `\'`, `'`, `\\`, `\`).Replace(u)
}

// splitTop splits s at sep, ignoring separators inside parentheses and
// quotes. Empty pieces are dropped.
func splitTop(s string, sep rune) []string {
	var (
		out     []string
		depth   int
		quote   rune
		escaped bool
		start   int
	)
	flush := func(end int) {
		if piece := strings.TrimSpace(s[start:end]); piece != "" {
			out = append(out, piece)
		}
	}
	for i, r := range s {
		switch {
		case escaped:
			escaped = false
		case r == '\\':
			escaped = true
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '"' || r == '\'':
			quote = r
		case r == '(':
			depth++
		case r == ')':
			depth = max(depth-1, 0)
		case r == sep && depth == 0:
			flush(i)
			start = i + 1
		}
	}
	flush(len(s))
	return out
}

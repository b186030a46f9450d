package htmlimage_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	htmlimage "github.com/porticus-lab/go-html-image"
)

// chromeAvailable reports whether a Chrome/Chromium executable is in PATH.
func chromeAvailable() bool {
	for _, name := range []string{
		"chromium-browser", "chromium", "google-chrome",
		"google-chrome-stable", "chrome",
	} {
		if _, err := exec.LookPath(name); err == nil {
			return true
		}
	}
	return false
}

func skipIfNoChrome(t *testing.T) {
	t.Helper()
	if !chromeAvailable() {
		t.Skip("skipping: Chrome/Chromium not found in PATH")
	}
}

func newChromeRenderer(t *testing.T, opts ...htmlimage.Option) *htmlimage.Renderer {
	t.Helper()
	skipIfNoChrome(t)
	r, err := htmlimage.NewRenderer(append([]htmlimage.Option{htmlimage.WithNoSandbox()}, opts...)...)
	if err != nil {
		t.Fatalf("NewRenderer: %v", err)
	}
	t.Cleanup(func() { r.Close() })
	return r
}

// servePages serves the given path → HTML map and counts image requests.
func servePages(t *testing.T, pages map[string]string) (*httptest.Server, *atomic.Int64) {
	t.Helper()
	var imageHits atomic.Int64
	mux := http.NewServeMux()
	for path, body := range pages {
		mux.HandleFunc(path, func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			fmt.Fprint(w, body)
		})
	}
	mux.HandleFunc("/img.png", func(w http.ResponseWriter, _ *http.Request) {
		imageHits.Add(1)
		w.Header().Set("Content-Type", "image/png")
		img := image.NewRGBA(image.Rect(0, 0, 4, 4))
		draw.Draw(img, img.Bounds(), image.NewUniform(color.RGBA{R: 255, A: 255}), image.Point{}, draw.Src)
		png.Encode(w, img) //nolint:errcheck // test server
	})
	mux.HandleFunc("/data.json", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"ok":true}`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &imageHits
}

const tallPage = `<!DOCTYPE html>
<html><head><style>
  html, body { margin: 0; padding: 0; }
  .tall { width: 100%; height: 3000px; background: linear-gradient(#fff, #000); }
</style></head>
<body><div class="tall"></div></body></html>`

const mediaPage = `<!DOCTYPE html>
<html><head><style>
  html, body { margin: 0; height: 100%; }
  @media screen { body { background: rgb(255, 0, 0); } }
  @media print { body { background: rgb(0, 0, 255); } }
</style></head><body></body></html>`

const imagePage = `<!DOCTYPE html>
<html><body><img src="/img.png" width="4" height="4"></body></html>`

func decodePNG(t *testing.T, res *htmlimage.Result) image.Image {
	t.Helper()
	img, err := png.Decode(bytes.NewReader(res.Bytes()))
	require.NoError(t, err)
	return img
}

func TestRender_CropVersusFullPage(t *testing.T) {
	r := newChromeRenderer(t)
	srv, _ := servePages(t, map[string]string{"/tall": tallPage})
	ctx := context.Background()

	r.SetWindowSize(800, 600, true)
	res, err := r.Render(ctx, srv.URL+"/tall", htmlimage.Bitmap)
	require.NoError(t, err)
	b := decodePNG(t, res).Bounds()
	assert.Equal(t, 800, b.Dx())
	assert.Equal(t, 600, b.Dy())

	r.SetWindowSize(800, 600, false)
	res, err = r.Render(ctx, srv.URL+"/tall", htmlimage.Bitmap)
	require.NoError(t, err)
	b = decodePNG(t, res).Bounds()
	assert.Equal(t, 800, b.Dx())
	assert.Equal(t, 3000, b.Dy())
	assert.Equal(t, 3000, res.Height())
}

func TestRender_Vector(t *testing.T) {
	r := newChromeRenderer(t)
	srv, _ := servePages(t, map[string]string{"/doc": `<!DOCTYPE html>
<html><head><title>Vector</title></head>
<body style="font-family: serif"><h1 style="background: rgb(0, 128, 0)">Hello SVG</h1></body></html>`})

	r.SetWindowSize(640, 480, true)
	res, err := r.Render(context.Background(), srv.URL+"/doc", htmlimage.Vector)
	require.NoError(t, err)

	out := string(res.Bytes())
	assert.True(t, strings.HasPrefix(out, "<?xml"), out)
	assert.Contains(t, out, `width="640.00" height="480.00"`)
	assert.Contains(t, out, "<title>Vector</title>")
	assert.Contains(t, out, "Hello")
	assert.Contains(t, out, "fill:rgb(0,128,0)")
	assert.Contains(t, out, "Times New Roman")
}

func TestRender_VectorEmbedsImages(t *testing.T) {
	r := newChromeRenderer(t)
	srv, _ := servePages(t, map[string]string{"/doc": `<!DOCTYPE html>
<html><body style="margin: 0">
<img src="/img.png" width="40" height="40">
<div style="width: 100px; height: 30px; background-image: url(/img.png)"></div>
<div style="width: 100px; height: 30px; background: url('/img.png') no-repeat 50% 50% / 10px 10px"></div>
</body></html>`})

	r.SetWindowSize(200, 200, true)
	res, err := r.Render(context.Background(), srv.URL+"/doc", htmlimage.Vector)
	require.NoError(t, err)

	out := string(res.Bytes())
	assert.NotContains(t, out, `xlink:href="http`)
	assert.NotContains(t, out, srv.URL)
	assert.Equal(t, 3, strings.Count(out, `xlink:href="data:image/png;base64,`), out)
	assert.Contains(t, out, "<pattern")
	assert.Contains(t, out, "<clipPath")
}

func TestRender_MediaType(t *testing.T) {
	r := newChromeRenderer(t)
	srv, _ := servePages(t, map[string]string{"/media": mediaPage})
	ctx := context.Background()
	r.SetWindowSize(100, 100, true)

	pixel := func() (uint32, uint32, uint32) {
		res, err := r.Render(ctx, srv.URL+"/media", htmlimage.Bitmap)
		require.NoError(t, err)
		cr, cg, cb, _ := decodePNG(t, res).At(50, 50).RGBA()
		return cr >> 8, cg >> 8, cb >> 8
	}

	cr, cg, cb := pixel()
	assert.Equal(t, [3]uint32{255, 0, 0}, [3]uint32{cr, cg, cb}, "screen")

	r.SetMediaType("print")
	cr, cg, cb = pixel()
	assert.Equal(t, [3]uint32{0, 0, 255}, [3]uint32{cr, cg, cb}, "print")
}

func TestRender_HTTPErrorIsFetchError(t *testing.T) {
	r := newChromeRenderer(t)
	srv, _ := servePages(t, nil)

	_, err := r.Render(context.Background(), srv.URL+"/missing", htmlimage.Bitmap)

	var fetchErr *htmlimage.FetchError
	require.True(t, errors.As(err, &fetchErr), "got %v", err)
	assert.Equal(t, 404, fetchErr.StatusCode)
}

func TestRender_UnreachableHostIsFetchError(t *testing.T) {
	r := newChromeRenderer(t)
	srv, _ := servePages(t, nil)
	url := srv.URL
	srv.Close()

	_, err := r.Render(context.Background(), url, htmlimage.Bitmap)
	var fetchErr *htmlimage.FetchError
	assert.True(t, errors.As(err, &fetchErr), "got %v", err)
}

func TestRender_NonDocumentIsParseError(t *testing.T) {
	r := newChromeRenderer(t)
	srv, _ := servePages(t, nil)

	_, err := r.Render(context.Background(), srv.URL+"/data.json", htmlimage.Bitmap)

	var parseErr *htmlimage.ParseError
	require.True(t, errors.As(err, &parseErr), "got %v", err)
	assert.Equal(t, "application/json", parseErr.MIMEType)
}

func TestRender_LocalFile(t *testing.T) {
	r := newChromeRenderer(t)
	path := filepath.Join(t.TempDir(), "page.html")
	require.NoError(t, os.WriteFile(path, []byte(mediaPage), 0o644))

	r.SetWindowSize(50, 50, true)
	res, err := r.Render(context.Background(), path, htmlimage.Bitmap)
	require.NoError(t, err)
	assert.Equal(t, 50, decodePNG(t, res).Bounds().Dx())
}

func TestRender_ImplicitHTTP(t *testing.T) {
	r := newChromeRenderer(t, htmlimage.WithImplicitHTTP())
	srv, _ := servePages(t, map[string]string{"/media": mediaPage})
	r.SetWindowSize(100, 100, true)

	bare := strings.TrimPrefix(srv.URL, "http://") + "/media"
	implicit, err := r.Render(context.Background(), bare, htmlimage.Bitmap)
	require.NoError(t, err)
	explicit, err := r.Render(context.Background(), srv.URL+"/media", htmlimage.Bitmap)
	require.NoError(t, err)

	assert.Equal(t, explicit.Bytes(), implicit.Bytes())
}

func TestRender_ImagesDisabled(t *testing.T) {
	r := newChromeRenderer(t)
	srv, hits := servePages(t, map[string]string{"/img": imagePage})

	r.SetLoadImages(false, false)
	_, err := r.Render(context.Background(), srv.URL+"/img", htmlimage.Bitmap)
	require.NoError(t, err)
	assert.Zero(t, hits.Load(), "image must not be requested")

	r.SetLoadImages(true, true)
	_, err = r.Render(context.Background(), srv.URL+"/img", htmlimage.Bitmap)
	require.NoError(t, err)
	assert.NotZero(t, hits.Load())
}

// With only content images disabled the image may still be downloaded by
// the preload scanner, but it is never painted.
func TestRender_ContentImagesDisabledNotPainted(t *testing.T) {
	r := newChromeRenderer(t)
	srv, _ := servePages(t, map[string]string{"/img": `<!DOCTYPE html>
<html><body style="margin: 0; background: #fff"><img src="/img.png" width="50" height="50"></body></html>`})
	r.SetWindowSize(100, 100, true)

	center := func() uint32 {
		res, err := r.Render(context.Background(), srv.URL+"/img", htmlimage.Bitmap)
		require.NoError(t, err)
		_, g, _, _ := decodePNG(t, res).At(25, 25).RGBA()
		return g >> 8
	}

	r.SetLoadImages(false, true)
	assert.EqualValues(t, 255, center(), "content image must not paint")

	r.SetLoadImages(true, true)
	assert.EqualValues(t, 0, center(), "content image paints red")
}

func TestRenderTo_File(t *testing.T) {
	r := newChromeRenderer(t)
	srv, _ := servePages(t, map[string]string{"/media": mediaPage})
	out := filepath.Join(t.TempDir(), "page.png")

	r.SetWindowSize(64, 48, true)
	require.NoError(t, r.RenderTo(context.Background(), srv.URL+"/media", htmlimage.FileSink(out), htmlimage.Bitmap))

	f, err := os.Open(out)
	require.NoError(t, err)
	defer f.Close()
	cfg, err := png.DecodeConfig(f)
	require.NoError(t, err)
	assert.Equal(t, 64, cfg.Width)
	assert.Equal(t, 48, cfg.Height)
}

func TestRender_ClosedRenderer(t *testing.T) {
	r := newChromeRenderer(t)
	require.NoError(t, r.Close())
	_, err := r.Render(context.Background(), "http://example.com", htmlimage.Bitmap)
	assert.ErrorIs(t, err, htmlimage.ErrClosed)
}

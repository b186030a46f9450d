// Package htmlimage renders web pages to PNG or SVG images using headless
// Chrome (Chrome DevTools Protocol).
//
// The browser does all parsing, styling and layout. This package configures
// the page (viewport, media type, image loading), navigates to the document
// and captures the result.
//
// For one-off renders use the package-level helpers:
//
//	res, err := htmlimage.Render(ctx, "https://example.com", htmlimage.Bitmap)
//
// For repeated renders create a [Renderer], which reuses the browser process:
//
//	r, err := htmlimage.NewRenderer()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer r.Close()
//
//	r.SetWindowSize(800, 600, true)
//	res, err := r.Render(ctx, "https://example.com", htmlimage.Bitmap)
//	err = r.RenderTo(ctx, "page.html", htmlimage.FileSink("page.svg"), htmlimage.Vector)
//
// Sources must carry an http, https, ftp or file scheme, or name an existing
// local file. Use [WithImplicitHTTP] to treat any other scheme-less source as
// an http URL.
//
// [RenderSettings] controls the media type, the viewport and the image
// toggles. Without crop the output grows to fit the laid-out document; with
// crop it is exactly the viewport.
//
// A [Result] gives flexible access to the image bytes:
//
//	res.Bytes()                       // []byte
//	res.Base64()                      // base64 string (RFC 4648)
//	res.Reader()                      // *bytes.Reader
//	res.WriteTo(w)                    // io.WriterTo
//	res.WriteToFile("out.png", 0o644) // atomic write to disk
//
// Chrome or Chromium must be available in PATH, or use [WithAutoDownload]:
//
//	r, err := htmlimage.NewRenderer(htmlimage.WithAutoDownload())
package htmlimage

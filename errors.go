package htmlimage

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by the library.
var (
	// ErrClosed is returned when attempting to use a closed [Renderer].
	ErrClosed = errors.New("htmlimage: renderer is closed")

	// ErrUnsupportedFormat is returned for a [Format] other than [Bitmap]
	// or [Vector], and by [ParseFormat] for an unknown token.
	ErrUnsupportedFormat = errors.New("htmlimage: unsupported format")

	// ErrMissingScheme is returned when a source has no URL scheme, does not
	// name a local file, and the renderer was not built with
	// [WithImplicitHTTP].
	ErrMissingScheme = errors.New("htmlimage: source has no URL scheme")

	// ErrUnsupportedScheme is returned for schemes other than http, https,
	// ftp and file.
	ErrUnsupportedScheme = errors.New("htmlimage: unsupported URL scheme")

	// ErrNilSink is returned by [Renderer.RenderTo] when sink is nil.
	ErrNilSink = errors.New("htmlimage: nil sink")
)

// FetchError reports that the document could not be retrieved, either
// because the transport failed or because the server answered with an
// error status.
type FetchError struct {
	URL        string
	StatusCode int // zero when the request never got a response
	Err        error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("htmlimage: fetching %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("htmlimage: fetching %s: HTTP status %d", e.URL, e.StatusCode)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ParseError reports that the retrieved bytes did not produce a renderable
// document.
type ParseError struct {
	URL      string
	MIMEType string
	Err      error
}

func (e *ParseError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("htmlimage: parsing %s: %v", e.URL, e.Err)
	case e.MIMEType != "":
		return fmt.Sprintf("htmlimage: parsing %s: %s is not a document type", e.URL, e.MIMEType)
	default:
		return fmt.Sprintf("htmlimage: parsing %s: no document", e.URL)
	}
}

func (e *ParseError) Unwrap() error { return e.Err }

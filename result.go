package htmlimage

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Result holds a rendered image and provides helpers for common output
// forms such as raw bytes, base64 encoding, and streaming readers.
//
// A Result is returned by every render. It is safe to call its methods
// multiple times; the underlying data is never modified.
type Result struct {
	data   []byte
	format Format
	width  int
	height int
}

// NewResult wraps already encoded output. It is mainly useful for
// implementing a [Sink] test double or replaying stored renders.
func NewResult(data []byte, format Format, width, height int) *Result {
	return &Result{data: data, format: format, width: width, height: height}
}

// Bytes returns the encoded image (PNG or SVG).
func (r *Result) Bytes() []byte {
	return r.data
}

// Format returns the format the image is encoded in.
func (r *Result) Format() Format {
	return r.format
}

// Width returns the output width in CSS pixels.
func (r *Result) Width() int {
	return r.width
}

// Height returns the output height in CSS pixels.
func (r *Result) Height() int {
	return r.height
}

// Base64 returns the image encoded as a standard base64 string (RFC 4648).
func (r *Result) Base64() string {
	return base64.StdEncoding.EncodeToString(r.data)
}

// Reader returns an [*bytes.Reader] over the image content.
func (r *Result) Reader() *bytes.Reader {
	return bytes.NewReader(r.data)
}

// WriteTo writes the full image to w. It implements [io.WriterTo].
func (r *Result) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(r.data)
	return int64(n), err
}

// WriteToFile writes the image to path. The content goes to a temporary
// file in the same directory first and is renamed into place, so path
// either keeps its old content or holds the complete image.
func (r *Result) WriteToFile(path string, perm os.FileMode) (err error) {
	dir, base := filepath.Split(path)
	if dir == "" {
		dir = "."
	}
	f, err := os.CreateTemp(dir, "."+base+".tmp-*")
	if err != nil {
		return fmt.Errorf("htmlimage: creating temp file: %w", err)
	}
	tmp := f.Name()
	defer func() {
		if err != nil {
			f.Close()
			os.Remove(tmp)
		}
	}()

	if _, err = f.Write(r.data); err != nil {
		return fmt.Errorf("htmlimage: writing %s: %w", path, err)
	}
	if err = f.Sync(); err != nil {
		return fmt.Errorf("htmlimage: syncing %s: %w", path, err)
	}
	if err = f.Chmod(perm); err != nil {
		return fmt.Errorf("htmlimage: setting mode on %s: %w", path, err)
	}
	if err = f.Close(); err != nil {
		return fmt.Errorf("htmlimage: closing %s: %w", path, err)
	}
	if err = os.Rename(tmp, path); err != nil {
		return fmt.Errorf("htmlimage: renaming into %s: %w", path, err)
	}
	return nil
}

// Len returns the size of the encoded image in bytes.
func (r *Result) Len() int {
	return len(r.data)
}

package htmlimage

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// schemePrefix matches an explicit "scheme://" prefix.
var schemePrefix = regexp.MustCompile(`^([A-Za-z][A-Za-z0-9+.-]*)://`)

var supportedSchemes = map[string]bool{
	"http":  true,
	"https": true,
	"ftp":   true,
	"file":  true,
}

// resolveSource turns a caller-supplied source into the URL handed to the
// browser.
//
// An explicit scheme must be one of http, https, ftp or file ("file:" without
// slashes is accepted too). A scheme-less source naming an existing local
// file becomes a file URL. Anything else is rejected with ErrMissingScheme
// unless implicitHTTP is set, in which case "http://" is prepended.
func resolveSource(raw string, implicitHTTP bool) (string, error) {
	src := strings.TrimSpace(raw)
	if src == "" {
		return "", fmt.Errorf("%w: empty source", ErrMissingScheme)
	}

	if m := schemePrefix.FindStringSubmatch(src); m != nil {
		scheme := strings.ToLower(m[1])
		if !supportedSchemes[scheme] {
			return "", fmt.Errorf("%w: %q", ErrUnsupportedScheme, scheme)
		}
		return src, nil
	}
	if len(src) > len("file:") && strings.EqualFold(src[:len("file:")], "file:") {
		return src, nil
	}

	if info, err := os.Stat(src); err == nil && !info.IsDir() {
		abs, err := filepath.Abs(src)
		if err != nil {
			return "", fmt.Errorf("htmlimage: resolving path: %w", err)
		}
		return (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}).String(), nil
	}

	if implicitHTTP {
		return "http://" + src, nil
	}
	return "", fmt.Errorf("%w: %q", ErrMissingScheme, src)
}

// Command htmlimage renders a web page to a PNG or SVG image.
//
// Usage:
//
//	htmlimage [flags] <url> <output_file> <format>
//
// Format is "png" or "svg". Run with --help for the full flag list.
package main

import (
	"os"

	"github.com/porticus-lab/go-html-image/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}

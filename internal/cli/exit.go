package cli

import (
	"errors"
	"fmt"
	"io/fs"

	htmlimage "github.com/porticus-lab/go-html-image"
)

// Process exit codes.
const (
	ExitOK                = 0
	ExitInternal          = 1
	ExitUsage             = 2
	ExitUnsupportedFormat = 3
	ExitInvalidSource     = 4
	ExitIO                = 5
	ExitParse             = 6
)

// UsageError reports a malformed command line: a wrong argument count, an
// unknown flag or an invalid flag value.
type UsageError struct {
	Err error
}

func (e *UsageError) Error() string { return e.Err.Error() }

func (e *UsageError) Unwrap() error { return e.Err }

func usageErrorf(format string, args ...any) error {
	return &UsageError{Err: fmt.Errorf(format, args...)}
}

// ExitCode maps an error returned by [Run] to the process exit code.
func ExitCode(err error) int {
	var (
		usageErr *UsageError
		fetchErr *htmlimage.FetchError
		parseErr *htmlimage.ParseError
		pathErr  *fs.PathError
	)
	switch {
	case err == nil:
		return ExitOK
	case errors.As(err, &usageErr):
		return ExitUsage
	case errors.Is(err, htmlimage.ErrUnsupportedFormat):
		return ExitUnsupportedFormat
	case errors.Is(err, htmlimage.ErrMissingScheme), errors.Is(err, htmlimage.ErrUnsupportedScheme):
		return ExitInvalidSource
	case errors.As(err, &fetchErr):
		return ExitIO
	case errors.As(err, &parseErr):
		return ExitParse
	case errors.As(err, &pathErr):
		return ExitIO
	}
	return ExitInternal
}

package htmlimage

import (
	"fmt"
	"io"
	"os"
)

// Sink is a destination for rendered output. Commit receives the complete
// image; a sink never sees partial output.
type Sink interface {
	Commit(res *Result) error
}

// SinkFunc adapts a function to the [Sink] interface.
type SinkFunc func(res *Result) error

// Commit calls f(res).
func (f SinkFunc) Commit(res *Result) error { return f(res) }

// WriterSink returns a Sink that writes the image to w. The writer is not
// closed.
func WriterSink(w io.Writer) Sink {
	return writerSink{w: w}
}

// FileSink returns a Sink that atomically replaces the file at path with
// the image, using mode 0644 for new files.
func FileSink(path string) Sink {
	return fileSink{path: path, perm: 0o644}
}

type writerSink struct {
	w io.Writer
}

func (s writerSink) Commit(res *Result) error {
	if _, err := res.WriteTo(s.w); err != nil {
		return fmt.Errorf("htmlimage: writing output: %w", err)
	}
	return nil
}

type fileSink struct {
	path string
	perm os.FileMode
}

func (s fileSink) Commit(res *Result) error {
	return res.WriteToFile(s.path, s.perm)
}

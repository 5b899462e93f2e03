// Package bytestream implements the byte-stream interface of spec §6:
// the minimal pull/push abstraction the core reads from and writes to.
// I/O errors propagate verbatim to the caller (spec §1).
package bytestream

import "io"

// Source is the byte-stream interface consumed by the reader.
// Read has classic stream-read semantics: a short read at EOF returns
// fewer bytes than requested with a nil error, and the subsequent call
// returns (0, io.EOF).
type Source interface {
	Read(dst []byte) (n int, err error)
}

// Sink is the byte-stream interface consumed by the writer.
type Sink interface {
	Write(src []byte) (n int, err error)
}

// Seeker is the optional seek/tell capability of spec §6, used only by
// writers that rewrite lengths after the fact. The core reader/writer
// in this module never requires it.
type Seeker interface {
	Seek(offset int64, whence int) (int64, error)
	Tell() (int64, error)
}

// AsReader adapts a Source back to the io.Reader interface, e.g. for
// use with io.ReadFull.
func AsReader(src Source) io.Reader {
	if r, ok := src.(io.Reader); ok {
		return r
	}
	return sourceReader{src}
}

type sourceReader struct{ s Source }

func (r sourceReader) Read(p []byte) (int, error) { return r.s.Read(p) }

// FromReader adapts an io.Reader to Source. If r is already a Source,
// it is returned unchanged.
func FromReader(r io.Reader) Source {
	if s, ok := r.(Source); ok {
		return s
	}
	return readerSource{r}
}

type readerSource struct{ r io.Reader }

func (s readerSource) Read(dst []byte) (int, error) { return s.r.Read(dst) }

// FromWriter adapts an io.Writer to Sink.
func FromWriter(w io.Writer) Sink {
	if s, ok := w.(Sink); ok {
		return s
	}
	return writerSink{w}
}

type writerSink struct{ w io.Writer }

func (s writerSink) Write(src []byte) (int, error) { return s.w.Write(src) }

// CountingSource wraps a Source and tracks the number of bytes pulled
// through it, giving the reader a Position() accessor without the
// underlying source needing to support Seek/Tell (spec §9's
// supplemental position accessor).
type CountingSource struct {
	Source
	n int64
}

// NewCountingSource wraps src.
func NewCountingSource(src Source) *CountingSource {
	return &CountingSource{Source: src}
}

func (c *CountingSource) Read(dst []byte) (int, error) {
	n, err := c.Source.Read(dst)
	c.n += int64(n)
	return n, err
}

// Position returns the total number of bytes read so far.
func (c *CountingSource) Position() int64 { return c.n }

// CountingSink mirrors CountingSource for the writer.
type CountingSink struct {
	Sink
	n int64
}

// NewCountingSink wraps sink.
func NewCountingSink(sink Sink) *CountingSink {
	return &CountingSink{Sink: sink}
}

func (c *CountingSink) Write(src []byte) (int, error) {
	n, err := c.Sink.Write(src)
	c.n += int64(n)
	return n, err
}

// Position returns the total number of bytes written so far.
func (c *CountingSink) Position() int64 { return c.n }

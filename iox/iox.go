// Package iox provides small I/O helpers shared by the transports and CLI.
package iox

import (
	"io"
	"sync/atomic"
)

// DiscardClose closes c and discards the error.
// Use in defer statements where close errors are unactionable:
//
//	defer iox.DiscardClose(f)
func DiscardClose(c io.Closer) { _ = c.Close() }

// CloseFunc returns a cleanup function that closes c.
//
//	t.Cleanup(iox.CloseFunc(ch))
func CloseFunc(c io.Closer) func() {
	return func() { _ = c.Close() }
}

// CountingWriter counts bytes written through it.
type CountingWriter struct {
	w io.Writer
	n atomic.Int64
}

// NewCountingWriter wraps w.
func NewCountingWriter(w io.Writer) *CountingWriter {
	return &CountingWriter{w: w}
}

func (c *CountingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n.Add(int64(n))
	return n, err
}

// Count returns the number of bytes written so far.
func (c *CountingWriter) Count() int64 { return c.n.Load() }

// CountingReader counts bytes read through it.
type CountingReader struct {
	r io.Reader
	n atomic.Int64
}

// NewCountingReader wraps r.
func NewCountingReader(r io.Reader) *CountingReader {
	return &CountingReader{r: r}
}

func (c *CountingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n.Add(int64(n))
	return n, err
}

// Count returns the number of bytes read so far.
func (c *CountingReader) Count() int64 { return c.n.Load() }

package stream

import (
	"compress/gzip"
	"compress/zlib"
	"io"
	"strings"
)

// Stage is one unit of a streaming transform pipeline. A stage wraps a source
// reader and returns a reader producing the transformed bytes. Stages never
// buffer the whole payload; transforms run as the consumer reads. The
// returned reader must be closed: closing an abandoned stage is what unblocks
// and releases its compression worker.
type Stage func(io.Reader) io.ReadCloser

// Passthrough returns the source unchanged. Close is a no-op; the source's
// own lifecycle stays with the caller.
func Passthrough() Stage {
	return func(src io.Reader) io.ReadCloser { return io.NopCloser(src) }
}

// Chain composes stages left to right. Close closes outermost first so each
// upstream worker unblocks in turn.
func Chain(stages ...Stage) Stage {
	return func(src io.Reader) io.ReadCloser {
		r := src
		closers := make([]io.Closer, 0, len(stages))
		for _, stage := range stages {
			rc := stage(r)
			closers = append(closers, rc)
			r = rc
		}
		return &chainReader{r: r, closers: closers}
	}
}

type chainReader struct {
	r       io.Reader
	closers []io.Closer
}

func (c *chainReader) Read(p []byte) (int, error) {
	return c.r.Read(p)
}

func (c *chainReader) Close() error {
	var firstErr error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i].Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Gzip compresses the source with gzip. Compression happens in a background
// goroutine feeding a pipe so the stage stays pull-based for the consumer; a
// source error is propagated through the pipe to the reader. Closing the
// returned reader fails the worker's pending write and lets it exit.
func Gzip() Stage {
	return func(src io.Reader) io.ReadCloser {
		pr, pw := io.Pipe()
		go func() {
			gw := gzip.NewWriter(pw)
			if _, err := io.Copy(gw, src); err != nil {
				gw.Close()
				pw.CloseWithError(err)
				return
			}
			pw.CloseWithError(gw.Close())
		}()
		return pr
	}
}

// Gunzip decompresses a gzip source. The gzip header is not read until the
// first Read call, so wrapping never fails eagerly.
func Gunzip() Stage {
	return func(src io.Reader) io.ReadCloser {
		return &lazyReader{open: func() (io.Reader, error) {
			return gzip.NewReader(src)
		}}
	}
}

// Deflate compresses the source into the zlib format used by the HTTP
// deflate content coding.
func Deflate() Stage {
	return func(src io.Reader) io.ReadCloser {
		pr, pw := io.Pipe()
		go func() {
			zw := zlib.NewWriter(pw)
			if _, err := io.Copy(zw, src); err != nil {
				zw.Close()
				pw.CloseWithError(err)
				return
			}
			pw.CloseWithError(zw.Close())
		}()
		return pr
	}
}

type lazyReader struct {
	open func() (io.Reader, error)
	r    io.Reader
	err  error
}

func (l *lazyReader) Read(p []byte) (int, error) {
	if l.err != nil {
		return 0, l.err
	}
	if l.r == nil {
		l.r, l.err = l.open()
		if l.err != nil {
			return 0, l.err
		}
	}
	return l.r.Read(p)
}

func (l *lazyReader) Close() error {
	if c, ok := l.r.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// CountingReader counts bytes read from the underlying source.
type CountingReader struct {
	src io.Reader
	n   int64
}

// NewCountingReader wraps src.
func NewCountingReader(src io.Reader) *CountingReader {
	return &CountingReader{src: src}
}

func (c *CountingReader) Read(p []byte) (int, error) {
	n, err := c.src.Read(p)
	c.n += int64(n)
	return n, err
}

// Count returns the number of bytes read so far.
func (c *CountingReader) Count() int64 {
	return c.n
}

var compressibleTypes = map[string]bool{
	"application/json":       true,
	"application/javascript": true,
	"application/xml":        true,
	"application/x-yaml":     true,
	"application/wasm":       true,
	"image/svg+xml":          true,
}

// IsCompressible reports whether a declared content type is worth gzipping
// at rest. Text-like payloads qualify; already-compressed media does not.
func IsCompressible(contentType string) bool {
	mediaType := contentType
	if i := strings.IndexByte(mediaType, ';'); i >= 0 {
		mediaType = mediaType[:i]
	}
	mediaType = strings.ToLower(strings.TrimSpace(mediaType))
	if strings.HasPrefix(mediaType, "text/") {
		return true
	}
	if strings.HasSuffix(mediaType, "+json") || strings.HasSuffix(mediaType, "+xml") {
		return true
	}
	return compressibleTypes[mediaType]
}

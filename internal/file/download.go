package file

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/nbatyrov/boxstore/internal/stream"
)

// Negotiate resolves the content-encoding decision table: what is stored at
// rest versus what the client accepts, gzip taking priority over deflate.
// At most one transcoding stage is ever applied. The returned encoding is
// the Content-Encoding header value, empty for identity responses.
func Negotiate(storedGzipped bool, acceptEncoding string) (stream.Stage, string) {
	acceptsGzip := acceptsToken(acceptEncoding, "gzip")
	acceptsDeflate := acceptsToken(acceptEncoding, "deflate")

	switch {
	case storedGzipped && acceptsGzip:
		return stream.Passthrough(), "gzip"
	case storedGzipped && acceptsDeflate:
		return stream.Chain(stream.Gunzip(), stream.Deflate()), "deflate"
	case storedGzipped:
		return stream.Gunzip(), ""
	case acceptsGzip:
		// Stored raw: the client would take gzip but the bytes are not
		// gzip, so they go out unmodified with no header.
		return stream.Passthrough(), ""
	case acceptsDeflate:
		return stream.Deflate(), "deflate"
	default:
		return stream.Passthrough(), ""
	}
}

// Download opens the remote read stream and wraps it in the negotiated
// transcoding stage. The download counter is bumped best-effort.
func (s *Service) Download(ctx context.Context, entry Entry, acceptEncoding string) (io.ReadCloser, string, error) {
	source, err := s.remote.GetObject(ctx, entry.BucketID, entry.ID)
	if err != nil {
		return nil, "", fmt.Errorf("open object %s: %w", entry.ID, err)
	}

	stage, contentEncoding := Negotiate(entry.Gzipped, acceptEncoding)

	_ = s.repo.IncrementDownloads(ctx, entry.ID)

	staged := stage(source)
	return &stagedReadCloser{Reader: staged, stage: staged, source: source}, contentEncoding, nil
}

type stagedReadCloser struct {
	io.Reader
	stage  io.Closer
	source io.Closer
}

// Close releases the transcoding stage before the remote stream so a worker
// blocked mid-transform unblocks even when the client walked away.
func (s *stagedReadCloser) Close() error {
	stageErr := s.stage.Close()
	if err := s.source.Close(); err != nil {
		return err
	}
	return stageErr
}

func acceptsToken(acceptEncoding, token string) bool {
	for _, part := range strings.Split(acceptEncoding, ",") {
		name := part
		if i := strings.IndexByte(name, ';'); i >= 0 {
			name = name[:i]
		}
		if strings.EqualFold(strings.TrimSpace(name), token) {
			return true
		}
	}
	return false
}

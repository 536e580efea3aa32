package stream

import (
	"bytes"
	"compress/gzip"
	"compress/zlib"
	"errors"
	"io"
	"runtime"
	"strings"
	"testing"
	"time"
)

func TestGzipGunzipRoundTrip(t *testing.T) {
	payload := strings.Repeat("quota accounting payload ", 100)

	r := Chain(Gzip(), Gunzip())(strings.NewReader(payload))
	out, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("read chained stages: %v", err)
	}
	if string(out) != payload {
		t.Fatalf("round trip mismatch: got %d bytes, want %d", len(out), len(payload))
	}
}

func TestGzipStageProducesValidGzip(t *testing.T) {
	payload := []byte("hello stream")

	compressed, err := io.ReadAll(Gzip()(bytes.NewReader(payload)))
	if err != nil {
		t.Fatalf("read gzip stage: %v", err)
	}

	gr, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		t.Fatalf("output is not gzip: %v", err)
	}
	out, err := io.ReadAll(gr)
	if err != nil {
		t.Fatalf("decompress: %v", err)
	}
	if !bytes.Equal(out, payload) {
		t.Fatalf("unexpected payload: %q", out)
	}
}

func TestDeflateStageProducesZlib(t *testing.T) {
	payload := []byte("deflate me please, deflate me please")

	compressed, err := io.ReadAll(Deflate()(bytes.NewReader(payload)))
	if err != nil {
		t.Fatalf("read deflate stage: %v", err)
	}

	zr, err := zlib.NewReader(bytes.NewReader(compressed))
	if err != nil {
		t.Fatalf("output is not zlib: %v", err)
	}
	out, err := io.ReadAll(zr)
	if err != nil {
		t.Fatalf("decompress: %v", err)
	}
	if !bytes.Equal(out, payload) {
		t.Fatalf("unexpected payload: %q", out)
	}
}

func TestGzipStagePropagatesSourceError(t *testing.T) {
	srcErr := errors.New("source broke")
	r := Gzip()(&failingReader{err: srcErr})

	if _, err := io.ReadAll(r); !errors.Is(err, srcErr) {
		t.Fatalf("expected source error, got %v", err)
	}
}

func TestGunzipRejectsRawBytes(t *testing.T) {
	r := Gunzip()(strings.NewReader("definitely not gzip"))
	if _, err := io.ReadAll(r); err == nil {
		t.Fatalf("expected gzip header error")
	}
}

func TestPassthroughLeavesBytesAlone(t *testing.T) {
	out, err := io.ReadAll(Passthrough()(strings.NewReader("as-is")))
	if err != nil {
		t.Fatalf("read passthrough: %v", err)
	}
	if string(out) != "as-is" {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestCountingReaderCountsSourceBytes(t *testing.T) {
	payload := strings.Repeat("x", 4096)
	counter := NewCountingReader(strings.NewReader(payload))

	// Compress after counting so the count reflects source bytes.
	if _, err := io.ReadAll(Gzip()(counter)); err != nil {
		t.Fatalf("drain: %v", err)
	}
	if counter.Count() != int64(len(payload)) {
		t.Fatalf("expected count %d, got %d", len(payload), counter.Count())
	}
}

func TestAbandonedCompressionStagesReleaseWorkers(t *testing.T) {
	baseline := runtime.NumGoroutine()
	payload := bytes.Repeat([]byte("x"), 1<<20)

	for _, stage := range []Stage{Gzip(), Deflate(), Chain(Gzip(), Gunzip(), Deflate())} {
		for i := 0; i < 10; i++ {
			rc := stage(bytes.NewReader(payload))
			// Read a little, then walk away without draining.
			buf := make([]byte, 64)
			if _, err := rc.Read(buf); err != nil {
				t.Fatalf("first read failed: %v", err)
			}
			if err := rc.Close(); err != nil {
				t.Fatalf("close failed: %v", err)
			}
		}
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if runtime.NumGoroutine() <= baseline+2 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("compression workers leaked: %d goroutines, baseline %d", runtime.NumGoroutine(), baseline)
}

func TestIsCompressible(t *testing.T) {
	cases := []struct {
		contentType string
		want        bool
	}{
		{"text/plain", true},
		{"text/html; charset=utf-8", true},
		{"application/json", true},
		{"application/ld+json", true},
		{"image/svg+xml", true},
		{"image/png", false},
		{"video/mp4", false},
		{"application/zip", false},
		{"", false},
	}
	for _, tc := range cases {
		if got := IsCompressible(tc.contentType); got != tc.want {
			t.Errorf("IsCompressible(%q) = %v, want %v", tc.contentType, got, tc.want)
		}
	}
}

type failingReader struct {
	err error
}

func (f *failingReader) Read([]byte) (int, error) {
	return 0, f.err
}

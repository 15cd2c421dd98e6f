package mcshell

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
)

// limitedCountingReader wraps an io.Reader for diagnostics: it passes
// every byte through unmodified while counting how many crossed it, so
// a stage's actual upstream consumption can be reported in its
// StageDiagnostic regardless of which executor handled it. It does not
// itself enforce limit — readAllBounded does that — it only flags
// (via read > limit) that the stage's declared bound was reached.
type limitedCountingReader struct {
	r     io.Reader
	limit int64
	read  int64
}

func newLimitedCountingReader(r io.Reader, limit int64) *limitedCountingReader {
	return &limitedCountingReader{r: r, limit: limit}
}

func (l *limitedCountingReader) Read(p []byte) (int, error) {
	n, err := l.r.Read(p)
	l.read += int64(n)
	return n, err
}

// readAllBounded materializes r into a string, stopping (and setting
// truncated=true) once limit bytes have been read rather than growing
// without bound.
func readAllBounded(r io.Reader, limit int64) (data string, truncated bool, err error) {
	lr := io.LimitReader(r, limit+1)
	buf, err := io.ReadAll(lr)
	if err != nil {
		return "", false, err
	}
	if int64(len(buf)) > limit {
		return string(buf[:limit]), true, nil
	}
	return string(buf), false, nil
}

// teeIntoBuffer returns a reader that yields the same bytes as src
// while additionally accumulating a bounded copy into dst. If the
// accumulated copy would exceed limit, teeing into dst stops silently
// for subsequent bytes but the returned reader continues to pass all
// of src through unaffected — the caller inspects dst.exceeded to
// decide whether to fail with ErrBufferLimitExceeded.
type boundedBuffer struct {
	buf      bytes.Buffer
	limit    int64
	exceeded bool
}

func newBoundedBuffer(limit int64) *boundedBuffer {
	return &boundedBuffer{limit: limit}
}

func (b *boundedBuffer) Write(p []byte) (int, error) {
	if int64(b.buf.Len())+int64(len(p)) > b.limit {
		b.exceeded = true
		room := b.limit - int64(b.buf.Len())
		if room > 0 {
			b.buf.Write(p[:room])
		}
		return len(p), nil
	}
	return b.buf.Write(p)
}

func teeIntoBuffer(src io.Reader, dst *boundedBuffer) io.Reader {
	return io.TeeReader(src, dst)
}

// scanNonEmptyLines returns a bufio.Scanner configured for JSON-lines
// input, with room for lines up to 16 MiB. The scanner yields blank
// lines like any other; callers skip them in their own loop.
func scanNonEmptyLines(r io.Reader) *bufio.Scanner {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16<<20)
	return scanner
}

// summarize builds a preview stage's output: a byte count, a rune
// count, and the first n runes of data, joined as human-readable text
// rather than JSON since a preview's purpose is a quick glance, not a
// machine-parsed contract.
func summarize(data []byte, n int) string {
	runes := []rune(string(data))
	truncated := len(runes) > n
	if truncated {
		runes = runes[:n]
	}

	var b bytes.Buffer
	fmt.Fprintf(&b, "bytes=%d runes=%d truncated=%t\n", len(data), len([]rune(string(data))), truncated)
	b.WriteString(string(runes))
	return b.String()
}

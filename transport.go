package mcshell

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"sync"
	"sync/atomic"
)

// StdioTransport speaks line-delimited JSON-RPC over a pair of byte
// streams, the same framing a CLI-driving transport would use against
// a subprocess's stdin/stdout, but from the opposite end: mcshell is
// the long-running server here, reading RPCRequests from r and writing
// RPCResponses to w, rather than spawning and driving a child.
type StdioTransport struct {
	r       io.Reader
	w       io.Writer
	scanner *bufio.Scanner
	mu      sync.Mutex
	closed  atomic.Bool
}

// NewStdioTransport wraps r/w (typically os.Stdin/os.Stdout) as a
// JSON-RPC line transport.
func NewStdioTransport(r io.Reader, w io.Writer) *StdioTransport {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16<<20)
	return &StdioTransport{r: r, w: w, scanner: scanner}
}

// WriteResponse serializes resp as a single JSON line. Writes are
// serialized through a mutex so concurrently-handled requests never
// interleave their responses on the wire.
func (t *StdioTransport) WriteResponse(resp RPCResponse) error {
	if t.closed.Load() {
		return &ErrTransportClosed{}
	}

	data, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("marshal response: %w", err)
	}
	data = append(data, '\n')

	t.mu.Lock()
	defer t.mu.Unlock()
	_, err = t.w.Write(data)
	return err
}

// ReadRequests returns an iterator over incoming RPCRequests, one per
// line. It stops at EOF, a scanner error, or once the caller quits
// pulling from the sequence; a malformed line is yielded as a parse
// error rather than terminating the stream.
func (t *StdioTransport) ReadRequests(ctx context.Context) iter.Seq2[RPCRequest, error] {
	return func(yield func(RPCRequest, error) bool) {
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			if !t.scanner.Scan() {
				if err := t.scanner.Err(); err != nil {
					yield(RPCRequest{}, fmt.Errorf("scanner error: %w", err))
				}
				return
			}

			line := t.scanner.Bytes()
			if len(line) == 0 {
				continue
			}

			var req RPCRequest
			if err := json.Unmarshal(line, &req); err != nil {
				if !yield(RPCRequest{}, fmt.Errorf("parse request: %w", err)) {
					return
				}
				continue
			}

			if !yield(req, nil) {
				return
			}
		}
	}
}

// Close marks the transport closed; further WriteResponse calls fail.
func (t *StdioTransport) Close() error {
	t.closed.Store(true)
	return nil
}

// ErrTransportClosed indicates a write was attempted after Close.
type ErrTransportClosed struct{}

func (e *ErrTransportClosed) Error() string { return "transport closed" }

package ingest

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/ayusman/kinetic/internal/frame"
)

// Replay reads frames from a JSONL stream, one serialized frame per line.
// Blank lines are skipped.
type Replay struct {
	scanner *bufio.Scanner
	closer  io.Closer
	line    int
}

// NewReplay creates a Replay over r. If r is also an io.Closer, Close
// closes it.
func NewReplay(r io.Reader) *Replay {
	scanner := bufio.NewScanner(r)
	// Raise the per-line limit from bufio's 64 KiB default to 1 MiB.
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	rep := &Replay{scanner: scanner}
	if c, ok := r.(io.Closer); ok {
		rep.closer = c
	}
	return rep
}

// OpenReplay opens a JSONL replay file.
func OpenReplay(path string) (*Replay, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("ingest: open replay: %w", err)
	}
	return NewReplay(f), nil
}

// Next returns the next frame, or io.EOF when the stream is exhausted.
func (r *Replay) Next() (frame.Frame, error) {
	for r.scanner.Scan() {
		r.line++
		data := bytes.TrimSpace(r.scanner.Bytes())
		if len(data) == 0 {
			continue
		}
		f, err := DecodeFrame(data)
		if err != nil {
			return frame.Frame{}, fmt.Errorf("ingest: replay line %d: %w", r.line, err)
		}
		return f, nil
	}
	if err := r.scanner.Err(); err != nil {
		return frame.Frame{}, err
	}
	return frame.Frame{}, io.EOF
}

// Close closes the underlying reader when it is closable.
func (r *Replay) Close() error {
	if r.closer != nil {
		return r.closer.Close()
	}
	return nil
}

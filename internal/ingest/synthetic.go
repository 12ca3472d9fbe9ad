package ingest

import (
	"io"

	"github.com/ayusman/kinetic/internal/frame"
)

// HandScript produces the hands visible on the i-th synthetic frame. A nil
// return means an empty frame (no hands detected).
type HandScript func(i int) []frame.Hand

// Synthetic generates timestamped frames on a fixed cadence from a hand
// script — a stand-in vision front-end for tests, demos, and the CLI.
type Synthetic struct {
	startMs    int64
	intervalMs int64
	count      int
	script     HandScript
	next       int
}

// NewSynthetic creates a Synthetic source emitting count frames starting
// at startMs, spaced intervalMs apart.
func NewSynthetic(startMs, intervalMs int64, count int, script HandScript) *Synthetic {
	return &Synthetic{
		startMs:    startMs,
		intervalMs: intervalMs,
		count:      count,
		script:     script,
	}
}

// Next returns the next generated frame, or io.EOF once count frames have
// been produced.
func (s *Synthetic) Next() (frame.Frame, error) {
	if s.next >= s.count {
		return frame.Frame{}, io.EOF
	}
	i := s.next
	s.next++

	f := frame.Frame{Timestamp: s.startMs + int64(i)*s.intervalMs}
	if s.script != nil {
		f.Hands = s.script(i)
	}
	return f, nil
}

// Close implements Source; a Synthetic holds no resources.
func (s *Synthetic) Close() error {
	return nil
}

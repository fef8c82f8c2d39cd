// Package replay records feature streams as JSONL and plays them back with
// original timing. Recordings make sensor sessions reproducible: the same
// file drives tests, tuning runs, and the replay tool.
package replay

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"gazemouse/pkg/feature"
)

// Sink consumes played-back frames. The engine's Offer satisfies it.
type Sink interface {
	Offer(f feature.Vector)
}

// Writer appends frames to a recording, one JSON object per line.
type Writer struct {
	enc   *json.Encoder
	count int
}

// NewWriter creates a recording writer over w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{enc: json.NewEncoder(w)}
}

// Write appends one frame.
func (w *Writer) Write(f feature.Vector) error {
	if err := w.enc.Encode(f); err != nil {
		return fmt.Errorf("writing frame %d: %w", w.count, err)
	}
	w.count++
	return nil
}

// Count returns the number of frames written.
func (w *Writer) Count() int { return w.count }

// Reader iterates a recording frame by frame.
type Reader struct {
	scanner *bufio.Scanner
	line    int
}

// NewReader creates a recording reader over r.
func NewReader(r io.Reader) *Reader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &Reader{scanner: scanner}
}

// Next returns the next frame, or io.EOF at the end of the recording. Blank
// lines are skipped.
func (r *Reader) Next() (feature.Vector, error) {
	for r.scanner.Scan() {
		r.line++
		raw := r.scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var f feature.Vector
		if err := json.Unmarshal(raw, &f); err != nil {
			return feature.Vector{}, fmt.Errorf("recording line %d: %w", r.line, err)
		}
		return f, nil
	}
	if err := r.scanner.Err(); err != nil {
		return feature.Vector{}, err
	}
	return feature.Vector{}, io.EOF
}

// ReadAll loads an entire recording into memory.
func ReadAll(r io.Reader) ([]feature.Vector, error) {
	reader := NewReader(r)
	var frames []feature.Vector
	for {
		f, err := reader.Next()
		if err == io.EOF {
			return frames, nil
		}
		if err != nil {
			return nil, err
		}
		frames = append(frames, f)
	}
}

// maxGap caps the pause reproduced between frames, so a recording with a
// long dropout does not stall playback for the same wall time.
const maxGap = time.Second

// Player feeds a recording into a sink, pacing frames by their recorded
// timestamps.
type Player struct {
	frames []feature.Vector

	// Speed is the playback rate multiplier; 1.0 reproduces recorded
	// timing, 0 or less plays as fast as the sink accepts.
	Speed float64
}

// NewPlayer creates a player over the given frames.
func NewPlayer(frames []feature.Vector, speed float64) *Player {
	return &Player{frames: frames, Speed: speed}
}

// Play delivers every frame to the sink, sleeping between frames to match
// recorded timing. It returns early when ctx is cancelled.
func (p *Player) Play(ctx context.Context, sink Sink) error {
	var prev time.Time
	for i, f := range p.frames {
		if i > 0 && p.Speed > 0 {
			gap := f.Timestamp.Sub(prev)
			if gap > maxGap {
				gap = maxGap
			}
			if gap > 0 {
				wait := time.Duration(float64(gap) / p.Speed)
				timer := time.NewTimer(wait)
				select {
				case <-ctx.Done():
					timer.Stop()
					return ctx.Err()
				case <-timer.C:
				}
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		sink.Offer(f)
		prev = f.Timestamp
	}
	return nil
}

// Len returns the number of frames loaded.
func (p *Player) Len() int { return len(p.frames) }

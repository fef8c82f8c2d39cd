package engine

import "gazemouse/pkg/feature"

// gazeRing is a fixed-capacity FIFO of recent gaze points. The oldest point
// is evicted when full; the buffer never grows, which keeps the classifier
// window bounded.
type gazeRing struct {
	buf   []feature.GazePoint
	head  int
	count int
}

func newGazeRing(capacity int) *gazeRing {
	return &gazeRing{buf: make([]feature.GazePoint, capacity)}
}

// push appends a point, evicting the oldest when at capacity.
func (r *gazeRing) push(p feature.GazePoint) {
	idx := (r.head + r.count) % len(r.buf)
	r.buf[idx] = p
	if r.count < len(r.buf) {
		r.count++
	} else {
		r.head = (r.head + 1) % len(r.buf)
	}
}

// points returns the buffered points oldest first.
func (r *gazeRing) points() []feature.GazePoint {
	out := make([]feature.GazePoint, r.count)
	for i := 0; i < r.count; i++ {
		out[i] = r.buf[(r.head+i)%len(r.buf)]
	}
	return out
}

// latest returns the most recent point.
func (r *gazeRing) latest() (feature.GazePoint, bool) {
	if r.count == 0 {
		return feature.GazePoint{}, false
	}
	return r.buf[(r.head+r.count-1)%len(r.buf)], true
}

func (r *gazeRing) len() int { return r.count }

func (r *gazeRing) clear() {
	r.head = 0
	r.count = 0
}

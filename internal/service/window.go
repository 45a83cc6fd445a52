package service

// rollingWindow is a fixed-capacity FIFO of float samples backed by a ring buffer.
// Once full, each push overwrites the oldest sample.
type rollingWindow struct {
	values []float64
	head   int // next write position
	count  int
}

func newRollingWindow(size int) *rollingWindow {
	return &rollingWindow{values: make([]float64, size)}
}

func (w *rollingWindow) push(v float64) {
	w.values[w.head] = v
	w.head = (w.head + 1) % len(w.values)
	if w.count < len(w.values) {
		w.count++
	}
}

// mean returns the average of retained samples, or 0 when empty.
func (w *rollingWindow) mean() float64 {
	if w.count == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range w.samples() {
		sum += v
	}
	return sum / float64(w.count)
}

// samples returns retained values oldest first.
func (w *rollingWindow) samples() []float64 {
	out := make([]float64, 0, w.count)
	start := w.head - w.count
	if start < 0 {
		start += len(w.values)
	}
	for i := 0; i < w.count; i++ {
		out = append(out, w.values[(start+i)%len(w.values)])
	}
	return out
}

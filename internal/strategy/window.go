package strategy

import "math"

// Window keeps the most recent values of an indicator series, evicting the
// oldest once full. Strategies use it to hold the handful of recent
// snapshots their predicates compare.
type Window struct {
	size   int
	values []float64
}

// NewWindow returns a window holding at most size values.
func NewWindow(size int) *Window {
	if size < 1 {
		size = 1
	}
	return &Window{size: size, values: make([]float64, 0, size)}
}

// Push appends v, dropping the oldest value when the window is full.
func (w *Window) Push(v float64) {
	if len(w.values) == w.size {
		copy(w.values, w.values[1:])
		w.values[len(w.values)-1] = v
		return
	}
	w.values = append(w.values, v)
}

// Len returns the number of stored values.
func (w *Window) Len() int { return len(w.values) }

// Last returns the most recent value, or NaN when the window is empty.
func (w *Window) Last() float64 {
	if len(w.values) == 0 {
		return math.NaN()
	}
	return w.values[len(w.values)-1]
}

// Prev returns the second most recent value, or NaN when fewer than two
// values are stored.
func (w *Window) Prev() float64 {
	if len(w.values) < 2 {
		return math.NaN()
	}
	return w.values[len(w.values)-2]
}

// MeanLast returns the mean of the n most recent values, or NaN when fewer
// than n values are stored.
func (w *Window) MeanLast(n int) float64 {
	if n <= 0 || len(w.values) < n {
		return math.NaN()
	}
	sum := 0.0
	for _, v := range w.values[len(w.values)-n:] {
		sum += v
	}
	return sum / float64(n)
}

// Reset empties the window.
func (w *Window) Reset() {
	w.values = w.values[:0]
}

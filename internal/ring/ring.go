// Package ring provides a fixed-capacity FIFO buffer that drops the oldest
// element once full.
package ring

type Ring[T any] struct {
	values []T
	size   int
	idx    int
	filled bool
}

func New[T any](size int) *Ring[T] {
	if size < 0 {
		size = 0
	}
	return &Ring[T]{values: make([]T, size), size: size}
}

// Add appends v, overwriting the oldest element when the ring is full.
func (r *Ring[T]) Add(v T) {
	if r.size == 0 {
		return
	}
	r.values[r.idx] = v
	r.idx = (r.idx + 1) % r.size
	if r.idx == 0 {
		r.filled = true
	}
}

// At returns the i-th element, oldest first. It panics if i is out of range.
func (r *Ring[T]) At(i int) T {
	if i < 0 || i >= r.Len() {
		panic("ring: index out of range")
	}
	if !r.filled {
		return r.values[i]
	}
	return r.values[(r.idx+i)%r.size]
}

// Values returns a copy of the contents, oldest first.
func (r *Ring[T]) Values() []T {
	if !r.filled {
		return append([]T{}, r.values[:r.idx]...)
	}
	out := make([]T, 0, r.size)
	out = append(out, r.values[r.idx:]...)
	out = append(out, r.values[:r.idx]...)
	return out
}

// Last returns the newest element.
func (r *Ring[T]) Last() (T, bool) {
	var zero T
	n := r.Len()
	if n == 0 {
		return zero, false
	}
	return r.At(n - 1), true
}

func (r *Ring[T]) Len() int {
	if r.filled {
		return r.size
	}
	return r.idx
}

func (r *Ring[T]) Cap() int {
	return r.size
}

// Mean averages a float ring; ok is false when it is empty.
func Mean(r *Ring[float64]) (mean float64, ok bool) {
	n := r.Len()
	if n == 0 {
		return 0, false
	}
	sum := 0.0
	for i := 0; i < n; i++ {
		sum += r.At(i)
	}
	return sum / float64(n), true
}

package history

// Buffer is a fixed-capacity FIFO of float64 values. Pushing into a full
// buffer evicts the oldest value. It is not safe for concurrent use.
type Buffer struct {
	data  []float64
	start int
	size  int
}

// NewBuffer creates a buffer holding at most capacity values. capacity must be positive.
func NewBuffer(capacity int) *Buffer {
	if capacity < 1 {
		capacity = 1
	}
	return &Buffer{data: make([]float64, capacity)}
}

// Push appends v, evicting the oldest value when full.
func (b *Buffer) Push(v float64) {
	if b.size < len(b.data) {
		b.data[(b.start+b.size)%len(b.data)] = v
		b.size++
		return
	}
	b.data[b.start] = v
	b.start = (b.start + 1) % len(b.data)
}

// Len returns the number of stored values.
func (b *Buffer) Len() int {
	return b.size
}

// Cap returns the buffer capacity.
func (b *Buffer) Cap() int {
	return len(b.data)
}

// Values returns a copy of the stored values, oldest first.
func (b *Buffer) Values() []float64 {
	return b.Last(b.size)
}

// Last returns a copy of the newest n values, oldest first.
func (b *Buffer) Last(n int) []float64 {
	if n > b.size {
		n = b.size
	}
	if n <= 0 {
		return []float64{}
	}
	out := make([]float64, n)
	offset := b.size - n
	for i := 0; i < n; i++ {
		out[i] = b.data[(b.start+offset+i)%len(b.data)]
	}
	return out
}

package containers

// Queue is an unbounded FIFO over a growable ring of elements. The zero value
// is ready to use. Not safe for concurrent use; callers hold their own lock.
type Queue[T any] struct {
	data       []T
	readIndex  int
	writeIndex int
	count      int
}

// Create a new Queue with an initial capacity hint.
func NewQueue[T any](capacity int) *Queue[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Queue[T]{
		data: make([]T, capacity),
	}
}

// Enqueue adds an element to the back of the queue, growing it when full.
func (q *Queue[T]) Enqueue(value T) {
	if q.data == nil {
		q.data = make([]T, 1)
	}
	if q.count == len(q.data) {
		q.grow()
	}
	q.data[q.writeIndex] = value
	q.writeIndex = (q.writeIndex + 1) % len(q.data)
	q.count++
}

// Dequeue removes and returns the front element in the queue.
func (q *Queue[T]) Dequeue() (T, bool) {
	var zero T
	if q.count == 0 {
		return zero, false
	}
	value := q.data[q.readIndex]
	q.data[q.readIndex] = zero
	q.readIndex = (q.readIndex + 1) % len(q.data)
	q.count--
	return value, true
}

// Peek returns the front element without removing it.
func (q *Queue[T]) Peek() (T, bool) {
	var zero T
	if q.count == 0 {
		return zero, false
	}
	return q.data[q.readIndex], true
}

func (q *Queue[T]) Len() int {
	return q.count
}

func (q *Queue[T]) IsEmpty() bool {
	return q.count == 0
}

// Drain removes every element, front to back, invoking fn on each.
func (q *Queue[T]) Drain(fn func(T)) {
	for {
		value, ok := q.Dequeue()
		if !ok {
			return
		}
		fn(value)
	}
}

func (q *Queue[T]) grow() {
	data := make([]T, len(q.data)*2)
	for i := 0; i < q.count; i++ {
		data[i] = q.data[(q.readIndex+i)%len(q.data)]
	}
	q.data = data
	q.readIndex = 0
	q.writeIndex = q.count
}

package uart

import "sync/atomic"

// fifo is the receive FIFO shared by the device (single producer) and the
// driver (single consumer, serialized by the port's read lock).
type fifo struct {
	_    [0]func() // prevent accidental copying.
	head atomic.Uint32
	tail atomic.Uint32
	buf  []byte
}

func (f *fifo) init(size int) {
	f.buf = make([]byte, size)
}

func (f *fifo) push(b byte) bool {
	head := f.head.Load()
	if head-f.tail.Load() >= uint32(len(f.buf)) {
		return false
	}
	f.buf[head%uint32(len(f.buf))] = b
	f.head.Store(head + 1)
	return true
}

// read moves up to len(p) queued bytes into p.
func (f *fifo) read(p []byte) int {
	tail := f.tail.Load()
	head := f.head.Load()
	n := 0
	for tail != head && n < len(p) {
		p[n] = f.buf[tail%uint32(len(f.buf))]
		tail++
		n++
	}
	f.tail.Store(tail)
	return n
}

func (f *fifo) len() int {
	return int(f.head.Load() - f.tail.Load())
}

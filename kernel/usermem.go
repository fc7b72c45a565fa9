package kernel

import (
	"encoding/binary"
	"sync"
)

// UserAddr is an address in a process's user memory window.
type UserAddr uint32

// UserMemory is the window of memory a process may pass to syscalls. Every
// access is bounds checked; addresses outside the window fault.
type UserMemory struct {
	mu   sync.Mutex
	base UserAddr
	data []byte
	brk  int
}

func newUserMemory(base UserAddr, size int) *UserMemory {
	return &UserMemory{base: base, data: make([]byte, size)}
}

func (m *UserMemory) Base() UserAddr { return m.base }

func (m *UserMemory) Size() int { return len(m.data) }

// Alloc reserves n bytes, 4-byte aligned.
func (m *UserMemory) Alloc(n int) (UserAddr, Result) {
	if n <= 0 {
		return 0, ErrInvalidArg
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	off := (m.brk + 3) &^ 3
	if off+n > len(m.data) {
		return 0, ErrFault
	}
	m.brk = off + n
	return m.base + UserAddr(off), Success
}

func (m *UserMemory) span(addr UserAddr, n int) (int, bool) {
	if addr < m.base || n < 0 {
		return 0, false
	}
	off := uint64(addr - m.base)
	if off+uint64(n) > uint64(len(m.data)) {
		return 0, false
	}
	return int(off), true
}

// CopyIn fills dst from user memory at addr.
func (m *UserMemory) CopyIn(addr UserAddr, dst []byte) Result {
	m.mu.Lock()
	defer m.mu.Unlock()
	off, ok := m.span(addr, len(dst))
	if !ok {
		return ErrFault
	}
	copy(dst, m.data[off:])
	return Success
}

// CopyOut writes src to user memory at addr.
func (m *UserMemory) CopyOut(addr UserAddr, src []byte) Result {
	m.mu.Lock()
	defer m.mu.Unlock()
	off, ok := m.span(addr, len(src))
	if !ok {
		return ErrFault
	}
	copy(m.data[off:], src)
	return Success
}

// ReadU32 loads a little-endian word.
func (m *UserMemory) ReadU32(addr UserAddr) (uint32, Result) {
	var b [4]byte
	if res := m.CopyIn(addr, b[:]); res != Success {
		return 0, res
	}
	return binary.LittleEndian.Uint32(b[:]), Success
}

// WriteU32 stores a little-endian word.
func (m *UserMemory) WriteU32(addr UserAddr, v uint32) Result {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	return m.CopyOut(addr, b[:])
}

//go:build !tinygo

package kernel

import (
	"bytes"
	"runtime"
	"runtime/debug"
	"strconv"
)

func captureStack() []byte {
	return debug.Stack()
}

var goroutinePrefix = []byte("goroutine ")

// curGoroutineID parses the ID from the "goroutine N [" stack header.
func curGoroutineID() uint64 {
	var buf [64]byte
	b := buf[:runtime.Stack(buf[:], false)]
	b = bytes.TrimPrefix(b, goroutinePrefix)
	if i := bytes.IndexByte(b, ' '); i > 0 {
		b = b[:i]
	}
	id, err := strconv.ParseUint(string(b), 10, 64)
	if err != nil {
		panic("kernel: cannot parse goroutine id: " + err.Error())
	}
	return id
}

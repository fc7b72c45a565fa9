//go:build !tinygo

package hal

import (
	"io"
	"sync"
	"unicode/utf8"

	"github.com/mattn/go-tty"
)

// hostSerial is the simulated console UART. Bytes arrive from the attached
// terminal or from window key presses; writes go to w.
type hostSerial struct {
	mu   sync.Mutex
	w    io.Writer
	tty  *tty.TTY
	rx   chan byte
	done chan struct{}
	once sync.Once
}

func newHostSerial(w io.Writer) *hostSerial {
	return &hostSerial{
		w:    w,
		rx:   make(chan byte, 256),
		done: make(chan struct{}),
	}
}

// attachConsole puts the controlling terminal in raw mode and forwards
// every typed rune to the receive side.
func (s *hostSerial) attachConsole() error {
	t, err := tty.Open()
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.tty = t
	s.w = t.Output()
	s.mu.Unlock()
	go func() {
		for {
			r, err := t.ReadRune()
			if err != nil {
				return
			}
			select {
			case <-s.done:
				return
			default:
			}
			s.inject(r)
		}
	}()
	return nil
}

// inject queues r as UTF-8. Bytes that do not fit are dropped, like an
// overrun hardware FIFO.
func (s *hostSerial) inject(r rune) {
	var b [utf8.UTFMax]byte
	n := utf8.EncodeRune(b[:], r)
	for _, c := range b[:n] {
		select {
		case s.rx <- c:
		default:
			return
		}
	}
}

// Read blocks for the first byte and then drains what is already queued.
func (s *hostSerial) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	select {
	case c := <-s.rx:
		p[0] = c
	case <-s.done:
		return 0, io.EOF
	}
	n := 1
	for n < len(p) {
		select {
		case c := <-s.rx:
			p[n] = c
			n++
		default:
			return n, nil
		}
	}
	return n, nil
}

func (s *hostSerial) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.w == nil {
		return 0, ErrNotImplemented
	}
	return s.w.Write(p)
}

// Close restores the terminal and makes pending and future reads return
// io.EOF.
func (s *hostSerial) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		s.mu.Lock()
		if s.tty != nil {
			err = s.tty.Close()
			s.tty = nil
		}
		s.mu.Unlock()
	})
	return err
}

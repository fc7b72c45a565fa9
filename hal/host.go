//go:build !tinygo

package hal

import (
	"fmt"
	"os"
	"sync"
	"time"
)

// Config controls the host runners.
type Config struct {
	// Hz is the host step rate: window frames or headless loop iterations.
	Hz int
	// Ticks stops the runner after N board ticks (0 = run forever).
	Ticks uint64
	// TickPeriod is the board tick length fed to Time.
	TickPeriod time.Duration
	// Console attaches the controlling terminal to the serial port.
	Console bool
	Width   int
	Height  int
}

func (c Config) withDefaults() Config {
	if c.Hz <= 0 {
		c.Hz = 60
	}
	if c.TickPeriod <= 0 {
		c.TickPeriod = time.Millisecond
	}
	if c.Width <= 0 {
		c.Width = 320
	}
	if c.Height <= 0 {
		c.Height = 240
	}
	return c
}

type hostHAL struct {
	logger *hostLogger
	fb     *hostFramebuffer
	kbd    *hostKeyboard
	t      *hostTime
	serial *hostSerial
}

// New returns a host HAL with the default configuration.
func New() HAL {
	return newHost(Config{})
}

func newHost(cfg Config) *hostHAL {
	cfg = cfg.withDefaults()
	// Stdout belongs to the serial console.
	logger := &hostLogger{w: os.Stderr}
	return &hostHAL{
		logger: logger,
		fb:     newHostFramebuffer(cfg.Width, cfg.Height),
		kbd:    newHostKeyboard(),
		t:      newHostTime(cfg.TickPeriod),
		serial: newHostSerial(os.Stdout),
	}
}

func (h *hostHAL) Logger() Logger   { return h.logger }
func (h *hostHAL) Display() Display { return hostDisplay{fb: h.fb} }
func (h *hostHAL) Time() Time       { return h.t }
func (h *hostHAL) Serial() Serial   { return h.serial }

// close releases the console and wakes serial readers.
func (h *hostHAL) close() {
	h.serial.Close()
}

type hostDisplay struct {
	fb *hostFramebuffer
}

func (d hostDisplay) Framebuffer() Framebuffer { return d.fb }

type hostLogger struct {
	mu sync.Mutex
	w  *os.File
}

func (l *hostLogger) WriteLineString(s string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintln(l.w, s)
}

func (l *hostLogger) WriteLineBytes(b []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.w.Write(b)
	l.w.Write([]byte{'\n'})
}

package hal

import "errors"

// Logger writes newline-delimited log lines.
type Logger interface {
	WriteLineString(s string)
	WriteLineBytes(b []byte)
}

var ErrNotImplemented = errors.New("not implemented")

// PixelFormat defines the framebuffer pixel encoding.
type PixelFormat uint8

const (
	// PixelFormatRGB565 is 16bpp: rrrrrggggggbbbbb.
	PixelFormatRGB565 PixelFormat = iota + 1
)

// Framebuffer is a simple pixel buffer plus a "present" hook.
type Framebuffer interface {
	Width() int
	Height() int
	Format() PixelFormat
	StrideBytes() int
	Buffer() []byte
	ClearRGB(r, g, b uint8)
	Present() error
}

// Display provides access to the framebuffer (if available).
type Display interface {
	Framebuffer() Framebuffer
}

// Time provides the board tick stream. Each value is the sequence number of
// one tick of the configured period.
type Time interface {
	Ticks() <-chan uint64
}

// Serial is the board console UART. Read returns whatever bytes arrived
// since the last call and may block until at least one does.
type Serial interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
}

// HAL provides the only contact point between the kernel and the outside
// world.
type HAL interface {
	Logger() Logger
	Display() Display
	Time() Time
	Serial() Serial
}

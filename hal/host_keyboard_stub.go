//go:build !tinygo && !cgo

package hal

type hostKeyboard struct{}

func newHostKeyboard() *hostKeyboard {
	return &hostKeyboard{}
}

// No keyboard without the window backend.
func (k *hostKeyboard) poll(func(rune)) {}

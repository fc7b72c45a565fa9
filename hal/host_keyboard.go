//go:build !tinygo && cgo

package hal

import (
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
)

// hostKeyboard turns window key presses into console bytes.
type hostKeyboard struct {
	buf []rune
}

func newHostKeyboard() *hostKeyboard {
	return &hostKeyboard{}
}

var keyRunes = []struct {
	key ebiten.Key
	r   rune
}{
	{ebiten.KeyEnter, '\r'},
	{ebiten.KeyBackspace, 0x7F},
	{ebiten.KeyTab, '\t'},
	{ebiten.KeyEscape, 0x1B},
}

var ctrlRunes = []struct {
	key ebiten.Key
	r   rune
}{
	{ebiten.KeyC, 0x03},
	{ebiten.KeyD, 0x04},
	{ebiten.KeyU, 0x15},
	{ebiten.KeyW, 0x17},
}

func (k *hostKeyboard) poll(emit func(rune)) {
	ctrl := ebiten.IsKeyPressed(ebiten.KeyControlLeft) || ebiten.IsKeyPressed(ebiten.KeyControlRight)
	if ctrl {
		for _, c := range ctrlRunes {
			if inpututil.IsKeyJustPressed(c.key) {
				emit(c.r)
			}
		}
	}

	k.buf = ebiten.AppendInputChars(k.buf[:0])
	for _, r := range k.buf {
		emit(r)
	}

	for _, c := range keyRunes {
		if inpututil.IsKeyJustPressed(c.key) {
			emit(c.r)
		}
	}
}

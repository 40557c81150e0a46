//go:build !tinygo && cgo

package hal

import (
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
)

type hostKeyboard struct {
	ch chan KeyEvent
}

func newHostKeyboard() *hostKeyboard {
	return &hostKeyboard{ch: make(chan KeyEvent, 64)}
}

func (k *hostKeyboard) Events() <-chan KeyEvent { return k.ch }

var navKeys = []struct {
	key  ebiten.Key
	code KeyCode
}{
	{ebiten.KeyArrowUp, KeyUp},
	{ebiten.KeyArrowDown, KeyDown},
	{ebiten.KeyArrowLeft, KeyLeft},
	{ebiten.KeyArrowRight, KeyRight},
	{ebiten.KeyEnter, KeyEnter},
	{ebiten.KeyEscape, KeyEscape},
	{ebiten.KeyBackspace, KeyBackspace},
	{ebiten.KeyTab, KeyTab},
	{ebiten.KeyDelete, KeyDelete},
	{ebiten.KeyHome, KeyHome},
	{ebiten.KeyEnd, KeyEnd},
	{ebiten.KeyF1, KeyF1},
	{ebiten.KeyF2, KeyF2},
	{ebiten.KeyF3, KeyF3},
}

// ctrlKeys maps control chords to the byte a terminal would send.
var ctrlKeys = []struct {
	key ebiten.Key
	r   rune
}{
	{ebiten.KeyC, 0x03},
	{ebiten.KeyD, 0x04},
	{ebiten.KeyU, 0x15},
	{ebiten.KeyZ, 0x1A},
}

func (k *hostKeyboard) emit(ev KeyEvent) {
	select {
	case k.ch <- ev:
	default:
	}
}

func (k *hostKeyboard) poll() {
	ctrl := ebiten.IsKeyPressed(ebiten.KeyControlLeft) || ebiten.IsKeyPressed(ebiten.KeyControlRight)
	if ctrl {
		for _, c := range ctrlKeys {
			if inpututil.IsKeyJustPressed(c.key) {
				k.emit(KeyEvent{Press: true, Rune: c.r})
			}
		}
	}

	for _, r := range ebiten.AppendInputChars(nil) {
		k.emit(KeyEvent{Press: true, Rune: r})
	}

	for _, n := range navKeys {
		if inpututil.IsKeyJustPressed(n.key) {
			k.emit(KeyEvent{Code: n.code, Press: true})
		}
		if inpututil.IsKeyJustReleased(n.key) {
			k.emit(KeyEvent{Code: n.code, Press: false})
		}
	}
}

//go:build !tinygo && cgo

package hal

import (
	"context"
	"errors"

	"github.com/hajimehoshi/ebiten/v2"
	"golang.org/x/sync/errgroup"

	"ember/internal/buildinfo"
)

// RunWindow starts a desktop window that displays the framebuffer and
// forwards keyboard input while app runs. It blocks until the window closes,
// ctx is done or app returns.
func RunWindow(ctx context.Context, app App, hz int) error {
	h := New(hz).(*hostHAL)
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(runCtx)
	appDone := make(chan struct{})
	g.Go(func() error {
		defer close(appDone)
		return app(gctx, h)
	})

	game := &hostGame{h: h, done: gctx.Done()}
	ebiten.SetWindowTitle("Ember (" + buildinfo.Short() + ")")
	ebiten.SetWindowSize(h.fb.width*2, h.fb.height*2)
	ebiten.SetTPS(60)
	runErr := ebiten.RunGame(game)
	cancel()

	appErr := g.Wait()
	switch {
	case runErr != nil && !errors.Is(runErr, ebiten.Termination):
		return runErr
	case appErr != nil && !errors.Is(appErr, context.Canceled):
		return appErr
	}
	return ctx.Err()
}

type hostGame struct {
	h     *hostHAL
	done  <-chan struct{}
	fbImg *ebiten.Image
	pix   []byte
}

func (g *hostGame) Update() error {
	select {
	case <-g.done:
		return ebiten.Termination
	default:
	}
	g.h.kbd.poll()
	g.h.t.step(1)
	return nil
}

func (g *hostGame) Draw(screen *ebiten.Image) {
	fb := g.h.fb
	if g.fbImg == nil {
		g.fbImg = ebiten.NewImage(fb.width, fb.height)
		g.pix = make([]byte, fb.width*fb.height*4)
	}
	fb.toRGBA(g.pix)
	g.fbImg.WritePixels(g.pix)
	screen.DrawImage(g.fbImg, nil)
}

func (g *hostGame) Layout(outsideWidth, outsideHeight int) (int, int) {
	return g.h.fb.width, g.h.fb.height
}

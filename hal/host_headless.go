//go:build !tinygo

package hal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
)

// HeadlessConfig controls the no-window host runner.
type HeadlessConfig struct {
	Enabled bool
	// Hz is the tick rate.
	Hz int
	// Ticks stops the run after that many ticks; zero runs until ctx is done.
	Ticks uint64
}

// RunHeadless runs app without opening a window. Reaching the tick limit
// is a clean stop.
func RunHeadless(ctx context.Context, app App, cfg HeadlessConfig) error {
	if cfg.Hz <= 0 {
		cfg.Hz = 1000
	}
	d := time.Second / time.Duration(cfg.Hz)
	if d <= 0 {
		return fmt.Errorf("invalid headless hz: %d", cfg.Hz)
	}
	return runHeadless(ctx, New(cfg.Hz).(*hostHAL), app, cfg.Ticks, d)
}

func runHeadless(ctx context.Context, h *hostHAL, app App, limit uint64, period time.Duration) error {
	runCtx, stop := context.WithCancel(ctx)
	defer stop()

	var reached bool
	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		defer stop()
		return app(gctx, h)
	})
	g.Go(func() error {
		t := time.NewTicker(period)
		defer t.Stop()
		var tick uint64
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-t.C:
				h.t.step(1)
				tick++
				if limit > 0 && tick >= limit {
					reached = true
					stop()
					return nil
				}
			}
		}
	})

	err := g.Wait()
	if reached && errors.Is(err, context.Canceled) {
		return nil
	}
	if err == nil {
		err = ctx.Err()
	}
	return err
}

//go:build !tinygo && !cgo

package hal

import (
	"context"
	"errors"
)

func RunWindow(_ context.Context, _ App, _ int) error {
	return errors.New("window mode requires cgo (build/run with CGO_ENABLED=1)")
}

//go:build !tinygo && !cgo

package hal

import "errors"

// RunWindow needs ebiten, which needs cgo on most hosts.
func RunWindow(_ func(HAL) func() error, _ HostConfig) error {
	return errors.New("hal: window mode needs cgo; rebuild with CGO_ENABLED=1 or pass -headless")
}

// Package capture acquires images from a clipboard-like provider.
//
// A Port is polled, never subscribed to: the clipboard is shared with the
// user and the browser, so every attempt re-reads and re-validates.
package capture

import (
	"errors"
	"fmt"

	"clipstitch/internal/types"
)

// ErrNoImagePresent means the provider currently holds no usable image.
// It is expected while waiting for the user and is always retried.
var ErrNoImagePresent = errors.New("no image on clipboard")

// AccessError means the provider itself could not be reached. It is never
// retried.
type AccessError struct {
	Op  string
	Err error
}

func (e *AccessError) Error() string {
	return fmt.Sprintf("clipboard %s: %v", e.Op, e.Err)
}

func (e *AccessError) Unwrap() error { return e.Err }

// Port is the clipboard capability used by the pipeline.
type Port interface {
	// Clear empties the clipboard so that a stale image is not picked up.
	Clear() error
	// ReadImage returns the current image, ErrNoImagePresent, or an
	// *AccessError.
	ReadImage() (types.RawCapture, error)
}

// Package camera abstracts the frame source for capture sessions.
package camera

import (
	"context"
	"errors"
)

// ErrFrameRead means the device could not produce a frame. A capture
// session treats this as the end of the stream.
var ErrFrameRead = errors.New("failed to read frame from camera")

// Device produces JPEG-encoded frames. Implementations are not safe for
// concurrent reads; a capture session is the single owner of its device.
type Device interface {
	// ReadFrame returns the next frame as JPEG bytes. Returns
	// ErrFrameRead when the device yields no frame.
	ReadFrame(ctx context.Context) ([]byte, error)
	Close() error
}

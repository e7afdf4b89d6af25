package camera

import (
	"context"
	"errors"
	"time"
)

// Status of a camera connection as seen by its frame source.
type Status string

const (
	StatusDisconnected Status = "DISCONNECTED"
	StatusConnecting   Status = "CONNECTING"
	StatusConnected    Status = "CONNECTED"
	StatusError        Status = "ERROR"
)

// Frame is one decoded camera frame, already JPEG-encoded for storage.
type Frame struct {
	Data []byte
	At   time.Time
}

// ErrBadFrame marks a single undecodable frame. The source skips it
// without tearing down the connection.
var ErrBadFrame = errors.New("undecodable frame")

// Grabber opens a connection to a video endpoint. The production
// implementation streams MJPEG over HTTP; tests inject fakes.
type Grabber interface {
	Connect(ctx context.Context) (FrameReader, error)
}

// FrameReader delivers frames from one established connection.
// ReadFrame returns ErrBadFrame for a skippable decode failure and any
// other error for a connection-level failure.
type FrameReader interface {
	ReadFrame() (Frame, error)
	Close() error
}

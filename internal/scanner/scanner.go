package scanner

import "errors"

var (
	// ErrNoData means no complete line arrived within the read
	// timeout. The source keeps polling.
	ErrNoData = errors.New("no scan data")

	// ErrBadLine marks undecodable reader input, dropped without
	// emitting an event.
	ErrBadLine = errors.New("undecodable scan line")
)

// Opener opens the serial device of one lane's RFID reader.
type Opener interface {
	Open() (Conn, error)
}

// Conn is one open reader connection. ReadLine returns a complete
// newline-terminated line, ErrNoData on timeout, ErrBadLine for
// undecodable input, and any other error for a connection failure.
type Conn interface {
	ReadLine() (string, error)
	Close() error
}

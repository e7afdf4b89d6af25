package scanner

import (
	"bytes"
	"fmt"
	"time"
	"unicode/utf8"

	"go.bug.st/serial"
)

// SerialOpener opens the lane's RFID reader over its COM/tty port.
type SerialOpener struct {
	Port string
	Baud int
}

func (o *SerialOpener) Open() (Conn, error) {
	mode := &serial.Mode{BaudRate: o.Baud}
	port, err := serial.Open(o.Port, mode)
	if err != nil {
		return nil, fmt.Errorf("open serial %s: %w", o.Port, err)
	}
	if err := port.SetReadTimeout(time.Second); err != nil {
		port.Close()
		return nil, fmt.Errorf("serial %s read timeout: %w", o.Port, err)
	}
	return &serialConn{port: port}, nil
}

// rawPort is the slice of serial.Port the reader needs.
type rawPort interface {
	Read(p []byte) (int, error)
	Close() error
}

// maxPartial bounds buffered bytes of a stream that never sends a
// newline; card ids are a few dozen bytes at most.
const maxPartial = 256

type serialConn struct {
	port    rawPort
	partial []byte
}

// ReadLine returns the next newline-terminated line. One port read may
// carry several lines; leftover bytes stay buffered and are served on
// the following calls before the port is touched again. A read timeout
// inside a line keeps the partial bytes for the next poll.
func (c *serialConn) ReadLine() (string, error) {
	if i := bytes.IndexByte(c.partial, '\n'); i >= 0 {
		return c.takeLine(i)
	}

	buf := make([]byte, 64)
	for {
		n, err := c.port.Read(buf)
		if err != nil {
			return "", fmt.Errorf("serial read: %w", err)
		}
		if n == 0 {
			// timeout, no complete line yet
			return "", ErrNoData
		}

		c.partial = append(c.partial, buf[:n]...)
		if i := bytes.IndexByte(c.partial, '\n'); i >= 0 {
			return c.takeLine(i)
		}
		if len(c.partial) > maxPartial {
			c.partial = nil
			return "", ErrBadLine
		}
	}
}

func (c *serialConn) takeLine(i int) (string, error) {
	line := c.partial[:i]
	c.partial = append([]byte(nil), c.partial[i+1:]...)
	if !utf8.Valid(line) {
		return "", ErrBadLine
	}
	return string(line), nil
}

func (c *serialConn) Close() error {
	return c.port.Close()
}

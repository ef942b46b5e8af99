package redisconn

import (
	"net"
	"time"
)

// deadlineIO applies a rolling deadline to every socket operation when an IO
// timeout is configured; otherwise it passes reads and writes through.
type deadlineIO struct {
	to time.Duration
	c  net.Conn
}

func newDeadlineIO(c net.Conn, to time.Duration) *deadlineIO {
	return &deadlineIO{c: c, to: to}
}

func (d *deadlineIO) Write(b []byte) (int, error) {
	if d.to > 0 {
		d.c.SetWriteDeadline(time.Now().Add(d.to))
	}
	return d.c.Write(b)
}

func (d *deadlineIO) Read(b []byte) (int, error) {
	if d.to > 0 {
		d.c.SetReadDeadline(time.Now().Add(d.to))
	}
	return d.c.Read(b)
}

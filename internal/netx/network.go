// Package netx abstracts the byte-stream transport so node and client logic
// can be exercised against anything that looks like a TCP network.
package netx

import (
	"io"
	"time"
)

type Addr string

// Conn is one bidirectional stream to a peer. Deadlines bound individual
// chunk reads and writes during a transfer.
type Conn interface {
	io.ReadWriteCloser
	RemoteAddr() Addr
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
}

type Network interface {
	Listen(bindAddr string) (listenAddr Addr, err error)
	Accept() (Conn, error)
	Dial(addr Addr) (Conn, error)
	Close() error
}

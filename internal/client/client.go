// Package client talks to storage nodes from the initiating side: probe a
// node, push a file to it, or pull one back. One connection per operation,
// mirroring the node's one-request-per-connection protocol.
package client

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"distfs/internal/netx"
	"distfs/internal/proto"
	"distfs/internal/transfer"
)

// ErrRejected reports a node that answered a PUT with anything other than
// the success code. The node's message is attached.
var ErrRejected = errors.New("transfer rejected by node")

// ErrNotFound reports a GET the node answered with a failure notification.
var ErrNotFound = errors.New("file not available on node")

type Client struct {
	Network netx.Network    // defaults to TCP
	Engine  transfer.Engine // digest algorithm and chunk timeout
	Logger  zerolog.Logger  // zero value logs nothing
}

func (c Client) network() netx.Network {
	if c.Network != nil {
		return c.Network
	}
	return netx.NewTCPNetwork()
}

// Status probes a node and reports whether it answered with the fixed
// availability code.
func (c Client) Status(addr string) (bool, error) {
	conn, err := c.network().Dial(netx.Addr(addr))
	if err != nil {
		return false, err
	}
	defer conn.Close()

	if _, err := conn.Write(proto.EncodeStatus()); err != nil {
		return false, fmt.Errorf("send status request: %w", err)
	}
	reply, err := c.readReply(conn)
	if err != nil {
		return false, err
	}
	return reply == proto.ServerAvailable, nil
}

// Put streams srcPath to the node at addr and waits for its verdict. The
// returned message is what the node said; err is nil only when the node
// confirmed the transfer.
func (c Client) Put(addr, srcPath string) (string, error) {
	conn, err := c.network().Dial(netx.Addr(addr))
	if err != nil {
		return "", err
	}
	defer conn.Close()

	sent, err := c.Engine.Send(conn, srcPath)
	if err != nil {
		return "", err
	}
	c.Logger.Debug().Str("src", srcPath).Int64("sent", sent).Str("node", addr).Msg("file sent")

	reply, err := c.readReply(conn)
	if err != nil {
		return "", fmt.Errorf("read node response: %w", err)
	}
	if reply != proto.TransferSuccessful {
		return reply, fmt.Errorf("%w: %s", ErrRejected, reply)
	}
	return reply, nil
}

// Get asks the node for filename and receives it into destPath, verifying
// the digest the node advertised.
func (c Client) Get(addr, filename, destPath string) error {
	conn, err := c.network().Dial(netx.Addr(addr))
	if err != nil {
		return err
	}
	defer conn.Close()

	if _, err := conn.Write(proto.EncodeGet(filename)); err != nil {
		return fmt.Errorf("send get request: %w", err)
	}

	br := bufio.NewReaderSize(conn, proto.BufferSize)
	line, err := br.ReadString('\n')
	if err != nil {
		return fmt.Errorf("read get reply: %w", err)
	}
	line = strings.TrimSuffix(line, "\n")

	if msg, ok := strings.CutPrefix(line, proto.NotifyFailure+proto.Separator); ok {
		return fmt.Errorf("%w: %s", ErrNotFound, msg)
	}
	req, err := proto.ParseRequest(line)
	if err != nil {
		return fmt.Errorf("bad get reply header: %w", err)
	}
	if req.Type != proto.PutRequest {
		return fmt.Errorf("unexpected get reply type %q", req.Type)
	}

	if err := c.Engine.Receive(bodyStream{r: br, conn: conn}, destPath, req.Size, req.Hash); err != nil {
		return err
	}
	c.Logger.Debug().Str("dest", destPath).Int64("size", req.Size).Str("node", addr).Msg("file received")
	return nil
}

// readReply drains the node's single response string.
func (c Client) readReply(conn netx.Conn) (string, error) {
	if c.Engine.ChunkTimeout > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(c.Engine.ChunkTimeout))
	}
	reply, err := io.ReadAll(conn)
	if err != nil {
		return "", err
	}
	return string(reply), nil
}

// bodyStream pairs the buffered reply reader with the connection's deadline
// controls, same shape as the node's receive path.
type bodyStream struct {
	r    io.Reader
	conn netx.Conn
}

func (b bodyStream) Read(p []byte) (int, error) { return b.r.Read(p) }

func (b bodyStream) SetReadDeadline(t time.Time) error { return b.conn.SetReadDeadline(t) }

func (b bodyStream) SetWriteDeadline(t time.Time) error { return b.conn.SetWriteDeadline(t) }

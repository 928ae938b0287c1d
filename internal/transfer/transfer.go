// Package transfer moves file bytes between a socket and the local
// filesystem in fixed-size chunks, verifying a streaming digest once the
// declared byte count has arrived. Receive and Send are symmetric: the header
// Send writes is the header a receiving dispatcher parses before calling
// Receive.
package transfer

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"time"

	"distfs/internal/integrity"
	"distfs/internal/proto"
)

// ErrTruncated reports a peer that closed the stream before the declared
// size was reached.
var ErrTruncated = errors.New("transfer truncated")

// ErrTimeout reports a chunk that saw no socket activity within the
// configured bound.
var ErrTimeout = errors.New("transfer timed out")

// deadlineConn is the optional surface a reader/writer can expose to get
// per-chunk timeouts.
type deadlineConn interface {
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
}

// Engine copies file bytes between sockets and disk.
//
// Policy on a failed integrity check: the file is left on disk so an
// operator can inspect it; only a timed-out partial is removed.
type Engine struct {
	// Algorithm is the digest both endpoints agreed on. Zero value is MD5.
	Algorithm integrity.Algorithm

	// ChunkTimeout bounds the wait for each chunk when the stream supports
	// deadlines. Zero disables timeouts.
	ChunkTimeout time.Duration
}

// Receive drains size bytes from r into destPath and verifies the digest.
//
// The loop ends when either size bytes have arrived (success path, digest is
// then checked) or a read returns no data before that (ErrTruncated). A
// declared size of zero is a valid, immediately complete transfer.
func (e Engine) Receive(r io.Reader, destPath string, size int64, wantHash string) error {
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return fmt.Errorf("create storage dir: %w", err)
	}
	f, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("create %s: %w", destPath, err)
	}

	received, err := e.copyChunks(f, r, size)
	if cerr := f.Close(); err == nil && cerr != nil {
		err = cerr
	}
	if err != nil {
		if errors.Is(err, ErrTimeout) {
			_ = os.Remove(destPath)
		}
		return err
	}
	if received < size {
		return fmt.Errorf("%w: got %d of %d bytes", ErrTruncated, received, size)
	}
	return integrity.VerifyWith(e.Algorithm, destPath, wantHash)
}

// Send streams srcPath to w: one header announcing name, size and digest,
// then the raw bytes in protocol-sized chunks. It returns the number of body
// bytes written. No acknowledgment is read; a caller that wants one reads the
// peer's response after Send returns.
func (e Engine) Send(w io.Writer, srcPath string) (int64, error) {
	info, err := os.Stat(srcPath)
	if err != nil {
		return 0, fmt.Errorf("stat %s: %w", srcPath, err)
	}
	if info.IsDir() {
		return 0, fmt.Errorf("%s is a directory", srcPath)
	}
	hash, err := e.Digest(srcPath)
	if err != nil {
		return 0, err
	}
	return e.SendWithDigest(w, srcPath, info.Size(), hash)
}

// Digest computes srcPath's content hash with the engine's algorithm.
func (e Engine) Digest(srcPath string) (string, error) {
	return integrity.DigestWith(e.Algorithm, srcPath)
}

// SendWithDigest is Send with a precomputed digest, for callers that cache
// hashes of unmodified files.
func (e Engine) SendWithDigest(w io.Writer, srcPath string, size int64, hash string) (int64, error) {
	if _, err := w.Write(proto.EncodePut(filepath.Base(srcPath), size, hash)); err != nil {
		return 0, fmt.Errorf("send header: %w", err)
	}

	f, err := os.Open(srcPath)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	var sent int64
	buf := make([]byte, proto.BufferSize)
	for sent < size {
		n, err := f.Read(buf)
		if n > 0 {
			if err := e.armWriteDeadline(w); err != nil {
				return sent, err
			}
			wn, werr := w.Write(buf[:n])
			sent += int64(wn)
			if werr != nil {
				if isTimeout(werr) {
					return sent, fmt.Errorf("%w: after %d bytes", ErrTimeout, sent)
				}
				return sent, fmt.Errorf("send chunk: %w", werr)
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return sent, fmt.Errorf("read %s: %w", srcPath, err)
		}
	}
	return sent, nil
}

// copyChunks moves up to size bytes from r to f in protocol-sized chunks.
// A zero-length read (EOF) ends the loop early; the caller decides whether
// that was truncation.
func (e Engine) copyChunks(f *os.File, r io.Reader, size int64) (int64, error) {
	var received int64
	buf := make([]byte, proto.BufferSize)
	for received < size {
		want := int64(len(buf))
		if remaining := size - received; remaining < want {
			want = remaining
		}
		if err := e.armReadDeadline(r); err != nil {
			return received, err
		}
		n, err := r.Read(buf[:want])
		if n > 0 {
			if _, werr := f.Write(buf[:n]); werr != nil {
				return received, fmt.Errorf("write chunk: %w", werr)
			}
			received += int64(n)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			if isTimeout(err) {
				return received, fmt.Errorf("%w: no data after %d bytes", ErrTimeout, received)
			}
			return received, fmt.Errorf("read chunk: %w", err)
		}
	}
	return received, nil
}

func (e Engine) armReadDeadline(r io.Reader) error {
	if e.ChunkTimeout <= 0 {
		return nil
	}
	if dc, ok := r.(deadlineConn); ok {
		return dc.SetReadDeadline(time.Now().Add(e.ChunkTimeout))
	}
	return nil
}

func (e Engine) armWriteDeadline(w io.Writer) error {
	if e.ChunkTimeout <= 0 {
		return nil
	}
	if dc, ok := w.(deadlineConn); ok {
		return dc.SetWriteDeadline(time.Now().Add(e.ChunkTimeout))
	}
	return nil
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

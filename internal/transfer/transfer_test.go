package transfer

import (
	"bufio"
	"bytes"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"distfs/internal/integrity"
	"distfs/internal/proto"
)

func writeSrc(t *testing.T, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "src.bin")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write src: %v", err)
	}
	return path
}

func md5hex(data []byte) string {
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])
}

// Round-trip: Send writes header + body, a fresh Receive consumes the body
// and ends up with a byte-identical file.
func TestRoundTrip(t *testing.T) {
	sizes := []int{0, 1, 1023, 1024, 1025, 64*1024 + 7}
	for _, size := range sizes {
		data := bytes.Repeat([]byte{0xA5}, size)
		for i := range data {
			data[i] = byte(i * 31)
		}
		src := writeSrc(t, data)

		var wire bytes.Buffer
		var eng Engine
		sent, err := eng.Send(&wire, src)
		if err != nil {
			t.Fatalf("size %d: Send error: %v", size, err)
		}
		if sent != int64(size) {
			t.Fatalf("size %d: sent %d bytes", size, sent)
		}

		br := bufio.NewReader(&wire)
		req, err := proto.ReadRequest(br)
		if err != nil {
			t.Fatalf("size %d: read header: %v", size, err)
		}
		if req.Type != proto.PutRequest || req.Size != int64(size) {
			t.Fatalf("size %d: header = %+v", size, req)
		}

		dest := filepath.Join(t.TempDir(), "nested", "dest.bin")
		if err := eng.Receive(br, dest, req.Size, req.Hash); err != nil {
			t.Fatalf("size %d: Receive error: %v", size, err)
		}
		got, err := os.ReadFile(dest)
		if err != nil {
			t.Fatalf("size %d: read dest: %v", size, err)
		}
		if !bytes.Equal(got, data) {
			t.Fatalf("size %d: dest differs from src", size)
		}
		if err := integrity.Verify(dest, req.Hash); err != nil {
			t.Fatalf("size %d: Verify error: %v", size, err)
		}
	}
}

func TestReceiveZeroByteFile(t *testing.T) {
	// An immediate EOF at declared size 0 is success, not truncation.
	dest := filepath.Join(t.TempDir(), "empty.bin")
	var eng Engine
	if err := eng.Receive(bytes.NewReader(nil), dest, 0, md5hex(nil)); err != nil {
		t.Fatalf("Receive error: %v", err)
	}
	info, err := os.Stat(dest)
	if err != nil {
		t.Fatalf("stat dest: %v", err)
	}
	if info.Size() != 0 {
		t.Fatalf("dest size = %d", info.Size())
	}
}

func TestReceiveTruncated(t *testing.T) {
	data := bytes.Repeat([]byte{0x42}, 2000)
	dest := filepath.Join(t.TempDir(), "trunc.bin")
	var eng Engine
	err := eng.Receive(bytes.NewReader(data[:500]), dest, 2000, md5hex(data))
	if !errors.Is(err, ErrTruncated) {
		t.Fatalf("Receive = %v, want ErrTruncated", err)
	}
}

func TestReceiveIntegrityMismatch(t *testing.T) {
	data := bytes.Repeat([]byte{0x42}, 2048)
	corrupted := append([]byte(nil), data...)
	corrupted[1024] ^= 0xFF

	dest := filepath.Join(t.TempDir(), "corrupt.bin")
	var eng Engine
	err := eng.Receive(bytes.NewReader(corrupted), dest, int64(len(data)), md5hex(data))
	if !errors.Is(err, integrity.ErrMismatch) {
		t.Fatalf("Receive = %v, want ErrMismatch", err)
	}
	// Retention policy: the corrupt file stays on disk.
	if _, serr := os.Stat(dest); serr != nil {
		t.Fatalf("corrupt file was removed: %v", serr)
	}
}

func TestReceiveTimeoutDiscardsPartial(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	go func() {
		// Half the declared bytes, then stall.
		_, _ = client.Write(bytes.Repeat([]byte{1}, 512))
	}()

	dest := filepath.Join(t.TempDir(), "stalled.bin")
	eng := Engine{ChunkTimeout: 50 * time.Millisecond}
	err := eng.Receive(server, dest, 1024, "irrelevant")
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("Receive = %v, want ErrTimeout", err)
	}
	if _, serr := os.Stat(dest); !os.IsNotExist(serr) {
		t.Fatalf("partial file not discarded: %v", serr)
	}
}

func TestSendMissingFile(t *testing.T) {
	var eng Engine
	if _, err := eng.Send(&bytes.Buffer{}, filepath.Join(t.TempDir(), "ghost")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestSendRejectsDirectory(t *testing.T) {
	var eng Engine
	if _, err := eng.Send(&bytes.Buffer{}, t.TempDir()); err == nil {
		t.Fatalf("expected error for directory source")
	}
}

func TestBlake2bRoundTrip(t *testing.T) {
	data := []byte("hello world")
	src := writeSrc(t, data)

	var wire bytes.Buffer
	eng := Engine{Algorithm: integrity.BLAKE2b}
	if _, err := eng.Send(&wire, src); err != nil {
		t.Fatalf("Send error: %v", err)
	}
	br := bufio.NewReader(&wire)
	req, err := proto.ReadRequest(br)
	if err != nil {
		t.Fatalf("read header: %v", err)
	}
	dest := filepath.Join(t.TempDir(), "dest.bin")
	if err := eng.Receive(br, dest, req.Size, req.Hash); err != nil {
		t.Fatalf("Receive error: %v", err)
	}
}

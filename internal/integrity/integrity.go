// Package integrity computes streaming content digests over stored files and
// checks them against the digest a peer advertised. Digests here detect
// corruption in transit, they are not a security boundary; both transfer
// endpoints must agree on the algorithm out of band since the wire protocol
// does not negotiate it.
package integrity

import (
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"os"

	"golang.org/x/crypto/blake2b"
)

// hashBlockSize is how much file data is fed to the accumulator per read.
const hashBlockSize = 4096

// ErrMismatch reports a digest disagreement after a complete transfer.
var ErrMismatch = errors.New("file integrity check failed")

// Algorithm selects the digest function shared by both transfer endpoints.
type Algorithm string

const (
	MD5     Algorithm = "md5"
	BLAKE2b Algorithm = "blake2b-256"
)

func (a Algorithm) newHash() (hash.Hash, error) {
	switch a {
	case "", MD5:
		return md5.New(), nil
	case BLAKE2b:
		return blake2b.New256(nil)
	default:
		return nil, fmt.Errorf("unknown digest algorithm %q", string(a))
	}
}

// Digest streams path through MD5 and returns the lowercase hex digest.
func Digest(path string) (string, error) {
	return DigestWith(MD5, path)
}

// DigestWith streams path through alg in fixed-size blocks. The whole file is
// never held in memory.
func DigestWith(alg Algorithm, path string) (string, error) {
	h, err := alg.newHash()
	if err != nil {
		return "", err
	}
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	buf := make([]byte, hashBlockSize)
	if _, err := io.CopyBuffer(h, f, buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Verify recomputes path's digest and compares it against want. A
// disagreement comes back as ErrMismatch, not a boolean, so callers can
// decide what to do with the file on disk.
func Verify(path, want string) error {
	return VerifyWith(MD5, path, want)
}

// VerifyWith is Verify with an explicit algorithm.
func VerifyWith(alg Algorithm, path, want string) error {
	got, err := DigestWith(alg, path)
	if err != nil {
		return err
	}
	if got != want {
		return fmt.Errorf("%w: have %s, want %s", ErrMismatch, got, want)
	}
	return nil
}

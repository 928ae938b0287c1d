// Package proto defines the storage-node wire protocol: one
// separator-delimited request header per connection, optionally followed by a
// raw byte stream (PUT body, GET reply body).
//
// A header is a single line terminated by '\n'. Readers scan for the
// terminator through a buffered reader shared with the body bytes that
// follow, so a header longer than one socket read is never truncated.
package proto

import (
	"bufio"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

// Separator sits between header fields.
const Separator = "<>"

// BufferSize is the protocol-wide chunk size for socket and file reads.
const BufferSize = 1024

// Request types.
const (
	GetRequest    = "<GET_REQUEST>"
	PutRequest    = "<PUT_REQUEST>"
	StatusRequest = "<STATUS_REQUEST>"
)

// Response tokens.
const (
	ServerAvailable    = "200"
	TransferSuccessful = "TRANSFER_SUCCESSFUL"
	NotifySuccess      = "<NOTIFY_SUCCESS>"
	NotifyFailure      = "<NOTIFY_FAILURE>"
)

// ErrUnsupportedRequest reports a request type the node does not recognize.
var ErrUnsupportedRequest = errors.New("request type not supported")

// ErrBadRequest reports a header that does not parse.
var ErrBadRequest = errors.New("malformed request")

// Request is one parsed header.
type Request struct {
	Type     string
	Filename string
	Size     int64  // PUT only
	Hash     string // PUT only, lowercase hex
}

// EncodeStatus frames a status probe.
func EncodeStatus() []byte {
	return []byte(StatusRequest + "\n")
}

// EncodeGet frames a retrieval request for filename.
func EncodeGet(filename string) []byte {
	return []byte(GetRequest + Separator + filepath.Base(filename) + "\n")
}

// EncodePut frames the transfer header announcing filename, its size and its
// content digest. The same header shape announces a GET reply body.
func EncodePut(filename string, size int64, hash string) []byte {
	return []byte(PutRequest + Separator + filepath.Base(filename) +
		Separator + strconv.FormatInt(size, 10) + Separator + hash + "\n")
}

// EncodeFailure frames a failure notification carrying msg.
func EncodeFailure(msg string) []byte {
	return []byte(NotifyFailure + Separator + msg + "\n")
}

// ReadRequest reads and parses one header line from br. Body bytes following
// the header remain buffered in br for the transfer engine to consume.
func ReadRequest(br *bufio.Reader) (Request, error) {
	line, err := br.ReadString('\n')
	if err != nil {
		return Request{}, fmt.Errorf("read request header: %w", err)
	}
	return ParseRequest(strings.TrimSuffix(line, "\n"))
}

// ParseRequest parses a header line without its terminator.
func ParseRequest(line string) (Request, error) {
	fields := strings.Split(line, Separator)
	switch fields[0] {
	case StatusRequest:
		return Request{Type: StatusRequest}, nil

	case GetRequest:
		if len(fields) != 2 {
			return Request{}, fmt.Errorf("%w: GET wants 1 arg, header %q", ErrBadRequest, line)
		}
		name := sanitize(fields[1])
		if name == "" {
			return Request{}, fmt.Errorf("%w: empty filename", ErrBadRequest)
		}
		return Request{Type: GetRequest, Filename: name}, nil

	case PutRequest:
		if len(fields) != 4 {
			return Request{}, fmt.Errorf("%w: PUT wants 3 args, header %q", ErrBadRequest, line)
		}
		size, err := strconv.ParseInt(fields[2], 10, 64)
		if err != nil || size < 0 {
			return Request{}, fmt.Errorf("%w: bad size %q", ErrBadRequest, fields[2])
		}
		name := sanitize(fields[1])
		if name == "" {
			return Request{}, fmt.Errorf("%w: empty filename", ErrBadRequest)
		}
		return Request{Type: PutRequest, Filename: name, Size: size, Hash: fields[3]}, nil

	default:
		return Request{}, fmt.Errorf("%w: %q", ErrUnsupportedRequest, fields[0])
	}
}

// sanitize strips any directory components so a peer can never write or read
// outside the storage directory.
func sanitize(name string) string {
	base := filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if base == "." || base == ".." || base == "/" {
		return ""
	}
	return base
}

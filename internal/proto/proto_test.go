package proto

import (
	"bufio"
	"errors"
	"io"
	"strings"
	"testing"
)

func TestParsePut(t *testing.T) {
	req, err := ParseRequest("<PUT_REQUEST><>report.txt<>11<>5eb63bbbe01eeed093cb22bb8f5acdc3")
	if err != nil {
		t.Fatalf("ParseRequest error: %v", err)
	}
	if req.Type != PutRequest || req.Filename != "report.txt" || req.Size != 11 {
		t.Fatalf("ParseRequest = %+v", req)
	}
	if req.Hash != "5eb63bbbe01eeed093cb22bb8f5acdc3" {
		t.Fatalf("hash = %q", req.Hash)
	}
}

func TestParseGetAndStatus(t *testing.T) {
	req, err := ParseRequest("<GET_REQUEST><>report.txt")
	if err != nil {
		t.Fatalf("ParseRequest error: %v", err)
	}
	if req.Type != GetRequest || req.Filename != "report.txt" {
		t.Fatalf("ParseRequest = %+v", req)
	}

	req, err = ParseRequest("<STATUS_REQUEST>")
	if err != nil {
		t.Fatalf("ParseRequest error: %v", err)
	}
	if req.Type != StatusRequest {
		t.Fatalf("ParseRequest = %+v", req)
	}
}

func TestParseStripsDirectories(t *testing.T) {
	req, err := ParseRequest("<PUT_REQUEST><>../../etc/passwd<>4<>abcd")
	if err != nil {
		t.Fatalf("ParseRequest error: %v", err)
	}
	if req.Filename != "passwd" {
		t.Fatalf("filename = %q, want passwd", req.Filename)
	}

	req, err = ParseRequest("<GET_REQUEST><>/tmp/evil")
	if err != nil {
		t.Fatalf("ParseRequest error: %v", err)
	}
	if req.Filename != "evil" {
		t.Fatalf("filename = %q, want evil", req.Filename)
	}
}

func TestParseRejects(t *testing.T) {
	cases := []struct {
		line string
		want error
	}{
		{"<DELETE_REQUEST><>x", ErrUnsupportedRequest},
		{"", ErrUnsupportedRequest},
		{"<PUT_REQUEST><>f<>notanumber<>h", ErrBadRequest},
		{"<PUT_REQUEST><>f<>-5<>h", ErrBadRequest},
		{"<PUT_REQUEST><>f<>10", ErrBadRequest},
		{"<GET_REQUEST>", ErrBadRequest},
		{"<PUT_REQUEST><>..<>4<>h", ErrBadRequest},
	}
	for _, c := range cases {
		if _, err := ParseRequest(c.line); !errors.Is(err, c.want) {
			t.Fatalf("ParseRequest(%q) = %v, want %v", c.line, err, c.want)
		}
	}
}

func TestReadRequestLeavesBodyBuffered(t *testing.T) {
	payload := string(EncodePut("report.txt", 11, "5eb63bbbe01eeed093cb22bb8f5acdc3")) + "hello world"
	br := bufio.NewReader(strings.NewReader(payload))

	req, err := ReadRequest(br)
	if err != nil {
		t.Fatalf("ReadRequest error: %v", err)
	}
	if req.Filename != "report.txt" || req.Size != 11 {
		t.Fatalf("ReadRequest = %+v", req)
	}

	body, err := io.ReadAll(br)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if string(body) != "hello world" {
		t.Fatalf("body = %q", body)
	}
}

// A header longer than one socket read must still parse; the line scan keeps
// reading until the terminator.
func TestReadRequestLongHeader(t *testing.T) {
	longName := strings.Repeat("n", 4*BufferSize) + ".bin"
	br := bufio.NewReaderSize(strings.NewReader(string(EncodePut(longName, 1, "ff"))), 64)

	req, err := ReadRequest(br)
	if err != nil {
		t.Fatalf("ReadRequest error: %v", err)
	}
	if req.Filename != longName {
		t.Fatalf("long filename truncated: got %d bytes, want %d", len(req.Filename), len(longName))
	}
}

func TestEncodeGetUsesBaseName(t *testing.T) {
	if got, want := string(EncodeGet("/data/in/report.txt")), "<GET_REQUEST><>report.txt\n"; got != want {
		t.Fatalf("EncodeGet = %q, want %q", got, want)
	}
}

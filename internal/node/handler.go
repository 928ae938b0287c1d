package node

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"

	"distfs/internal/netx"
	"distfs/internal/proto"
	"distfs/internal/registry"
)

// unsupportedMessage is the fixed reply for request types the node does not
// know. The connection is answered, never dropped.
const unsupportedMessage = "Request type not supported yet!"

// handleConn runs the whole request lifecycle for one connection: read one
// framed request, dispatch it, write one response, close. A panic here is
// contained to this connection.
func (s *Server) handleConn(conn netx.Conn) {
	logger := s.logger.With().
		Str("session", uuid.NewString()).
		Str("peer", string(conn.RemoteAddr())).
		Logger()

	defer func() {
		if r := recover(); r != nil {
			logger.Error().Interface("panic", r).Msg("connection handler panicked")
		}
		_ = conn.Close()
	}()

	br := bufio.NewReaderSize(conn, proto.BufferSize)
	req, err := proto.ReadRequest(br)
	if err != nil {
		logger.Error().Err(err).Msg("bad request")
		if errors.Is(err, proto.ErrUnsupportedRequest) {
			s.respond(logger, conn, unsupportedMessage)
			return
		}
		s.respond(logger, conn, "Operation failed: "+err.Error())
		return
	}

	switch req.Type {
	case proto.StatusRequest:
		logger.Debug().Msg("received status request")
		s.respond(logger, conn, proto.ServerAvailable)

	case proto.PutRequest:
		logger.Debug().Str("filename", req.Filename).Int64("size", req.Size).Msg("received put request")
		s.respond(logger, conn, s.handlePut(logger, conn, br, req))

	case proto.GetRequest:
		logger.Debug().Str("filename", req.Filename).Msg("received get request")
		s.handleGet(logger, conn, req)
	}
}

// handlePut receives one file into the storage directory and maps the
// transfer outcome to the response string for the peer. Truncation, digest
// mismatch and timeout stay distinguishable in the message text even though
// the wire carries a single string.
func (s *Server) handlePut(logger zerolog.Logger, conn netx.Conn, br *bufio.Reader, req proto.Request) string {
	dest := filepath.Join(s.StorageDir(), req.Filename)
	err := s.engine.Receive(bodyStream{r: br, conn: conn}, dest, req.Size, req.Hash)
	if err != nil {
		logger.Error().Err(err).Str("dest", dest).Msg("put failed")
		return err.Error()
	}

	if s.cfg.Registry != nil {
		rec := registry.FileRecord{Name: req.Filename, Size: req.Size, Hash: req.Hash}
		if rerr := s.cfg.Registry.RecordFile(s.id, rec); rerr != nil {
			logger.Error().Err(rerr).Msg("registry record failed")
		}
	}

	logger.Debug().Str("dest", dest).Msg("file saved, integrity check passed")
	return proto.TransferSuccessful
}

// handleGet serves the named file back with the same header + stream framing
// a PUT uses, so the peer's receive path consumes it symmetrically. An absent
// file gets a failure notification instead.
func (s *Server) handleGet(logger zerolog.Logger, conn netx.Conn, req proto.Request) {
	path := filepath.Join(s.StorageDir(), req.Filename)
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		logger.Error().Str("path", path).Msg("get for unknown file")
		if _, werr := conn.Write(proto.EncodeFailure("file not found: " + req.Filename)); werr != nil {
			logger.Error().Err(werr).Msg("response write failed")
		}
		return
	}

	hash, err := s.fileDigest(path, info)
	if err != nil {
		logger.Error().Err(err).Msg("digest failed")
		_, _ = conn.Write(proto.EncodeFailure("Operation failed: " + err.Error()))
		return
	}

	sent, err := s.engine.SendWithDigest(conn, path, info.Size(), hash)
	if err != nil {
		logger.Error().Err(err).Int64("sent", sent).Msg("get transfer failed")
		return
	}
	logger.Debug().Int64("sent", sent).Str("path", path).Msg("file served")
}

// fileDigest returns the file's content hash, reusing a cached value while
// size and mtime are unchanged.
func (s *Server) fileDigest(path string, info os.FileInfo) (string, error) {
	key := fmt.Sprintf("%s|%d|%d", path, info.Size(), info.ModTime().UnixNano())
	if hash, ok := s.digests.Get(key); ok {
		return hash.(string), nil
	}
	hash, err := s.engine.Digest(path)
	if err != nil {
		return "", err
	}
	s.digests.Set(key, hash, cache.DefaultExpiration)
	return hash, nil
}

func (s *Server) respond(logger zerolog.Logger, conn netx.Conn, msg string) {
	if s.cfg.ChunkTimeout > 0 {
		_ = conn.SetWriteDeadline(time.Now().Add(s.cfg.ChunkTimeout))
	}
	if _, err := io.WriteString(conn, msg); err != nil {
		logger.Error().Err(err).Msg("response write failed")
	}
}

// bodyStream reads request body bytes that may already sit in the header's
// buffered reader while taking read deadlines on the underlying connection.
type bodyStream struct {
	r    io.Reader
	conn netx.Conn
}

func (b bodyStream) Read(p []byte) (int, error) { return b.r.Read(p) }

func (b bodyStream) SetReadDeadline(t time.Time) error { return b.conn.SetReadDeadline(t) }

func (b bodyStream) SetWriteDeadline(t time.Time) error { return b.conn.SetWriteDeadline(t) }

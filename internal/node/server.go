// Package node runs one storage node: a TCP listener that answers the
// STATUS/PUT/GET protocol, one goroutine per accepted connection.
package node

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"

	"distfs/internal/identity"
	"distfs/internal/integrity"
	"distfs/internal/netx"
	"distfs/internal/registry"
	"distfs/internal/transfer"
)

const digestCacheTTL = 5 * time.Minute

type Config struct {
	ID       identity.NodeID // node identity; names the storage dir and registry table
	Bind     string          // listen address, defaults to ID.String()
	BaseDir  string          // parent of the storage directory, defaults to "."
	Network  netx.Network    // transport, defaults to TCP
	Logger   zerolog.Logger  // zero value logs nothing
	Registry *registry.Store // optional bookkeeping of stored files

	// Algorithm is the content digest shared with peers. Zero value is MD5.
	Algorithm integrity.Algorithm

	// ChunkTimeout bounds each chunk read/write during a transfer.
	// Zero means no timeout, matching the original protocol's behavior.
	ChunkTimeout time.Duration
}

type Server struct {
	cfg    Config
	id     identity.NodeID
	logger zerolog.Logger
	engine transfer.Engine

	addr netx.Addr

	// digests caches content hashes for GET replies so repeated reads of an
	// unmodified file skip re-hashing.
	digests *cache.Cache

	ctx    context.Context
	cancel context.CancelFunc
}

func New(cfg Config) (*Server, error) {
	if cfg.Network == nil {
		cfg.Network = netx.NewTCPNetwork()
	}
	if cfg.Bind == "" {
		if cfg.ID.Host == "" {
			return nil, fmt.Errorf("node config: no identity and no bind address")
		}
		cfg.Bind = cfg.ID.String()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		cfg:    cfg,
		id:     cfg.ID,
		logger: cfg.Logger,
		engine: transfer.Engine{
			Algorithm:    cfg.Algorithm,
			ChunkTimeout: cfg.ChunkTimeout,
		},
		digests: cache.New(digestCacheTTL, 2*digestCacheTTL),
		ctx:     ctx,
		cancel:  cancel,
	}, nil
}

// ID returns the node's identity. When the server was bound to an ephemeral
// port, the identity reflects the actual listen address after Start.
func (s *Server) ID() identity.NodeID { return s.id }

// ListenAddr returns where this node is listening.
func (s *Server) ListenAddr() netx.Addr { return s.addr }

// StorageDir returns the directory this node stores files under.
func (s *Server) StorageDir() string {
	return filepath.Join(s.cfg.BaseDir, s.id.StorageDir())
}

// Start brings the node online and returns once the listener is accepting.
func (s *Server) Start() error {
	addr, err := s.cfg.Network.Listen(s.cfg.Bind)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.cfg.Bind, err)
	}
	s.addr = addr
	// A configured identity wins; only ephemeral binds take theirs from the
	// actual listen address.
	if s.id.Host == "" || s.id.Port == 0 {
		if id, err := identity.ParseAddr(string(addr)); err == nil {
			s.id = id
		}
	}
	if s.cfg.Registry != nil {
		if err := s.cfg.Registry.EnsureNode(s.id); err != nil {
			_ = s.cfg.Network.Close()
			return fmt.Errorf("register node: %w", err)
		}
	}
	s.logger.Info().
		Str("addr", string(addr)).
		Str("storage_dir", s.StorageDir()).
		Msg("storage node listening")

	go s.acceptLoop()
	return nil
}

// Stop shuts the listener down. In-flight connections finish on their own.
func (s *Server) Stop() error {
	s.cancel()
	return s.cfg.Network.Close()
}

func (s *Server) acceptLoop() {
	for {
		select {
		case <-s.ctx.Done():
			return
		default:
		}

		conn, err := s.cfg.Network.Accept()
		if err != nil {
			select {
			case <-s.ctx.Done():
			default:
				s.logger.Error().Err(err).Msg("accept failed")
			}
			return
		}
		go s.handleConn(conn)
	}
}

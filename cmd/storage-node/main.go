// storage-node runs one storage node from the cluster config:
//
//	storage-node -config machines.json -node 0
package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"distfs/internal/config"
	"distfs/internal/identity"
	"distfs/internal/node"
	"distfs/internal/paths"
	"distfs/internal/registry"
)

func main() {
	configPath := flag.String("config", config.DefaultPath, "cluster config file")
	nodeIdx := flag.Int("node", 0, "index into the config's storage node list")
	chunkTimeout := flag.Duration("chunk-timeout", 0, "per-chunk transfer timeout (0 disables)")
	debug := flag.Bool("debug", false, "also log to stderr")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	id, err := cfg.Node(*nodeIdx)
	if err != nil {
		log.Fatalf("resolve node %d: %v", *nodeIdx, err)
	}

	logger, closeLog, err := openLogger(id, *debug)
	if err != nil {
		log.Fatalf("open log: %v", err)
	}
	defer closeLog()

	reg, err := registry.Open(cfg.Database)
	if err != nil {
		log.Fatalf("open registry %s: %v", cfg.Database, err)
	}
	defer reg.Close()

	srv, err := node.New(node.Config{
		ID:           id,
		Logger:       logger,
		Registry:     reg,
		ChunkTimeout: *chunkTimeout,
	})
	if err != nil {
		log.Fatalf("create node: %v", err)
	}
	if err := srv.Start(); err != nil {
		log.Fatalf("start node: %v", err)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	logger.Info().Msg("shutting down")
	_ = srv.Stop()
}

// openLogger writes to logs/node_<host>_<port>.log, optionally teeing a
// console view to stderr.
func openLogger(id identity.NodeID, debug bool) (zerolog.Logger, func(), error) {
	dir, err := paths.EnsureDir(paths.LogsDir)
	if err != nil {
		return zerolog.Logger{}, nil, err
	}
	f, err := os.OpenFile(filepath.Join(dir, paths.NodeLogFile(id)),
		os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return zerolog.Logger{}, nil, err
	}

	var w zerolog.LevelWriter = zerolog.MultiLevelWriter(f)
	if debug {
		w = zerolog.MultiLevelWriter(f, zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
	logger := zerolog.New(w).Level(zerolog.DebugLevel).With().Timestamp().Logger()
	return logger, func() { _ = f.Close() }, nil
}

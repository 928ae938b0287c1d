// dfs-client exercises a storage node from the command line:
//
//	dfs-client -addr 127.0.0.1:5000 status
//	dfs-client -addr 127.0.0.1:5000 put report.txt data.bin
//	dfs-client -addr 127.0.0.1:5000 get report.txt
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"distfs/internal/client"
	"distfs/internal/paths"
	"distfs/internal/transfer"
)

func main() {
	addr := flag.String("addr", "", "storage node address host:port")
	outDir := flag.String("out", paths.ReceivedFilesDir, "directory for fetched files")
	chunkTimeout := flag.Duration("chunk-timeout", 30*time.Second, "per-chunk transfer timeout (0 disables)")
	debug := flag.Bool("debug", false, "log transfer details to stderr")
	flag.Parse()

	if *addr == "" || flag.NArg() == 0 {
		usage()
	}

	logger := zerolog.Nop()
	if *debug {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
			With().Timestamp().Logger()
	}

	c := client.Client{
		Engine: transfer.Engine{ChunkTimeout: *chunkTimeout},
		Logger: logger,
	}

	cmd, args := flag.Arg(0), flag.Args()[1:]
	switch cmd {
	case "status":
		up, err := c.Status(*addr)
		if err != nil {
			log.Fatalf("status %s: %v", *addr, err)
		}
		if !up {
			fmt.Printf("%s: unexpected status reply\n", *addr)
			os.Exit(1)
		}
		fmt.Printf("%s: available\n", *addr)

	case "put":
		if len(args) == 0 {
			usage()
		}
		for _, src := range args {
			msg, err := c.Put(*addr, src)
			if err != nil {
				log.Fatalf("put %s: %v", src, err)
			}
			fmt.Printf("%s: %s\n", src, msg)
		}

	case "get":
		if len(args) == 0 {
			usage()
		}
		dir, err := paths.EnsureDir(*outDir)
		if err != nil {
			log.Fatalf("create %s: %v", *outDir, err)
		}
		for _, name := range args {
			dest := filepath.Join(dir, filepath.Base(name))
			if err := c.Get(*addr, name, dest); err != nil {
				log.Fatalf("get %s: %v", name, err)
			}
			fmt.Printf("%s -> %s\n", name, dest)
		}

	default:
		usage()
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: dfs-client -addr host:port status")
	fmt.Fprintln(os.Stderr, "       dfs-client -addr host:port put <file>...")
	fmt.Fprintln(os.Stderr, "       dfs-client -addr host:port [-out dir] get <filename>...")
	os.Exit(2)
}
